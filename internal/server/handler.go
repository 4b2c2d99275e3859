package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/ahmethakanbesel/nse-scanner/internal/job"
	"github.com/ahmethakanbesel/nse-scanner/internal/scan"
	"github.com/ahmethakanbesel/nse-scanner/internal/token"
)

type handler struct {
	scanSvc  *scan.Service
	jobSvc   *job.Service
	tokenSvc *token.Service
}

type healthResponse struct {
	Status string       `json:"status"`
	Token  token.Status `json:"token"`
}

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status: "ok",
		Token:  h.tokenSvc.Status(r.Context()),
	})
}

func (h *handler) loginURL(w http.ResponseWriter, _ *http.Request) {
	resp, err := h.tokenSvc.LoginURL()
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *handler) authCallback(w http.ResponseWriter, r *http.Request) {
	req := token.CallbackRequest{
		Code:  r.URL.Query().Get("code"),
		Error: r.URL.Query().Get("error"),
	}
	target, err := h.tokenSvc.Callback(r.Context(), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	http.Redirect(w, r, target, http.StatusFound)
}

func (h *handler) listStrategies(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.scanSvc.Strategies())
}

func (h *handler) listUniverses(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.scanSvc.ListUniverses(r.Context()))
}

func (h *handler) startScan(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeScanRequest(w, r)
	if !ok {
		return
	}
	resp, err := h.scanSvc.Start(r.Context(), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, resp)
}

func (h *handler) scanStatus(w http.ResponseWriter, r *http.Request) {
	j, err := h.jobSvc.Get(job.GetJobRequest{ID: r.PathValue("id")})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, j)
}

// runScan blocks for the whole scan, which can outlast the server's write
// timeout on a large universe.
func (h *handler) runScan(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeScanRequest(w, r)
	if !ok {
		return
	}
	clearWriteDeadline(w)
	resp, err := h.scanSvc.Run(r.Context(), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// streamScan sends every scan event as a Server-Sent Event. Validation
// failures are reported as ordinary JSON errors before the stream opens.
func (h *handler) streamScan(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	req := scan.ScanRequest{
		Strategy: r.URL.Query().Get("strategy"),
		Universe: r.URL.Query().Get("universe"),
	}
	events, err := h.scanSvc.Stream(ctx, req)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	clearWriteDeadline(w)
	rc := http.NewResponseController(w)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	for ev := range events {
		payload, err := json.Marshal(ev)
		if err == nil {
			_, err = fmt.Fprintf(w, "data: %s\n\n", payload)
		}
		if err == nil {
			err = rc.Flush()
		}
		if err != nil {
			slog.Warn("scan stream closed", "error", err)
			cancel()
			for range events {
			}
			return
		}
	}
}

// clearWriteDeadline lifts the server write timeout for a long-running
// response.
func clearWriteDeadline(w http.ResponseWriter) {
	if err := http.NewResponseController(w).SetWriteDeadline(time.Time{}); err != nil {
		slog.Debug("write deadline not cleared", "error", err)
	}
}

func decodeScanRequest(w http.ResponseWriter, r *http.Request) (scan.ScanRequest, bool) {
	var req scan.ScanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return req, false
	}
	return req, true
}
