package scan

import (
	"strings"

	"github.com/ahmethakanbesel/nse-scanner/internal/apperror"
	"github.com/ahmethakanbesel/nse-scanner/internal/strategy"
)

// ScanRequest names a strategy and a universe. It is the body of both the
// asynchronous and the synchronous scan endpoints.
type ScanRequest struct {
	Strategy string `json:"strategy"`
	Universe string `json:"universe"`
}

func (r *ScanRequest) Validate() *apperror.AppError {
	r.Strategy = strings.TrimSpace(r.Strategy)
	r.Universe = strings.TrimSpace(r.Universe)
	if r.Strategy == "" {
		return apperror.New(apperror.BadRequest, "strategy is required")
	}
	if r.Universe == "" {
		return apperror.New(apperror.BadRequest, "universe is required")
	}
	return nil
}

type StartScanResponse struct {
	JobID string `json:"jobId"`
	Total int    `json:"total"`
}

type RunScanResponse struct {
	Strategy     string            `json:"strategy"`
	Universe     string            `json:"universe"`
	TotalScanned int               `json:"totalScanned"`
	Matches      int               `json:"matches"`
	Results      []strategy.Result `json:"results"`
}

type UniverseInfo struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}
