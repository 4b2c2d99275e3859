package token

import (
	"fmt"
	"strings"

	"github.com/ahmethakanbesel/nse-scanner/internal/apperror"
)

// CallbackRequest carries the query parameters of the OAuth redirect.
type CallbackRequest struct {
	Code  string
	Error string
}

func (r *CallbackRequest) Validate() *apperror.AppError {
	r.Code = strings.TrimSpace(r.Code)
	r.Error = strings.TrimSpace(r.Error)
	if r.Error != "" {
		return apperror.New(apperror.BadRequest, fmt.Sprintf("upstox login error: %s", r.Error))
	}
	if r.Code == "" {
		return apperror.New(apperror.BadRequest, "no authorization code received")
	}
	return nil
}

type LoginURLResponse struct {
	LoginURL string `json:"loginUrl"`
}
