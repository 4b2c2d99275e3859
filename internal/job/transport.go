package job

import "github.com/ahmethakanbesel/nse-scanner/internal/apperror"

type GetJobRequest struct {
	ID string
}

func (r GetJobRequest) Validate() *apperror.AppError {
	if r.ID == "" || len(r.ID) > 64 {
		return apperror.New(apperror.BadRequest, "invalid job id")
	}
	return nil
}
