package api

import (
	"errors"
	"net/http"
	"strings"

	"slidecast/internal/queue"
	"slidecast/internal/services"
)

// ErrorFor maps err to an HTTP status and response body.
func ErrorFor(err error) (int, ErrorResponse) {
	if err == nil {
		return http.StatusOK, ErrorResponse{}
	}
	details := services.Details(err)
	resp := ErrorResponse{Error: err.Error(), Kind: string(details.Kind), Hint: details.Hint}

	var failure *services.StageFailure
	switch {
	case errors.As(err, &failure):
		resp.Stage = failure.Stage
		resp.Slides = append([]int(nil), failure.Slides...)
		resp.Kind = "stage_failure"
		return http.StatusConflict, resp
	case errors.Is(err, ErrJobNotComplete):
		resp.Kind = "not_complete"
		return http.StatusConflict, resp
	case errors.Is(err, queue.ErrInvalidTransition):
		resp.Kind = "invalid_transition"
		return http.StatusConflict, resp
	case errors.Is(err, services.ErrNotFound):
		return http.StatusNotFound, resp
	case errors.Is(err, services.ErrValidation):
		return http.StatusBadRequest, resp
	default:
		return http.StatusInternalServerError, resp
	}
}

// ErrorFromResponse rebuilds a typed error from an API error body so remote
// callers can use errors.Is and errors.As like local ones.
func ErrorFromResponse(status int, resp ErrorResponse) error {
	msg := strings.TrimSpace(resp.Error)
	if msg == "" {
		msg = http.StatusText(status)
	}
	cause := errors.New(msg)
	switch {
	case resp.Kind == "stage_failure":
		return services.NewStageFailure(resp.Stage, resp.Slides, cause)
	case resp.Kind == "not_complete":
		return errors.Join(ErrJobNotComplete, cause)
	case resp.Kind == "invalid_transition":
		return errors.Join(queue.ErrInvalidTransition, cause)
	case status == http.StatusNotFound:
		return errors.Join(ErrJobNotFound, cause)
	case status == http.StatusBadRequest:
		return errors.Join(services.ErrValidation, cause)
	case status == http.StatusUnauthorized:
		return errors.Join(services.ErrConfiguration, cause)
	default:
		return cause
	}
}
