package handler

import (
	"context"
	"errors"
	"net/http"

	"opmelink-api/internal/model"
	"opmelink-api/internal/service"
	"opmelink-api/pkg/apierror"
	"opmelink-api/pkg/response"

	"go.uber.org/zap"
)

// apiError maps domain errors onto the HTTP error envelope.
func apiError(err error) *apierror.Error {
	var (
		apiErr     *apierror.Error
		restricted *model.RestrictionError
		duplicate  *model.DuplicateRuleError
		notFound   *model.NotFoundError
		total      *model.TotalFetchFailure
	)
	switch {
	case errors.As(err, &apiErr):
		return apiErr
	case errors.As(err, &restricted):
		rule := restricted.Rule
		return apierror.Restricted(restricted.Error()).WithData(rule)
	case errors.As(err, &duplicate):
		return apierror.Conflict(duplicate.Error())
	case errors.As(err, &notFound):
		return apierror.NotFound(notFound.Error())
	case errors.Is(err, model.ErrNotFound):
		return apierror.NotFound("")
	case errors.As(err, &total):
		return apierror.BadGateway(total.Error()).WithData(total.Failures)
	case errors.Is(err, model.ErrInvalidInput):
		return apierror.ValidationError(err.Error())
	case errors.Is(err, service.ErrInvalidToken):
		return apierror.Unauthorized("Invalid or expired token")
	case errors.Is(err, service.ErrNoCaseSelected), errors.Is(err, service.ErrScanInProgress):
		return apierror.Conflict(err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return apierror.ServiceUnavailable("request timed out")
	default:
		return apierror.InternalError("")
	}
}

// writeError answers with the mapped error and logs server-side failures.
func writeError(w http.ResponseWriter, logger *zap.Logger, err error) {
	apiErr := apiError(err)
	if apiErr.StatusCode >= http.StatusInternalServerError {
		logger.Error("request failed", zap.Error(err))
	}
	response.Error(w, apiErr)
}
