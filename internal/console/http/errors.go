package http

import (
	"errors"
	"net/http"

	"github.com/nekogravitycat/record-console/internal/catalog"
	"github.com/nekogravitycat/record-console/internal/console"
	"github.com/nekogravitycat/record-console/internal/filter"
	"github.com/nekogravitycat/record-console/internal/ledger"
	"github.com/nekogravitycat/record-console/internal/pkg/apperror"
	"github.com/nekogravitycat/record-console/internal/record"
)

// MapError translates console, filter, catalog and store errors into HTTP errors.
// It returns nil for errors it does not know.
func MapError(err error) *apperror.AppError {
	var rej *filter.Rejection
	if errors.As(err, &rej) {
		code := http.StatusBadRequest
		if rej.Reason == filter.ReasonInsufficientCriteria {
			code = http.StatusUnprocessableEntity
		}
		return apperror.Wrap(err, code, rej.Error()).WithReason(string(rej.Reason))
	}

	switch {
	case errors.Is(err, console.ErrForbidden), errors.Is(err, ledger.ErrNoLedger):
		return apperror.Wrap(err, http.StatusForbidden, "forbidden: "+err.Error())
	case errors.Is(err, catalog.ErrUnknownFamily):
		return apperror.Wrap(err, http.StatusNotFound, err.Error())
	case errors.Is(err, record.ErrNotFound):
		return apperror.Wrap(err, http.StatusNotFound, "record not found")
	case errors.Is(err, catalog.ErrInvalidValue),
		errors.Is(err, catalog.ErrUnknownField),
		errors.Is(err, console.ErrNotUpdatable),
		errors.Is(err, console.ErrSecretField),
		errors.Is(err, console.ErrNothingToWrite):
		return apperror.Wrap(err, http.StatusBadRequest, err.Error()).WithReason("invalid_value")
	case errors.Is(err, record.ErrConflict):
		return apperror.Wrap(err, http.StatusConflict, err.Error()).WithReason("conflict")
	case errors.Is(err, record.ErrRowMismatch):
		return apperror.Wrap(err, http.StatusConflict, err.Error()).WithReason("row_mismatch")
	case errors.Is(err, console.ErrDeleteSelf):
		return apperror.Wrap(err, http.StatusConflict, err.Error())
	case errors.Is(err, record.ErrStoreUnavailable):
		return apperror.Wrap(err, http.StatusServiceUnavailable, "record store unavailable, try again").WithReason("store_unavailable")
	}
	return nil
}
