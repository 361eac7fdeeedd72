package account

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/officekit/accountd/pkg/apperror"
	"github.com/officekit/accountd/svc/notification"
	"github.com/officekit/accountd/svc/subscription"
	"github.com/officekit/accountd/svc/tenant"
)

type errorResponse struct {
	Kind       string   `json:"kind"`
	Message    string   `json:"message"`
	Violations []string `json:"violations,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeError maps the error taxonomy onto HTTP statuses. Unclassified
// errors are reported as internal without leaking their message.
func writeError(w http.ResponseWriter, log *slog.Logger, r *http.Request, err error) {
	err = classify(err)

	var appErr *apperror.Error
	if !errors.As(err, &appErr) {
		appErr = apperror.New(apperror.KindInternal, "internal error")
	}

	status := http.StatusInternalServerError
	switch appErr.Kind {
	case apperror.KindValidation:
		status = http.StatusBadRequest
	case apperror.KindConflict:
		status = http.StatusConflict
	case apperror.KindNotFound:
		status = http.StatusNotFound
	case apperror.KindProvisioning:
		status = http.StatusBadGateway
	case apperror.KindIncomplete, apperror.KindInternal:
		status = http.StatusInternalServerError
	}

	if status >= http.StatusInternalServerError {
		log.ErrorContext(r.Context(), "request failed",
			slog.String("path", r.URL.Path),
			slog.Any("error", err))
	}

	body := errorResponse{
		Kind:       string(appErr.Kind),
		Message:    appErr.Message,
		Violations: appErr.Violations,
	}
	if status == http.StatusInternalServerError {
		body.Message = "internal error"
	}
	writeJSON(w, status, body)
}

// classify lifts known domain sentinels into the tagged error taxonomy.
func classify(err error) error {
	switch {
	case apperror.KindOf(err) != apperror.KindInternal:
		return err
	case errors.Is(err, subscription.ErrNoChange),
		errors.Is(err, subscription.ErrUnknownBillingCycle):
		return apperror.Wrap(apperror.KindValidation, err.Error(), err)
	case errors.Is(err, subscription.ErrAlreadySubscribed),
		errors.Is(err, subscription.ErrPlanMismatch),
		errors.Is(err, subscription.ErrUserLimitReached),
		errors.Is(err, tenant.ErrNotActive),
		errors.Is(err, notification.ErrAlreadySent):
		return apperror.Wrap(apperror.KindConflict, err.Error(), err)
	case errors.Is(err, subscription.ErrPlanNotFound),
		errors.Is(err, subscription.ErrTenantHasNoSub),
		errors.Is(err, subscription.ErrNotFound),
		errors.Is(err, tenant.ErrNotFound),
		errors.Is(err, notification.ErrNotFound):
		return apperror.Wrap(apperror.KindNotFound, err.Error(), err)
	default:
		return err
	}
}
