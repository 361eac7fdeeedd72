package account

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/officekit/accountd/pkg/apperror"
	"github.com/officekit/accountd/svc/signup"
	"github.com/officekit/accountd/svc/subscription"
	"github.com/officekit/accountd/svc/tenant"
)

type handlers struct {
	deps Deps
}

func (h *handlers) signup(w http.ResponseWriter, r *http.Request) {
	var req signup.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, h.deps.Log, r, apperror.Validation("request body must be valid JSON"))
		return
	}

	res, err := h.deps.Signup.Signup(r.Context(), req)
	if err != nil {
		writeError(w, h.deps.Log, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

type subscriptionResponse struct {
	ID              string     `json:"id"`
	TenantID        string     `json:"tenantId"`
	PlanCode        string     `json:"planCode"`
	Status          string     `json:"status"`
	BillingCycle    string     `json:"billingCycle"`
	PriceCents      int64      `json:"priceCents"`
	StartDate       time.Time  `json:"startDate"`
	EndDate         time.Time  `json:"endDate"`
	NextBillingDate time.Time  `json:"nextBillingDate"`
	TrialEndDate    *time.Time `json:"trialEndDate,omitempty"`
	CancelledAt     *time.Time `json:"cancelledAt,omitempty"`
	AutoRenew       bool       `json:"autoRenew"`
}

func toSubscriptionResponse(sub subscription.Subscription) subscriptionResponse {
	return subscriptionResponse{
		ID:              sub.ID.String(),
		TenantID:        sub.TenantID,
		PlanCode:        sub.PlanCode,
		Status:          sub.Status.String(),
		BillingCycle:    sub.BillingCycle.String(),
		PriceCents:      sub.PriceCents,
		StartDate:       sub.StartDate,
		EndDate:         sub.EndDate,
		NextBillingDate: sub.NextBillingDate,
		TrialEndDate:    sub.TrialEndDate,
		CancelledAt:     sub.CancelledAt,
		AutoRenew:       sub.AutoRenew,
	}
}

func (h *handlers) currentSubscription(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "tenantID")
	sub, err := h.deps.Subscriptions.Current(r.Context(), tenantID)
	if err != nil {
		writeError(w, h.deps.Log, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toSubscriptionResponse(sub))
}

func (h *handlers) createTenantUser(w http.ResponseWriter, r *http.Request) {
	var req tenant.NewUser
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, h.deps.Log, r, apperror.Validation("request body must be valid JSON"))
		return
	}
	if req.Email == "" {
		writeError(w, h.deps.Log, r, apperror.Validation("email is required"))
		return
	}

	tenantID := chi.URLParam(r, "tenantID")
	if err := h.deps.Users.CreateUser(r.Context(), tenantID, req); err != nil {
		writeError(w, h.deps.Log, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"email": req.Email})
}

func (h *handlers) tenantSeats(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "tenantID")
	sub, err := h.deps.Subscriptions.Current(r.Context(), tenantID)
	if err != nil {
		writeError(w, h.deps.Log, r, err)
		return
	}
	seats, err := h.deps.Seats.Seats(r.Context(), tenantID, sub.PlanCode)
	if err != nil {
		writeError(w, h.deps.Log, r, err)
		return
	}
	writeJSON(w, http.StatusOK, seats)
}

func (h *handlers) changeSubscription(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CurrentPlanCode string `json:"currentPlanCode"`
		NewPlanCode     string `json:"newPlanCode"`
		BillingCycle    string `json:"billingCycle"`
		Reason          string `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, h.deps.Log, r, apperror.Validation("request body must be valid JSON"))
		return
	}
	if req.NewPlanCode == "" {
		writeError(w, h.deps.Log, r, apperror.Validation("newPlanCode is required"))
		return
	}

	tenantID := chi.URLParam(r, "tenantID")
	sub, err := h.deps.Subscriptions.Change(r.Context(), tenantID, subscription.PlanChange{
		CurrentPlanCode: req.CurrentPlanCode,
		NewPlanCode:     req.NewPlanCode,
		BillingCycle:    subscription.BillingCycle(req.BillingCycle),
		Reason:          req.Reason,
	})
	if err != nil {
		writeError(w, h.deps.Log, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toSubscriptionResponse(sub))
}

func (h *handlers) cancelSubscription(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Reason string `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, h.deps.Log, r, apperror.Validation("request body must be valid JSON"))
		return
	}
	if req.Reason == "" {
		req.Reason = "customer request"
	}

	tenantID := chi.URLParam(r, "tenantID")
	sub, err := h.deps.Subscriptions.Cancel(r.Context(), tenantID, req.Reason)
	if err != nil {
		writeError(w, h.deps.Log, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toSubscriptionResponse(sub))
}

type sweepResponse struct {
	Processed int `json:"processed"`
}

func (h *handlers) processRenewals(w http.ResponseWriter, r *http.Request) {
	processed, err := h.deps.Subscriptions.ProcessRenewals(r.Context())
	if err != nil {
		writeError(w, h.deps.Log, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sweepResponse{Processed: processed})
}

func (h *handlers) processTrialExpirations(w http.ResponseWriter, r *http.Request) {
	processed, err := h.deps.Subscriptions.ProcessTrialExpirations(r.Context())
	if err != nil {
		writeError(w, h.deps.Log, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sweepResponse{Processed: processed})
}

func (h *handlers) retryNotification(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "notificationID"))
	if err != nil {
		writeError(w, h.deps.Log, r, apperror.Validation("notification id must be a valid UUID"))
		return
	}
	if err := h.deps.Notifications.Retry(r.Context(), id); err != nil {
		writeError(w, h.deps.Log, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) health(w http.ResponseWriter, r *http.Request) {
	if h.deps.Healthcheck != nil {
		if err := h.deps.Healthcheck(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
