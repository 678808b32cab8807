package handler

import (
	"context"
	"mime"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/edvin/backupvault/internal/api/request"
	"github.com/edvin/backupvault/internal/api/response"
)

// PlanService is the part of core.PlanService the webhook uses.
type PlanService interface {
	ApplyPayment(ctx context.Context, paymentID string) (bool, error)
}

type Webhook struct {
	plans PlanService
}

func NewWebhook(plans PlanService) *Webhook {
	return &Webhook{plans: plans}
}

// Mollie handles payment notifications. Mollie posts only the payment id as
// a form value; the payment itself is fetched from the Mollie API before
// anything changes. Unknown payments are acknowledged so Mollie stops
// retrying them.
func (h *Webhook) Mollie(w http.ResponseWriter, r *http.Request) {
	var req request.MollieWebhook
	if isJSON(r) {
		if err := request.Decode(r, &req); err != nil {
			response.WriteError(w, http.StatusBadRequest, "invalid request")
			return
		}
	} else {
		r.Body = http.MaxBytesReader(w, r.Body, 64<<10)
		if err := r.ParseForm(); err != nil {
			response.WriteError(w, http.StatusBadRequest, "invalid request")
			return
		}
		req.ID = r.PostForm.Get("id")
		if err := request.Validate(&req); err != nil {
			response.WriteError(w, http.StatusBadRequest, "invalid request")
			return
		}
	}

	updated, err := h.plans.ApplyPayment(r.Context(), req.ID)
	if err != nil {
		response.WriteServiceError(w, r, err)
		return
	}

	zerolog.Ctx(r.Context()).Info().
		Str("payment_id", req.ID).
		Bool("plan_updated", updated).
		Msg("mollie webhook processed")
	response.WriteJSON(w, http.StatusOK, map[string]bool{"received": true})
}

func isJSON(r *http.Request) bool {
	mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mt == "application/json"
}
