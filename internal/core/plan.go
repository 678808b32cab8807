package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/edvin/backupvault/internal/model"
	"github.com/edvin/backupvault/internal/payment"
)

// PaymentClient fetches verified payment state from the payment provider.
type PaymentClient interface {
	GetPayment(ctx context.Context, id string) (*payment.Payment, error)
}

// planByAmount maps a monthly charge to the plan it buys.
var planByAmount = map[string]string{
	"9.00":  model.PlanPro,
	"29.00": model.PlanBusiness,
}

// PlanService applies subscription changes reported by payment webhooks.
type PlanService struct {
	db       DB
	payments PaymentClient
}

func NewPlanService(db DB, payments PaymentClient) *PlanService {
	return &PlanService{db: db, payments: payments}
}

// ApplyPayment looks the payment up with the provider and, when it is paid
// by a known customer, updates that customer's plan. The notification
// itself is never trusted beyond the payment id. It reports whether a
// profile changed.
func (s *PlanService) ApplyPayment(ctx context.Context, paymentID string) (bool, error) {
	if paymentID == "" {
		return false, fmt.Errorf("payment id: %w", ErrInvalidInput)
	}

	p, err := s.payments.GetPayment(ctx, paymentID)
	if errors.Is(err, payment.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("verify payment %s: %w", paymentID, err)
	}
	if p.Status != payment.StatusPaid || p.CustomerID == "" {
		return false, nil
	}
	plan, ok := planByAmount[p.Amount.Value]
	if !ok {
		return false, nil
	}

	tag, err := s.db.Exec(ctx,
		`UPDATE profiles SET subscription_plan = $1, subscription_status = $2, updated_at = now()
		 WHERE mollie_customer_id = $3`,
		plan, model.SubscriptionActive, p.CustomerID,
	)
	if err != nil {
		return false, fmt.Errorf("update plan for customer %s: %w", p.CustomerID, err)
	}
	return tag.RowsAffected() > 0, nil
}
