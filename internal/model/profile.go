package model

import "time"

// Profile holds the subscription state of a user.
type Profile struct {
	ID                 string    `json:"id"`
	SubscriptionPlan   string    `json:"subscription_plan"`
	SubscriptionStatus string    `json:"subscription_status"`
	MollieCustomerID   *string   `json:"mollie_customer_id,omitempty"`
	UpdatedAt          time.Time `json:"updated_at"`
}

const (
	PlanFree     = "free"
	PlanPro      = "pro"
	PlanBusiness = "business"
)

const SubscriptionActive = "active"
