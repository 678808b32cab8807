package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/edvin/backupvault/internal/model"
)

// FreeDailyLimit is how many times a free-plan user may perform an action
// per calendar day (UTC).
const FreeDailyLimit = 1

// UsageService gates free-plan actions with per-day counters.
type UsageService struct {
	db DB
}

func NewUsageService(db DB) *UsageService {
	return &UsageService{db: db}
}

// TryConsume records one action for userID on day and reports whether it
// was allowed. Users on an active paid plan are always allowed and are not
// counted. For everybody else the counter is created and incremented by a
// single conditional upsert, so concurrent callers cannot exceed the limit.
func (s *UsageService) TryConsume(ctx context.Context, userID, actionType string, day time.Time) (bool, error) {
	plan, err := s.effectivePlan(ctx, userID)
	if err != nil {
		return false, err
	}
	if plan != model.PlanFree {
		return true, nil
	}

	var count int
	err = s.db.QueryRow(ctx,
		`INSERT INTO usage_tracking (user_id, action_type, action_date, count)
		 VALUES ($1, $2, $3, 1)
		 ON CONFLICT (user_id, action_type, action_date)
		 DO UPDATE SET count = usage_tracking.count + 1
		 WHERE usage_tracking.count < $4
		 RETURNING count`,
		userID, actionType, calendarDay(day), FreeDailyLimit,
	).Scan(&count)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("consume %s usage for %s: %w", actionType, userID, err)
	}
	return true, nil
}

// Count returns the recorded usage for one day.
func (s *UsageService) Count(ctx context.Context, userID, actionType string, day time.Time) (int, error) {
	var count int
	err := s.db.QueryRow(ctx,
		`SELECT count FROM usage_tracking WHERE user_id = $1 AND action_type = $2 AND action_date = $3`,
		userID, actionType, calendarDay(day),
	).Scan(&count)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get %s usage for %s: %w", actionType, userID, err)
	}
	return count, nil
}

// effectivePlan returns the plan that applies right now. A paid plan whose
// subscription is not active counts as free, as does a missing profile.
func (s *UsageService) effectivePlan(ctx context.Context, userID string) (string, error) {
	var plan, status string
	err := s.db.QueryRow(ctx,
		`SELECT subscription_plan, subscription_status FROM profiles WHERE id = $1`, userID,
	).Scan(&plan, &status)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.PlanFree, nil
	}
	if err != nil {
		return "", fmt.Errorf("get plan for %s: %w", userID, err)
	}
	if status != model.SubscriptionActive {
		return model.PlanFree, nil
	}
	return plan, nil
}

func calendarDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
