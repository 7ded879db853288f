package domain

import (
	"fmt"
	"time"
)

// Plan тарифный план
type Plan string

const (
	PlanFree       Plan = "FREE"
	PlanBasic      Plan = "BASIC"
	PlanPro        Plan = "PRO"
	PlanEnterprise Plan = "ENTERPRISE"
)

// Valid проверяет, что план входит в закрытый набор
func (p Plan) Valid() bool {
	switch p {
	case PlanFree, PlanBasic, PlanPro, PlanEnterprise:
		return true
	default:
		return false
	}
}

// ParsePlan преобразует строку в Plan
func ParsePlan(s string) (Plan, error) {
	p := Plan(s)
	if !p.Valid() {
		return "", fmt.Errorf("unknown plan %q", s)
	}
	return p, nil
}

// SubscriptionStatus статус подписки
type SubscriptionStatus string

const (
	SubscriptionStatusActive   SubscriptionStatus = "ACTIVE"
	SubscriptionStatusCanceled SubscriptionStatus = "CANCELED"
	SubscriptionStatusPastDue  SubscriptionStatus = "PAST_DUE"
	SubscriptionStatusUnpaid   SubscriptionStatus = "UNPAID"
)

// Valid проверяет, что статус входит в закрытый набор
func (s SubscriptionStatus) Valid() bool {
	switch s {
	case SubscriptionStatusActive, SubscriptionStatusCanceled, SubscriptionStatusPastDue, SubscriptionStatusUnpaid:
		return true
	default:
		return false
	}
}

// Subscription - локальное отражение состояния подписки в Stripe.
// Ровно одна запись на пользователя.
type Subscription struct {
	ID                   string             `json:"id" db:"id"`
	UserID               string             `json:"userId" db:"user_id"`
	Plan                 Plan               `json:"plan" db:"plan"`
	Status               SubscriptionStatus `json:"status" db:"status"`
	StripeCustomerID     *string            `json:"stripeCustomerId" db:"stripe_customer_id"`
	StripeSubscriptionID *string            `json:"stripeSubscriptionId" db:"stripe_subscription_id"`
	StripePriceID        *string            `json:"stripePriceId" db:"stripe_price_id"`
	CurrentPeriodEnd     *time.Time         `json:"currentPeriodEnd" db:"current_period_end"`
	CreatedAt            time.Time          `json:"createdAt" db:"created_at"`
	UpdatedAt            time.Time          `json:"updatedAt" db:"updated_at"`
}

// NewDefaultSubscription создает подписку FREE/ACTIVE для нового пользователя
func NewDefaultSubscription(id, userID string, now time.Time) *Subscription {
	return &Subscription{
		ID:        id,
		UserID:    userID,
		Plan:      PlanFree,
		Status:    SubscriptionStatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// SubscriptionUpdate - набор полей для частичного обновления подписки.
// nil означает "не менять"; Clear* - явно обнулить поле.
type SubscriptionUpdate struct {
	Plan                 *Plan
	Status               *SubscriptionStatus
	StripeSubscriptionID *string
	StripePriceID        *string
	CurrentPeriodEnd     *time.Time
	ClearPriceID         bool
	ClearPeriodEnd       bool
}

// Apply применяет обновление к записи
func (u SubscriptionUpdate) Apply(s *Subscription, now time.Time) {
	if u.Plan != nil {
		s.Plan = *u.Plan
	}
	if u.Status != nil {
		s.Status = *u.Status
	}
	if u.StripeSubscriptionID != nil {
		v := *u.StripeSubscriptionID
		s.StripeSubscriptionID = &v
	}
	if u.StripePriceID != nil {
		v := *u.StripePriceID
		s.StripePriceID = &v
	}
	if u.ClearPriceID {
		s.StripePriceID = nil
	}
	if u.CurrentPeriodEnd != nil {
		v := *u.CurrentPeriodEnd
		s.CurrentPeriodEnd = &v
	}
	if u.ClearPeriodEnd {
		s.CurrentPeriodEnd = nil
	}
	s.UpdatedAt = now
}

// PriceTable - статическое соответствие Stripe price id -> план
type PriceTable map[string]Plan

// PlanFor возвращает план для price id; неизвестная цена дает FREE
func (t PriceTable) PlanFor(priceID string) Plan {
	if p, ok := t[priceID]; ok && priceID != "" {
		return p
	}
	return PlanFree
}
