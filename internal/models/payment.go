package models

import (
	"fmt"
	"time"
)

// PaymentStatus represents the status of a quota purchase
type PaymentStatus string

const (
	PaymentStatusPending    PaymentStatus = "pending"
	PaymentStatusProcessing PaymentStatus = "processing"
	PaymentStatusSucceeded  PaymentStatus = "succeeded"
	PaymentStatusFailed     PaymentStatus = "failed"
	PaymentStatusCanceled   PaymentStatus = "canceled"
)

// Terminal reports whether a status is a sink: once a payment reaches a
// terminal status it never transitions again, and duplicate webhook
// notifications become no-ops.
func (s PaymentStatus) Terminal() bool {
	switch s {
	case PaymentStatusSucceeded, PaymentStatusFailed, PaymentStatusCanceled:
		return true
	}
	return false
}

// Payment represents an attempt to purchase additional photo quota for a group
type Payment struct {
	ID      uint `gorm:"column:id;primaryKey" json:"id"`
	UserID  uint `gorm:"column:user_id;not null;index" json:"user_id"`
	GroupID uint `gorm:"column:group_id;not null;index" json:"group_id"`

	// Provider intent
	ProviderIntentID string `gorm:"column:provider_intent_id;size:100;uniqueIndex;not null" json:"provider_intent_id"`
	ClientSecret     string `gorm:"column:client_secret;size:255" json:"-"`

	// Amount and quota units
	AmountCents int `gorm:"column:amount_cents;not null" json:"amount_cents"`
	PhotosAdded int `gorm:"column:photos_added;not null" json:"photos_added"`

	Status       PaymentStatus `gorm:"column:status;size:20;default:pending;index" json:"status"`
	ErrorMessage string        `gorm:"column:error_message;size:500" json:"error_message,omitempty"`

	CreatedAt   time.Time  `gorm:"column:created_at" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"column:updated_at" json:"updated_at"`
	CompletedAt *time.Time `gorm:"column:completed_at" json:"completed_at"`
}

func (Payment) TableName() string {
	return "payments"
}

// ErrTerminalPayment is returned by Transition when the payment already
// reached a terminal status. Callers treat it as "already handled".
type ErrTerminalPayment struct {
	Status PaymentStatus
}

func (e *ErrTerminalPayment) Error() string {
	return fmt.Sprintf("payment already in terminal status %q", e.Status)
}

// Transition applies a guarded state change. Allowed moves:
//
//	pending    -> processing | succeeded | failed | canceled
//	processing -> succeeded | failed | canceled
//
// Any move out of a terminal status returns ErrTerminalPayment. Quota is
// credited by the caller only on a successful move INTO succeeded, which is
// what makes replayed webhooks credit at most once.
func (p *Payment) Transition(to PaymentStatus) error {
	if p.Status.Terminal() {
		return &ErrTerminalPayment{Status: p.Status}
	}
	if to == PaymentStatusPending {
		return fmt.Errorf("cannot transition back to pending from %q", p.Status)
	}
	p.Status = to
	if to.Terminal() {
		now := time.Now().UTC()
		p.CompletedAt = &now
	}
	return nil
}
