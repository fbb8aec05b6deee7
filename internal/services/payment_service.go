package services

import (
	"errors"
	"fmt"
	"log"
	"strconv"

	"github.com/closo/backend/internal/config"
	"github.com/closo/backend/internal/models"
	"github.com/closo/backend/internal/payments"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	// ErrPaymentNotFound means no payment row matches the provider intent id
	ErrPaymentNotFound = errors.New("payment not found")

	// ErrGroupNotFound means the purchase targets a group that does not exist
	ErrGroupNotFound = errors.New("group not found")

	// ErrQuotaInconsistency means a succeeded payment references a vanished
	// group. The payment is marked failed so the paid credit is not silently
	// lost, and the webhook handler must surface the error.
	ErrQuotaInconsistency = errors.New("succeeded payment references a deleted group")
)

// PaymentService is the quota ledger: it creates purchase intents and applies
// the payment state machine. Quota is credited in exactly one place - the
// transition into succeeded - inside a single database transaction.
type PaymentService struct {
	db       *gorm.DB
	cfg      *config.Config
	provider *payments.Client
}

func NewPaymentService(db *gorm.DB, cfg *config.Config, provider *payments.Client) *PaymentService {
	return &PaymentService{db: db, cfg: cfg, provider: provider}
}

// CreateIntent asks the provider for a payment intent and records a pending
// payment row. Quota is untouched until the succeeded webhook arrives.
func (s *PaymentService) CreateIntent(userID, groupID uint) (*models.Payment, error) {
	var group models.Group
	if err := s.db.First(&group, groupID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrGroupNotFound
		}
		return nil, fmt.Errorf("failed to load group: %w", err)
	}

	intent, err := s.provider.CreateIntent(s.cfg.QuotaUnitPriceCents, "eur", map[string]string{
		"group_id":      strconv.FormatUint(uint64(groupID), 10),
		"user_id":       strconv.FormatUint(uint64(userID), 10),
		"photos_to_add": strconv.Itoa(s.cfg.QuotaUnitPhotos),
	})
	if err != nil {
		return nil, err
	}

	payment := models.Payment{
		UserID:           userID,
		GroupID:          groupID,
		ProviderIntentID: intent.ID,
		ClientSecret:     intent.ClientSecret,
		AmountCents:      s.cfg.QuotaUnitPriceCents,
		PhotosAdded:      s.cfg.QuotaUnitPhotos,
		Status:           models.PaymentStatusPending,
	}
	if err := s.db.Create(&payment).Error; err != nil {
		return nil, fmt.Errorf("failed to record payment: %w", err)
	}
	return &payment, nil
}

// HandleSucceeded applies the succeeded transition for an intent. Idempotent:
// an already-succeeded payment is returned unchanged and quota stays as it
// is. Row locking plus the terminal-state guard make concurrent or replayed
// webhook deliveries credit the group's ceiling exactly once.
func (s *PaymentService) HandleSucceeded(intentID string) (*models.Payment, error) {
	var payment models.Payment
	var inconsistent bool

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("provider_intent_id = ?", intentID).
			First(&payment).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrPaymentNotFound
			}
			return fmt.Errorf("failed to load payment: %w", err)
		}

		if payment.Status == models.PaymentStatusSucceeded {
			// Duplicate delivery - already credited
			return nil
		}

		var group models.Group
		if err := tx.First(&group, payment.GroupID).Error; err != nil {
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("failed to load group: %w", err)
			}
			// Group vanished between intent creation and webhook delivery
			if terr := payment.Transition(models.PaymentStatusFailed); terr != nil {
				var termErr *models.ErrTerminalPayment
				if errors.As(terr, &termErr) {
					return nil
				}
				return terr
			}
			payment.ErrorMessage = "group no longer exists"
			if err := tx.Save(&payment).Error; err != nil {
				return fmt.Errorf("failed to mark payment failed: %w", err)
			}
			inconsistent = true
			return nil
		}

		if err := payment.Transition(models.PaymentStatusSucceeded); err != nil {
			var termErr *models.ErrTerminalPayment
			if errors.As(err, &termErr) {
				// Already failed or canceled - never credit from here
				return nil
			}
			return err
		}

		if err := tx.Model(&models.Group{}).Where("id = ?", group.ID).
			Update("max_photos", gorm.Expr("max_photos + ?", payment.PhotosAdded)).Error; err != nil {
			return fmt.Errorf("failed to credit group quota: %w", err)
		}

		if err := tx.Save(&payment).Error; err != nil {
			return fmt.Errorf("failed to update payment: %w", err)
		}

		log.Printf("Payment %s succeeded: group %d ceiling +%d photos", intentID, group.ID, payment.PhotosAdded)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if inconsistent {
		return &payment, ErrQuotaInconsistency
	}
	return &payment, nil
}

// HandleFailed marks an intent's payment failed. No-op when the payment is
// already terminal. Quota is never touched on this path.
func (s *PaymentService) HandleFailed(intentID, message string) (*models.Payment, error) {
	return s.markTerminal(intentID, models.PaymentStatusFailed, message)
}

// HandleCanceled marks an intent's payment canceled.
func (s *PaymentService) HandleCanceled(intentID string) (*models.Payment, error) {
	return s.markTerminal(intentID, models.PaymentStatusCanceled, "")
}

// HandleProcessing records the provider's intermediate processing state.
func (s *PaymentService) HandleProcessing(intentID string) (*models.Payment, error) {
	var payment models.Payment
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("provider_intent_id = ?", intentID).
			First(&payment).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrPaymentNotFound
			}
			return fmt.Errorf("failed to load payment: %w", err)
		}
		if err := payment.Transition(models.PaymentStatusProcessing); err != nil {
			var termErr *models.ErrTerminalPayment
			if errors.As(err, &termErr) {
				return nil
			}
			return err
		}
		return tx.Save(&payment).Error
	})
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

func (s *PaymentService) markTerminal(intentID string, status models.PaymentStatus, message string) (*models.Payment, error) {
	var payment models.Payment
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("provider_intent_id = ?", intentID).
			First(&payment).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrPaymentNotFound
			}
			return fmt.Errorf("failed to load payment: %w", err)
		}

		if err := payment.Transition(status); err != nil {
			var termErr *models.ErrTerminalPayment
			if errors.As(err, &termErr) {
				return nil
			}
			return err
		}
		if message != "" {
			payment.ErrorMessage = message
		}
		return tx.Save(&payment).Error
	})
	if err != nil {
		return nil, err
	}
	return &payment, nil
}
