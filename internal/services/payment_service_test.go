package services

import (
	"path/filepath"
	"testing"

	"github.com/closo/backend/internal/config"
	"github.com/closo/backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newPaymentTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "payments.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Group{}, &models.Payment{}))
	return db
}

func newTestPaymentService(t *testing.T, db *gorm.DB) *PaymentService {
	t.Helper()
	cfg := &config.Config{QuotaUnitPhotos: 10, QuotaUnitPriceCents: 500}
	return NewPaymentService(db, cfg, nil)
}

func seedPendingPayment(t *testing.T, db *gorm.DB, intentID string) models.Group {
	t.Helper()
	group := models.Group{Name: "trip", InviteCode: "code" + intentID[:8], CreatorID: 1, MaxPhotos: 10}
	require.NoError(t, db.Create(&group).Error)

	payment := models.Payment{
		UserID:           1,
		GroupID:          group.ID,
		ProviderIntentID: intentID,
		ClientSecret:     intentID + "_secret",
		AmountCents:      500,
		PhotosAdded:      10,
		Status:           models.PaymentStatusPending,
	}
	require.NoError(t, db.Create(&payment).Error)
	return group
}

func TestHandleSucceededCreditsQuotaOnce(t *testing.T) {
	db := newPaymentTestDB(t)
	svc := newTestPaymentService(t, db)
	group := seedPendingPayment(t, db, "pi_replayed")

	payment, err := svc.HandleSucceeded("pi_replayed")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusSucceeded, payment.Status)
	require.NotNil(t, payment.CompletedAt)

	var after models.Group
	require.NoError(t, db.First(&after, group.ID).Error)
	assert.Equal(t, 20, after.MaxPhotos)

	// Duplicate webhook delivery: returned unchanged, no second credit
	again, err := svc.HandleSucceeded("pi_replayed")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusSucceeded, again.Status)

	require.NoError(t, db.First(&after, group.ID).Error)
	assert.Equal(t, 20, after.MaxPhotos)
}

func TestHandleSucceededVanishedGroup(t *testing.T) {
	db := newPaymentTestDB(t)
	svc := newTestPaymentService(t, db)
	group := seedPendingPayment(t, db, "pi_orphaned")

	require.NoError(t, db.Delete(&models.Group{}, group.ID).Error)

	payment, err := svc.HandleSucceeded("pi_orphaned")
	require.ErrorIs(t, err, ErrQuotaInconsistency)
	assert.Equal(t, models.PaymentStatusFailed, payment.Status)
	assert.Equal(t, "group no longer exists", payment.ErrorMessage)

	// The failed status was persisted, not just set in memory
	var stored models.Payment
	require.NoError(t, db.Where("provider_intent_id = ?", "pi_orphaned").First(&stored).Error)
	assert.Equal(t, models.PaymentStatusFailed, stored.Status)

	// The deleted group's ceiling stayed untouched
	var after models.Group
	require.NoError(t, db.Unscoped().First(&after, group.ID).Error)
	assert.Equal(t, 10, after.MaxPhotos)
}

func TestHandleSucceededUnknownIntent(t *testing.T) {
	db := newPaymentTestDB(t)
	svc := newTestPaymentService(t, db)

	_, err := svc.HandleSucceeded("pi_never_created")
	assert.ErrorIs(t, err, ErrPaymentNotFound)
}

func TestHandleSucceededAfterFailureNeverCredits(t *testing.T) {
	db := newPaymentTestDB(t)
	svc := newTestPaymentService(t, db)
	group := seedPendingPayment(t, db, "pi_declined")

	failed, err := svc.HandleFailed("pi_declined", "card declined")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusFailed, failed.Status)

	// An out-of-order succeeded event cannot revive a terminal payment
	payment, err := svc.HandleSucceeded("pi_declined")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusFailed, payment.Status)

	var after models.Group
	require.NoError(t, db.First(&after, group.ID).Error)
	assert.Equal(t, 10, after.MaxPhotos)
}
