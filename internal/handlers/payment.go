package handlers

import (
	"errors"
	"log"

	"github.com/closo/backend/internal/config"
	"github.com/closo/backend/internal/database"
	"github.com/closo/backend/internal/middleware"
	"github.com/closo/backend/internal/models"
	"github.com/closo/backend/internal/payments"
	"github.com/closo/backend/internal/services"
	"github.com/gofiber/fiber/v2"
)

type PaymentHandler struct {
	cfg     *config.Config
	service *services.PaymentService
}

func NewPaymentHandler(cfg *config.Config, service *services.PaymentService) *PaymentHandler {
	return &PaymentHandler{cfg: cfg, service: service}
}

// CreateIntentRequest names the group to buy quota for
type CreateIntentRequest struct {
	GroupID uint `json:"group_id"`
}

// CreateIntent starts a payment to raise a group's photo limit. Any
// member of the group may pay.
func (h *PaymentHandler) CreateIntent(c *fiber.Ctx) error {
	userID := middleware.GetCurrentUserID(c)

	var req CreateIntentRequest
	if err := c.BodyParser(&req); err != nil || req.GroupID == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "group_id is required",
		})
	}

	if middleware.GetMembership(c, req.GroupID) == nil {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"success": false,
			"message": "You are not a member of this group",
		})
	}

	payment, err := h.service.CreateIntent(userID, req.GroupID)
	if err != nil {
		if errors.Is(err, services.ErrGroupNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"success": false,
				"message": "Group not found",
			})
		}
		log.Printf("Failed to create payment intent: %v", err)
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"success": false,
			"message": "Payment provider is unavailable",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"payment_id":      payment.ID,
			"client_secret":   payment.ClientSecret,
			"publishable_key": h.cfg.PaymentPublishableKey,
			"amount_cents":    payment.AmountCents,
			"photos_added":    payment.PhotosAdded,
			"status":          payment.Status,
		},
	})
}

// Status returns the current state of one of the caller's payments,
// for client polling while the provider processes the charge
func (h *PaymentHandler) Status(c *fiber.Ctx) error {
	userID := middleware.GetCurrentUserID(c)

	paymentID, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Invalid payment ID",
		})
	}

	var payment models.Payment
	if err := database.DB.Where("id = ? AND user_id = ?", paymentID, userID).First(&payment).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"success": false,
			"message": "Payment not found",
		})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    payment,
	})
}

// List returns the caller's payment history, newest first
func (h *PaymentHandler) List(c *fiber.Ctx) error {
	userID := middleware.GetCurrentUserID(c)

	var history []models.Payment
	if err := database.DB.Where("user_id = ?", userID).Order("created_at DESC").Find(&history).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"message": "Failed to load payments",
		})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    history,
	})
}

// Webhook receives provider notifications. The signature is verified
// over the raw body before anything is parsed. Unknown event types and
// unknown intents are acknowledged with 200 so the provider stops
// retrying; a quota inconsistency answers 500 for operator attention.
func (h *PaymentHandler) Webhook(c *fiber.Ctx) error {
	payload := c.Body()
	sigHeader := c.Get("Stripe-Signature")

	if err := payments.VerifySignature(payload, sigHeader, h.cfg.PaymentWebhookSecret, payments.DefaultSignatureTolerance); err != nil {
		log.Printf("Webhook signature rejected: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Invalid signature",
		})
	}

	event, err := payments.ParseEvent(payload)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Invalid payload",
		})
	}

	intentID := event.Data.Object.ID

	switch event.Type {
	case payments.EventIntentSucceeded:
		_, err = h.service.HandleSucceeded(intentID)
	case payments.EventIntentFailed:
		message := ""
		if event.Data.Object.LastPaymentError != nil {
			message = event.Data.Object.LastPaymentError.Message
		}
		_, err = h.service.HandleFailed(intentID, message)
	case payments.EventIntentCanceled:
		_, err = h.service.HandleCanceled(intentID)
	case payments.EventIntentProcessing:
		_, err = h.service.HandleProcessing(intentID)
	default:
		// Not an event we track
		return c.JSON(fiber.Map{"success": true})
	}

	switch {
	case err == nil:
		return c.JSON(fiber.Map{"success": true})
	case errors.Is(err, services.ErrPaymentNotFound):
		// An intent we never created, likely from another environment
		// sharing the provider account
		log.Printf("Webhook for unknown intent %s ignored", intentID)
		return c.JSON(fiber.Map{"success": true})
	case errors.Is(err, services.ErrQuotaInconsistency):
		log.Printf("Quota inconsistency on intent %s: %v", intentID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"message": "Quota update failed",
		})
	default:
		log.Printf("Webhook processing failed for intent %s: %v", intentID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"message": "Processing failed",
		})
	}
}
