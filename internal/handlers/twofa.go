package handlers

import (
	"bytes"
	"encoding/base64"
	"image/png"

	"github.com/closo/backend/internal/database"
	"github.com/closo/backend/internal/middleware"
	"github.com/gofiber/fiber/v2"
	"github.com/pquerna/otp/totp"
	"golang.org/x/crypto/bcrypt"
)

type TwoFAHandler struct{}

func NewTwoFAHandler() *TwoFAHandler {
	return &TwoFAHandler{}
}

// Status returns whether 2FA is enabled for the caller
func (h *TwoFAHandler) Status(c *fiber.Ctx) error {
	user := middleware.GetCurrentUser(c)
	if user == nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"success": false,
			"message": "Unauthorized",
		})
	}
	return c.JSON(fiber.Map{
		"success": true,
		"data":    fiber.Map{"enabled": user.TwoFAEnabled},
	})
}

// Setup generates a new TOTP secret and returns a QR code for the
// authenticator app. The secret only becomes active after Verify.
func (h *TwoFAHandler) Setup(c *fiber.Ctx) error {
	user := middleware.GetCurrentUser(c)
	if user == nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"success": false,
			"message": "Unauthorized",
		})
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      "Closo",
		AccountName: user.Username,
	})
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"message": "Failed to generate 2FA secret",
		})
	}

	img, err := key.Image(200, 200)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"message": "Failed to generate QR code",
		})
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"message": "Failed to encode QR code",
		})
	}

	// Store the secret disabled until the first code is verified
	if err := database.DB.Model(user).Updates(map[string]interface{}{
		"two_fa_secret":  key.Secret(),
		"two_fa_enabled": false,
	}).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"message": "Failed to store 2FA secret",
		})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"secret":  key.Secret(),
			"qr_code": "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()),
		},
	})
}

// VerifyRequest carries the first TOTP code after setup
type VerifyRequest struct {
	Code string `json:"code"`
}

// Verify activates 2FA once the user proves their authenticator works
func (h *TwoFAHandler) Verify(c *fiber.Ctx) error {
	user := middleware.GetCurrentUser(c)
	if user == nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"success": false,
			"message": "Unauthorized",
		})
	}

	var req VerifyRequest
	if err := c.BodyParser(&req); err != nil || req.Code == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Code is required",
		})
	}

	if user.TwoFASecret == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "2FA is not set up",
		})
	}

	if !totp.Validate(req.Code, user.TwoFASecret) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Invalid code",
		})
	}

	if err := database.DB.Model(user).Update("two_fa_enabled", true).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"message": "Failed to enable 2FA",
		})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "2FA enabled",
	})
}

// DisableRequest requires the password to turn 2FA off
type DisableRequest struct {
	Password string `json:"password"`
}

// Disable turns 2FA off after re-authenticating with the password
func (h *TwoFAHandler) Disable(c *fiber.Ctx) error {
	user := middleware.GetCurrentUser(c)
	if user == nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"success": false,
			"message": "Unauthorized",
		})
	}

	var req DisableRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Invalid request body",
		})
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"success": false,
			"message": "Password is incorrect",
		})
	}

	if err := database.DB.Model(user).Updates(map[string]interface{}{
		"two_fa_enabled": false,
		"two_fa_secret":  "",
	}).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"message": "Failed to disable 2FA",
		})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "2FA disabled",
	})
}
