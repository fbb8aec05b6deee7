package handlers

import (
	"bytes"
	"log"

	"github.com/closo/backend/internal/database"
	"github.com/closo/backend/internal/middleware"
	"github.com/closo/backend/internal/models"
	"github.com/closo/backend/internal/storage"
	"github.com/closo/backend/internal/upload"
	"github.com/gofiber/fiber/v2"
)

type UserHandler struct {
	gateway *storage.Gateway
}

func NewUserHandler(gateway *storage.Gateway) *UserHandler {
	return &UserHandler{gateway: gateway}
}

// UpdateProfileRequest carries the editable profile fields
type UpdateProfileRequest struct {
	Bio   string `json:"bio"`
	Email string `json:"email"`
}

// UpdateProfile changes bio and email for the caller
func (h *UserHandler) UpdateProfile(c *fiber.Ctx) error {
	user := middleware.GetCurrentUser(c)
	if user == nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"success": false,
			"message": "Unauthorized",
		})
	}

	var req UpdateProfileRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Invalid request body",
		})
	}

	updates := map[string]interface{}{}
	if req.Bio != "" {
		updates["bio"] = req.Bio
	}
	if req.Email != "" && req.Email != user.Email {
		var count int64
		database.DB.Model(&models.User{}).Where("email = ? AND id != ?", req.Email, user.ID).Count(&count)
		if count > 0 {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"success": false,
				"message": "Email already in use",
			})
		}
		updates["email"] = req.Email
	}

	if len(updates) == 0 {
		return c.JSON(fiber.Map{
			"success": true,
			"message": "Nothing to update",
			"data":    user,
		})
	}

	if err := database.DB.Model(user).Updates(updates).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"message": "Failed to update profile",
		})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Profile updated",
		"data":    user,
	})
}

// UploadAvatar stores a new avatar image and replaces the old one
func (h *UserHandler) UploadAvatar(c *fiber.Ctx) error {
	user := middleware.GetCurrentUser(c)
	if user == nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"success": false,
			"message": "Unauthorized",
		})
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "No file provided",
		})
	}

	data, err := upload.ValidateImage(fileHeader)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": err.Error(),
		})
	}

	ref, err := h.gateway.Save(bytes.NewReader(data), fileHeader.Filename)
	if err != nil {
		return storageErrorResponse(c, err)
	}

	oldRef := user.AvatarURL
	if err := database.DB.Model(user).Update("avatar_url", ref).Error; err != nil {
		// Best effort: don't leave the new blob orphaned
		if newID, ok := storage.FileIDFromReference(ref); ok {
			if delErr := h.gateway.Delete(newID); delErr != nil {
				log.Printf("Avatar cleanup failed for %s: %v", newID, delErr)
			}
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"message": "Failed to update avatar",
		})
	}

	if oldID, ok := storage.FileIDFromReference(oldRef); ok {
		if err := h.gateway.Delete(oldID); err != nil {
			log.Printf("Failed to delete old avatar %s: %v", oldID, err)
		}
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Avatar updated",
		"data":    fiber.Map{"avatar_url": ref},
	})
}
