package handlers

import (
	"github.com/closo/backend/internal/database"
	"github.com/gofiber/fiber/v2"
)

// Settings an admin may read and change at runtime. Everything else in
// system_preferences is internal state.
var editableSettings = map[string]string{
	"api_rate_limit":        "100",
	"backup_time":           "02:00",
	"backup_retention_days": "14",
	"backup_ftp_host":       "",
	"backup_ftp_port":       "21",
	"backup_ftp_username":   "",
	"backup_ftp_password":   "",
	"backup_ftp_path":       "/",
}

type SettingsHandler struct{}

func NewSettingsHandler() *SettingsHandler {
	return &SettingsHandler{}
}

// List returns the editable settings with their current values
func (h *SettingsHandler) List(c *fiber.Ctx) error {
	values := make(map[string]string, len(editableSettings))
	for key, fallback := range editableSettings {
		values[key] = database.GetSetting(key, fallback)
	}
	// Never return the FTP password
	if values["backup_ftp_password"] != "" {
		values["backup_ftp_password"] = "********"
	}
	return c.JSON(fiber.Map{
		"success": true,
		"data":    values,
	})
}

// Update writes one or more settings
func (h *SettingsHandler) Update(c *fiber.Ctx) error {
	var req map[string]string
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Invalid request body",
		})
	}

	for key, value := range req {
		if _, ok := editableSettings[key]; !ok {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"success": false,
				"message": "Unknown setting: " + key,
			})
		}
		if err := database.SetSetting(key, value); err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"success": false,
				"message": "Failed to save setting: " + key,
			})
		}
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Settings saved",
	})
}
