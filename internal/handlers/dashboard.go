package handlers

import (
	"time"

	"github.com/closo/backend/internal/database"
	"github.com/closo/backend/internal/models"
	"github.com/closo/backend/internal/storage"
	"github.com/gofiber/fiber/v2"
)

// DashboardHandler serves platform-wide statistics for admins
type DashboardHandler struct {
	gateway *storage.Gateway
}

func NewDashboardHandler(gateway *storage.Gateway) *DashboardHandler {
	return &DashboardHandler{gateway: gateway}
}

// Stats returns platform totals plus current storage node health
func (h *DashboardHandler) Stats(c *fiber.Ctx) error {
	var userCount, groupCount, postCount, photoCount int64
	database.DB.Model(&models.User{}).Count(&userCount)
	database.DB.Model(&models.Group{}).Count(&groupCount)
	database.DB.Model(&models.Post{}).Count(&postCount)
	database.DB.Model(&models.Media{}).Count(&photoCount)

	since := time.Now().AddDate(0, 0, -7)
	var recentPosts, newUsers int64
	database.DB.Model(&models.Post{}).Where("created_at > ?", since).Count(&recentPosts)
	database.DB.Model(&models.User{}).Where("created_at > ?", since).Count(&newUsers)

	var succeededPayments int64
	var revenueCents int64
	database.DB.Model(&models.Payment{}).Where("status = ?", models.PaymentStatusSucceeded).Count(&succeededPayments)
	database.DB.Model(&models.Payment{}).Where("status = ?", models.PaymentStatusSucceeded).
		Select("COALESCE(SUM(amount_cents), 0)").Scan(&revenueCents)

	stats := fiber.Map{
		"users":              userCount,
		"groups":             groupCount,
		"posts":              postCount,
		"photos":             photoCount,
		"posts_last_7d":      recentPosts,
		"new_users_last_7d":  newUsers,
		"payments_succeeded": succeededPayments,
		"revenue_cents":      revenueCents,
	}

	// Storage health is best effort: the dashboard still renders when
	// the node is down
	if health, err := h.gateway.Health(); err == nil {
		stats["storage"] = health
	} else {
		stats["storage"] = fiber.Map{"status": "unreachable"}
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    stats,
	})
}

// ListUsers returns all accounts for the admin user table, paginated
func (h *DashboardHandler) ListUsers(c *fiber.Ctx) error {
	page, pageSize := parsePagination(c)

	var total int64
	database.DB.Model(&models.User{}).Count(&total)

	var users []models.User
	if err := database.DB.Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&users).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"message": "Failed to load users",
		})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"users":     users,
			"total":     total,
			"page":      page,
			"page_size": pageSize,
		},
	})
}

// SetUserActive enables or disables an account, admin only
func (h *DashboardHandler) SetUserActive(c *fiber.Ctx) error {
	userID, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Invalid user ID",
		})
	}

	var req struct {
		Active bool `json:"active"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Invalid request body",
		})
	}

	var user models.User
	if err := database.DB.First(&user, userID).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"success": false,
			"message": "User not found",
		})
	}

	if err := database.DB.Model(&user).Update("is_active", req.Active).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"message": "Failed to update user",
		})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "User updated",
	})
}
