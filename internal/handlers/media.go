package handlers

import (
	"github.com/closo/backend/internal/database"
	"github.com/closo/backend/internal/middleware"
	"github.com/closo/backend/internal/models"
	"github.com/closo/backend/internal/storage"
	"github.com/gofiber/fiber/v2"
)

// mediaCacheControl tells clients and CDNs to cache proxied files for a
// day. File ids are immutable so this is safe.
const mediaCacheControl = "public, max-age=86400"

type MediaHandler struct {
	gateway *storage.Gateway
}

func NewMediaHandler(gateway *storage.Gateway) *MediaHandler {
	return &MediaHandler{gateway: gateway}
}

// Proxy streams a stored file to the client. This route is public: the
// file id itself is the unguessable capability. A missing file answers
// 404, an unreachable node answers 502.
func (h *MediaHandler) Proxy(c *fiber.Ctx) error {
	fileID := c.Params("fileId")
	if fileID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "File ID is required",
		})
	}

	result, err := h.gateway.Fetch(fileID)
	if err != nil {
		return storageErrorResponse(c, err)
	}

	c.Set(fiber.HeaderContentType, result.ContentType)
	c.Set(fiber.HeaderCacheControl, mediaCacheControl)
	if result.ContentLength > 0 {
		return c.SendStream(result.Body, int(result.ContentLength))
	}
	return c.SendStream(result.Body)
}

// ListGroupMedia returns a flat, paginated view of all photos in a
// group, newest post first, member-gated
func (h *MediaHandler) ListGroupMedia(c *fiber.Ctx) error {
	groupID, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Invalid group ID",
		})
	}

	if middleware.GetMembership(c, uint(groupID)) == nil {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"success": false,
			"message": "You are not a member of this group",
		})
	}

	page, pageSize := parsePagination(c)

	base := database.DB.Model(&models.Media{}).
		Joins("JOIN posts ON posts.id = media.post_id").
		Where("posts.group_id = ?", groupID)

	var total int64
	base.Count(&total)

	var media []models.Media
	if err := database.DB.Model(&models.Media{}).
		Joins("JOIN posts ON posts.id = media.post_id").
		Where("posts.group_id = ?", groupID).
		Order("posts.created_at DESC, media.display_order ASC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&media).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"message": "Failed to load media",
		})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"media":     media,
			"total":     total,
			"page":      page,
			"page_size": pageSize,
		},
	})
}
