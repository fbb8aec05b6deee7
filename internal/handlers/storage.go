package handlers

import (
	"log"
	"strings"

	"github.com/closo/backend/internal/database"
	"github.com/closo/backend/internal/models"
	"github.com/closo/backend/internal/storage"
	"github.com/gofiber/fiber/v2"
)

// StorageHandler exposes administrative views of the storage cluster
type StorageHandler struct {
	gateway *storage.Gateway
}

func NewStorageHandler(gateway *storage.Gateway) *StorageHandler {
	return &StorageHandler{gateway: gateway}
}

// NodeHealth reports the storage node's health, admin only
func (h *StorageHandler) NodeHealth(c *fiber.Ctx) error {
	health, err := h.gateway.Health()
	if err != nil {
		return storageErrorResponse(c, err)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"data":    health,
	})
}

// ListFiles returns the raw node file inventory, admin only
func (h *StorageHandler) ListFiles(c *fiber.Ctx) error {
	files, err := h.gateway.List()
	if err != nil {
		return storageErrorResponse(c, err)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"data":    fiber.Map{"files": files, "count": len(files)},
	})
}

// FileInfo reverse-looks-up which database rows reference a file id,
// admin only. Useful when deciding whether a node file is an orphan.
func (h *StorageHandler) FileInfo(c *fiber.Ctx) error {
	fileID := c.Params("fileId")
	if fileID == "" || strings.ContainsAny(fileID, "/\\") {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Invalid file ID",
		})
	}

	ref := storage.ProxyReference(fileID)

	var media []models.Media
	database.DB.Where("media_url = ?", ref).Find(&media)

	var userCount, groupCount int64
	database.DB.Model(&models.User{}).Where("avatar_url = ?", ref).Count(&userCount)
	database.DB.Model(&models.Group{}).Where("image_url = ?", ref).Count(&groupCount)

	return c.JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"file_id":      fileID,
			"media":        media,
			"avatar_users": userCount,
			"group_images": groupCount,
			"referenced":   len(media) > 0 || userCount > 0 || groupCount > 0,
		},
	})
}

// DeleteFile removes a file from the node, admin only. Refuses to
// delete a file the database still references.
func (h *StorageHandler) DeleteFile(c *fiber.Ctx) error {
	fileID := c.Params("fileId")
	if fileID == "" || strings.ContainsAny(fileID, "/\\") {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Invalid file ID",
		})
	}

	ref := storage.ProxyReference(fileID)
	var refs int64
	database.DB.Model(&models.Media{}).Where("media_url = ?", ref).Count(&refs)
	if refs == 0 {
		database.DB.Model(&models.User{}).Where("avatar_url = ?", ref).Count(&refs)
	}
	if refs == 0 {
		database.DB.Model(&models.Group{}).Where("image_url = ?", ref).Count(&refs)
	}
	if refs > 0 {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"success": false,
			"message": "File is still referenced; delete the owning content first",
		})
	}

	if err := h.gateway.Delete(fileID); err != nil {
		return storageErrorResponse(c, err)
	}

	log.Printf("Admin deleted storage file %s", fileID)

	return c.JSON(fiber.Map{
		"success": true,
		"message": "File deleted",
	})
}
