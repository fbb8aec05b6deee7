package handlers

import (
	"errors"
	"log"

	"github.com/closo/backend/internal/storage"
	"github.com/gofiber/fiber/v2"
)

// storageErrorResponse maps gateway failures to API responses without
// exposing node addresses to clients.
func storageErrorResponse(c *fiber.Ctx, err error) error {
	var uploadErr *storage.UploadError
	switch {
	case errors.Is(err, storage.ErrNoNodesConfigured):
		log.Printf("Storage error: %v", err)
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"success": false,
			"message": "Storage is not configured",
		})
	case errors.Is(err, storage.ErrFileNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"success": false,
			"message": "File not found",
		})
	case errors.Is(err, storage.ErrNodeUnavailable):
		log.Printf("Storage error: %v", err)
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"success": false,
			"message": "Storage is temporarily unavailable",
		})
	case errors.As(err, &uploadErr):
		log.Printf("Storage upload rejected: %v", err)
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"success": false,
			"message": "Storage rejected the upload",
		})
	default:
		log.Printf("Storage error: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"message": "Storage operation failed",
		})
	}
}

// parsePagination reads page/page_size query params with sane bounds
func parsePagination(c *fiber.Ctx) (page, pageSize int) {
	page = c.QueryInt("page", 1)
	if page < 1 {
		page = 1
	}
	pageSize = c.QueryInt("page_size", 20)
	if pageSize < 1 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}
	return page, pageSize
}
