package handlers

import (
	"bytes"
	"log"
	"strings"

	"github.com/closo/backend/internal/config"
	"github.com/closo/backend/internal/database"
	"github.com/closo/backend/internal/middleware"
	"github.com/closo/backend/internal/models"
	"github.com/closo/backend/internal/storage"
	"github.com/closo/backend/internal/upload"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type GroupHandler struct {
	cfg     *config.Config
	gateway *storage.Gateway
}

func NewGroupHandler(cfg *config.Config, gateway *storage.Gateway) *GroupHandler {
	return &GroupHandler{cfg: cfg, gateway: gateway}
}

// newInviteCode returns a short shareable code derived from a UUID
func newInviteCode() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")[:12]
}

// CreateGroupRequest carries the fields for a new group
type CreateGroupRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Create makes a new group with the caller as creator
func (h *GroupHandler) Create(c *fiber.Ctx) error {
	userID := middleware.GetCurrentUserID(c)

	var req CreateGroupRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Invalid request body",
		})
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Group name is required",
		})
	}

	group := models.Group{
		Name:        req.Name,
		Description: req.Description,
		InviteCode:  newInviteCode(),
		CreatorID:   userID,
		MaxPhotos:   h.cfg.GroupDefaultMaxPhotos,
	}

	err := database.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&group).Error; err != nil {
			return err
		}
		member := models.GroupMember{
			UserID:  userID,
			GroupID: group.ID,
			Role:    models.MemberRoleCreator,
		}
		return tx.Create(&member).Error
	})
	if err != nil {
		log.Printf("Failed to create group: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"message": "Failed to create group",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"message": "Group created",
		"data":    group,
	})
}

// List returns the caller's groups with member and photo counts
func (h *GroupHandler) List(c *fiber.Ctx) error {
	userID := middleware.GetCurrentUserID(c)

	var groups []models.Group
	if err := database.DB.
		Joins("JOIN group_members ON group_members.group_id = groups.id").
		Where("group_members.user_id = ?", userID).
		Order("groups.created_at DESC").
		Find(&groups).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"message": "Failed to load groups",
		})
	}

	result := make([]models.GroupWithStats, 0, len(groups))
	for _, g := range groups {
		stats := h.groupStats(g)
		var membership models.GroupMember
		if err := database.DB.Where("user_id = ? AND group_id = ?", userID, g.ID).First(&membership).Error; err == nil {
			stats.CurrentUserRole = membership.Role
		}
		result = append(result, stats)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    result,
	})
}

// Get returns a single group, member-gated
func (h *GroupHandler) Get(c *fiber.Ctx) error {
	groupID, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Invalid group ID",
		})
	}

	membership := middleware.GetMembership(c, uint(groupID))
	if membership == nil {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"success": false,
			"message": "You are not a member of this group",
		})
	}

	var group models.Group
	if err := database.DB.First(&group, groupID).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"success": false,
			"message": "Group not found",
		})
	}

	stats := h.groupStats(group)
	stats.CurrentUserRole = membership.Role

	return c.JSON(fiber.Map{
		"success": true,
		"data":    stats,
	})
}

// UpdateGroupRequest carries the editable group fields
type UpdateGroupRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Update edits group metadata, group-admin only
func (h *GroupHandler) Update(c *fiber.Ctx) error {
	groupID, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Invalid group ID",
		})
	}

	membership := middleware.GetMembership(c, uint(groupID))
	if membership == nil || membership.Role < models.MemberRoleAdmin {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"success": false,
			"message": "Group admin access required",
		})
	}

	var req UpdateGroupRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Invalid request body",
		})
	}

	updates := map[string]interface{}{}
	if name := strings.TrimSpace(req.Name); name != "" {
		updates["name"] = name
	}
	if req.Description != "" {
		updates["description"] = req.Description
	}
	if len(updates) > 0 {
		if err := database.DB.Model(&models.Group{}).Where("id = ?", groupID).Updates(updates).Error; err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"success": false,
				"message": "Failed to update group",
			})
		}
	}

	database.InvalidateGroupStatsCache(uint(groupID))

	var group models.Group
	database.DB.First(&group, groupID)

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Group updated",
		"data":    group,
	})
}

// UploadImage sets the group cover image, group-admin only
func (h *GroupHandler) UploadImage(c *fiber.Ctx) error {
	groupID, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Invalid group ID",
		})
	}

	membership := middleware.GetMembership(c, uint(groupID))
	if membership == nil || membership.Role < models.MemberRoleAdmin {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"success": false,
			"message": "Group admin access required",
		})
	}

	var group models.Group
	if err := database.DB.First(&group, groupID).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"success": false,
			"message": "Group not found",
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

	oldRef := group.ImageURL
	if err := database.DB.Model(&group).Update("image_url", ref).Error; err != nil {
		if newID, ok := storage.FileIDFromReference(ref); ok {
			if delErr := h.gateway.Delete(newID); delErr != nil {
				log.Printf("Group image cleanup failed for %s: %v", newID, delErr)
			}
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"message": "Failed to update group image",
		})
	}

	if oldID, ok := storage.FileIDFromReference(oldRef); ok {
		if err := h.gateway.Delete(oldID); err != nil {
			log.Printf("Failed to delete old group image %s: %v", oldID, err)
		}
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Group image updated",
		"data":    fiber.Map{"image_url": ref},
	})
}

// JoinRequest carries an invite code
type JoinRequest struct {
	InviteCode string `json:"invite_code"`
}

// Join adds the caller to a group by invite code
func (h *GroupHandler) Join(c *fiber.Ctx) error {
	userID := middleware.GetCurrentUserID(c)

	var req JoinRequest
	if err := c.BodyParser(&req); err != nil || req.InviteCode == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Invite code is required",
		})
	}

	var group models.Group
	if err := database.DB.Where("invite_code = ?", req.InviteCode).First(&group).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"success": false,
			"message": "Invalid invite code",
		})
	}

	var existing models.GroupMember
	if err := database.DB.Where("user_id = ? AND group_id = ?", userID, group.ID).First(&existing).Error; err == nil {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"success": false,
			"message": "You are already a member of this group",
		})
	}

	member := models.GroupMember{
		UserID:  userID,
		GroupID: group.ID,
		Role:    models.MemberRoleMember,
	}
	if err := database.DB.Create(&member).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"message": "Failed to join group",
		})
	}

	database.InvalidateGroupStatsCache(group.ID)

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Joined group",
		"data":    group,
	})
}

// RotateInviteCode replaces the invite code, group-admin only
func (h *GroupHandler) RotateInviteCode(c *fiber.Ctx) error {
	groupID, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Invalid group ID",
		})
	}

	membership := middleware.GetMembership(c, uint(groupID))
	if membership == nil || membership.Role < models.MemberRoleAdmin {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"success": false,
			"message": "Group admin access required",
		})
	}

	code := newInviteCode()
	if err := database.DB.Model(&models.Group{}).Where("id = ?", groupID).Update("invite_code", code).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"message": "Failed to rotate invite code",
		})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Invite code rotated",
		"data":    fiber.Map{"invite_code": code},
	})
}

// Delete removes a group and all its content, creator only. Media
// files are deleted from storage best-effort after the DB cascade.
func (h *GroupHandler) Delete(c *fiber.Ctx) error {
	groupID, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Invalid group ID",
		})
	}

	membership := middleware.GetMembership(c, uint(groupID))
	if membership == nil || membership.Role != models.MemberRoleCreator {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"success": false,
			"message": "Only the group creator can delete the group",
		})
	}

	var group models.Group
	if err := database.DB.First(&group, groupID).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"success": false,
			"message": "Group not found",
		})
	}

	// Collect media references before the rows disappear
	var mediaRefs []string
	database.DB.Model(&models.Media{}).
		Joins("JOIN posts ON posts.id = media.post_id").
		Where("posts.group_id = ?", groupID).
		Pluck("media.media_url", &mediaRefs)
	if group.ImageURL != "" {
		mediaRefs = append(mediaRefs, group.ImageURL)
	}

	err = database.DB.Transaction(func(tx *gorm.DB) error {
		var postIDs []uint
		if err := tx.Model(&models.Post{}).Where("group_id = ?", groupID).Pluck("id", &postIDs).Error; err != nil {
			return err
		}
		if len(postIDs) > 0 {
			if err := tx.Where("post_id IN ?", postIDs).Delete(&models.Media{}).Error; err != nil {
				return err
			}
			if err := tx.Where("post_id IN ?", postIDs).Delete(&models.Comment{}).Error; err != nil {
				return err
			}
			if err := tx.Where("post_id IN ?", postIDs).Delete(&models.Like{}).Error; err != nil {
				return err
			}
			if err := tx.Where("group_id = ?", groupID).Delete(&models.Post{}).Error; err != nil {
				return err
			}
		}
		if err := tx.Where("group_id = ?", groupID).Delete(&models.GroupMember{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Group{}, groupID).Error
	})
	if err != nil {
		log.Printf("Failed to delete group %d: %v", groupID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"message": "Failed to delete group",
		})
	}

	// Always continue past already-absent files
	for _, ref := range mediaRefs {
		if id, ok := storage.FileIDFromReference(ref); ok {
			if err := h.gateway.Delete(id); err != nil {
				log.Printf("Failed to delete file %s during group cleanup: %v", id, err)
			}
		}
	}

	database.InvalidateGroupStatsCache(uint(groupID))

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Group deleted",
	})
}

// groupStats builds counts for a group, served from cache when fresh
func (h *GroupHandler) groupStats(group models.Group) models.GroupWithStats {
	cacheKey := database.GroupStatsCacheKey(group.ID)

	var stats models.GroupWithStats
	if err := database.CacheGet(cacheKey, &stats); err == nil {
		stats.Group = group
		return stats
	}

	stats = models.GroupWithStats{Group: group}
	database.DB.Model(&models.GroupMember{}).Where("group_id = ?", group.ID).Count(&stats.MemberCount)
	database.DB.Model(&models.Media{}).
		Joins("JOIN posts ON posts.id = media.post_id").
		Where("posts.group_id = ?", group.ID).
		Count(&stats.PhotoCount)

	database.CacheSet(cacheKey, stats, database.CacheTTLGroupStats)
	return stats
}
