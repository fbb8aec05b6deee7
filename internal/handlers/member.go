package handlers

import (
	"github.com/closo/backend/internal/database"
	"github.com/closo/backend/internal/middleware"
	"github.com/closo/backend/internal/models"
	"github.com/gofiber/fiber/v2"
)

type MemberHandler struct{}

func NewMemberHandler() *MemberHandler {
	return &MemberHandler{}
}

// List returns the members of a group, member-gated
func (h *MemberHandler) List(c *fiber.Ctx) error {
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

	var members []models.GroupMember
	if err := database.DB.Where("group_id = ?", groupID).Order("role DESC, created_at ASC").Find(&members).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"message": "Failed to load members",
		})
	}

	// Attach user profiles in one query
	userIDs := make([]uint, 0, len(members))
	for _, m := range members {
		userIDs = append(userIDs, m.UserID)
	}
	var users []models.User
	if len(userIDs) > 0 {
		database.DB.Where("id IN ?", userIDs).Find(&users)
	}
	byID := make(map[uint]*models.User, len(users))
	for i := range users {
		byID[users[i].ID] = &users[i]
	}
	for i := range members {
		members[i].User = byID[members[i].UserID]
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    members,
	})
}

// UpdateRoleRequest carries the new role for a member
type UpdateRoleRequest struct {
	Role models.MemberRole `json:"role"`
}

// UpdateRole promotes or demotes a member, group-admin only. The
// creator role can never be assigned or removed here.
func (h *MemberHandler) UpdateRole(c *fiber.Ctx) error {
	groupID, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Invalid group ID",
		})
	}
	memberID, err := c.ParamsInt("memberId")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Invalid member ID",
		})
	}

	caller := middleware.GetMembership(c, uint(groupID))
	if caller == nil || caller.Role < models.MemberRoleAdmin {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"success": false,
			"message": "Group admin access required",
		})
	}

	var req UpdateRoleRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Invalid request body",
		})
	}
	if req.Role != models.MemberRoleMember && req.Role != models.MemberRoleAdmin {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Role must be member or admin",
		})
	}

	var member models.GroupMember
	if err := database.DB.Where("id = ? AND group_id = ?", memberID, groupID).First(&member).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"success": false,
			"message": "Member not found",
		})
	}
	if member.Role == models.MemberRoleCreator {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"success": false,
			"message": "The creator's role cannot be changed",
		})
	}

	if err := database.DB.Model(&member).Update("role", req.Role).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"message": "Failed to update role",
		})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Role updated",
	})
}

// Remove kicks a member out of the group, group-admin only
func (h *MemberHandler) Remove(c *fiber.Ctx) error {
	groupID, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Invalid group ID",
		})
	}
	memberID, err := c.ParamsInt("memberId")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Invalid member ID",
		})
	}

	caller := middleware.GetMembership(c, uint(groupID))
	if caller == nil || caller.Role < models.MemberRoleAdmin {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"success": false,
			"message": "Group admin access required",
		})
	}

	var member models.GroupMember
	if err := database.DB.Where("id = ? AND group_id = ?", memberID, groupID).First(&member).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"success": false,
			"message": "Member not found",
		})
	}
	if member.Role == models.MemberRoleCreator {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"success": false,
			"message": "The creator cannot be removed",
		})
	}
	// Admins can't remove other admins, only the creator can
	if member.Role == models.MemberRoleAdmin && caller.Role != models.MemberRoleCreator {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"success": false,
			"message": "Only the creator can remove an admin",
		})
	}

	if err := database.DB.Delete(&member).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"message": "Failed to remove member",
		})
	}

	database.InvalidateGroupStatsCache(uint(groupID))

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Member removed",
	})
}

// Leave removes the caller from a group. The creator must delete the
// group instead.
func (h *MemberHandler) Leave(c *fiber.Ctx) error {
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
	if membership.Role == models.MemberRoleCreator {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "The creator cannot leave; delete the group instead",
		})
	}

	if err := database.DB.Delete(membership).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"message": "Failed to leave group",
		})
	}

	database.InvalidateGroupStatsCache(uint(groupID))

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Left group",
	})
}
