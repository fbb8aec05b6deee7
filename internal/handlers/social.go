package handlers

import (
	"strings"

	"github.com/closo/backend/internal/database"
	"github.com/closo/backend/internal/middleware"
	"github.com/closo/backend/internal/models"
	"github.com/gofiber/fiber/v2"
)

// SocialHandler covers comments and likes on posts
type SocialHandler struct{}

func NewSocialHandler() *SocialHandler {
	return &SocialHandler{}
}

// memberAndPost resolves the caller's membership and the target post,
// writing the error response itself when either check fails
func (h *SocialHandler) memberAndPost(c *fiber.Ctx) (*models.GroupMember, *models.Post, error) {
	groupID, err := c.ParamsInt("id")
	if err != nil {
		return nil, nil, c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Invalid group ID",
		})
	}
	postID, err := c.ParamsInt("postId")
	if err != nil {
		return nil, nil, c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Invalid post ID",
		})
	}

	membership := middleware.GetMembership(c, uint(groupID))
	if membership == nil {
		return nil, nil, c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"success": false,
			"message": "You are not a member of this group",
		})
	}

	var post models.Post
	if err := database.DB.Where("id = ? AND group_id = ?", postID, groupID).First(&post).Error; err != nil {
		return nil, nil, c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"success": false,
			"message": "Post not found",
		})
	}

	return membership, &post, nil
}

// CommentRequest carries the comment text
type CommentRequest struct {
	Content string `json:"content"`
}

// CreateComment adds a comment to a post
func (h *SocialHandler) CreateComment(c *fiber.Ctx) error {
	membership, post, errResp := h.memberAndPost(c)
	if membership == nil {
		return errResp
	}

	var req CommentRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Invalid request body",
		})
	}
	req.Content = strings.TrimSpace(req.Content)
	if req.Content == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Comment cannot be empty",
		})
	}

	comment := models.Comment{
		PostID:        post.ID,
		GroupMemberID: membership.ID,
		Content:       req.Content,
	}
	if err := database.DB.Create(&comment).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"message": "Failed to create comment",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"message": "Comment created",
		"data":    comment,
	})
}

// ListComments returns a post's comments, oldest first
func (h *SocialHandler) ListComments(c *fiber.Ctx) error {
	membership, post, errResp := h.memberAndPost(c)
	if membership == nil {
		return errResp
	}

	var comments []models.Comment
	if err := database.DB.Where("post_id = ?", post.ID).Order("created_at ASC").Find(&comments).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"message": "Failed to load comments",
		})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    comments,
	})
}

// DeleteComment removes a comment. Allowed for the author or a group
// admin.
func (h *SocialHandler) DeleteComment(c *fiber.Ctx) error {
	membership, post, errResp := h.memberAndPost(c)
	if membership == nil {
		return errResp
	}

	commentID, err := c.ParamsInt("commentId")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Invalid comment ID",
		})
	}

	var comment models.Comment
	if err := database.DB.Where("id = ? AND post_id = ?", commentID, post.ID).First(&comment).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"success": false,
			"message": "Comment not found",
		})
	}

	if comment.GroupMemberID != membership.ID && membership.Role < models.MemberRoleAdmin && !middleware.IsPlatformAdmin(c) {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"success": false,
			"message": "You can only delete your own comments",
		})
	}

	if err := database.DB.Delete(&comment).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"message": "Failed to delete comment",
		})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Comment deleted",
	})
}

// ModerateDeleteComment removes any comment platform-wide. Routed behind
// the moderator gate, so no group membership is required.
func (h *SocialHandler) ModerateDeleteComment(c *fiber.Ctx) error {
	commentID, err := c.ParamsInt("commentId")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Invalid comment ID",
		})
	}

	var comment models.Comment
	if err := database.DB.First(&comment, commentID).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"success": false,
			"message": "Comment not found",
		})
	}

	if err := database.DB.Delete(&comment).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"message": "Failed to delete comment",
		})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Comment deleted",
	})
}

// Like records the caller's like on a post. Liking twice is a no-op.
func (h *SocialHandler) Like(c *fiber.Ctx) error {
	membership, post, errResp := h.memberAndPost(c)
	if membership == nil {
		return errResp
	}

	var existing models.Like
	if err := database.DB.Where("post_id = ? AND group_member_id = ?", post.ID, membership.ID).First(&existing).Error; err == nil {
		return c.JSON(fiber.Map{
			"success": true,
			"message": "Already liked",
		})
	}

	like := models.Like{
		PostID:        post.ID,
		GroupMemberID: membership.ID,
	}
	if err := database.DB.Create(&like).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"message": "Failed to like post",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"message": "Post liked",
	})
}

// Unlike removes the caller's like. Unliking a post that was never
// liked is a no-op.
func (h *SocialHandler) Unlike(c *fiber.Ctx) error {
	membership, post, errResp := h.memberAndPost(c)
	if membership == nil {
		return errResp
	}

	if err := database.DB.Where("post_id = ? AND group_member_id = ?", post.ID, membership.ID).Delete(&models.Like{}).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"message": "Failed to unlike post",
		})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Post unliked",
	})
}

// Likes returns the like count and whether the caller liked the post
func (h *SocialHandler) Likes(c *fiber.Ctx) error {
	membership, post, errResp := h.memberAndPost(c)
	if membership == nil {
		return errResp
	}

	var count int64
	database.DB.Model(&models.Like{}).Where("post_id = ?", post.ID).Count(&count)

	var mine int64
	database.DB.Model(&models.Like{}).Where("post_id = ? AND group_member_id = ?", post.ID, membership.ID).Count(&mine)

	return c.JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"count": count,
			"liked": mine > 0,
		},
	})
}
