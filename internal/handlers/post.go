package handlers

import (
	"bytes"
	"log"
	"time"

	"github.com/closo/backend/internal/database"
	"github.com/closo/backend/internal/middleware"
	"github.com/closo/backend/internal/models"
	"github.com/closo/backend/internal/storage"
	"github.com/closo/backend/internal/upload"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type PostHandler struct {
	gateway *storage.Gateway
}

func NewPostHandler(gateway *storage.Gateway) *PostHandler {
	return &PostHandler{gateway: gateway}
}

// deleteRefs removes stored files by proxy reference, logging instead
// of failing when a file is already gone or a node is down
func (h *PostHandler) deleteRefs(refs []string) {
	for _, ref := range refs {
		if id, ok := storage.FileIDFromReference(ref); ok {
			if err := h.gateway.Delete(id); err != nil {
				log.Printf("Failed to delete file %s: %v", id, err)
			}
		}
	}
}

// Create publishes a post with up to the per-post file limit of photos.
// All files are validated before any byte reaches storage, and the
// group's photo quota is enforced against the incoming batch size.
func (h *PostHandler) Create(c *fiber.Ctx) error {
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

	form, err := c.MultipartForm()
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Invalid multipart form",
		})
	}
	files := form.File["files"]
	if len(files) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "At least one photo is required",
		})
	}

	caption := c.FormValue("caption")

	// Validate every file before touching storage
	contents, err := upload.ValidateBatch(files)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": err.Error(),
		})
	}

	var group models.Group
	if err := database.DB.First(&group, groupID).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"success": false,
			"message": "Group not found",
		})
	}

	var photoCount int64
	database.DB.Model(&models.Media{}).
		Joins("JOIN posts ON posts.id = media.post_id").
		Where("posts.group_id = ?", groupID).
		Count(&photoCount)
	if photoCount+int64(len(files)) > int64(group.MaxPhotos) {
		return c.Status(fiber.StatusPaymentRequired).JSON(fiber.Map{
			"success": false,
			"message": "Group photo limit reached",
			"data": fiber.Map{
				"photo_count": photoCount,
				"max_photos":  group.MaxPhotos,
			},
		})
	}

	// Upload first, create rows after. A failure mid-batch rolls back
	// the already-stored files so storage never holds unreferenced
	// blobs from a failed post.
	uploaded := make([]string, 0, len(files))
	for i, fh := range files {
		ref, err := h.gateway.Save(bytes.NewReader(contents[i]), fh.Filename)
		if err != nil {
			h.deleteRefs(uploaded)
			return storageErrorResponse(c, err)
		}
		uploaded = append(uploaded, ref)
	}

	post := models.Post{
		GroupID:       uint(groupID),
		GroupMemberID: membership.ID,
		Caption:       caption,
	}
	err = database.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&post).Error; err != nil {
			return err
		}
		for i, ref := range uploaded {
			m := models.Media{
				PostID:   post.ID,
				MediaURL: ref,
				Order:    i,
			}
			if err := tx.Create(&m).Error; err != nil {
				return err
			}
			post.Media = append(post.Media, m)
		}
		return nil
	})
	if err != nil {
		log.Printf("Failed to create post: %v", err)
		h.deleteRefs(uploaded)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"message": "Failed to create post",
		})
	}

	now := time.Now()
	database.DB.Model(membership).Update("last_activity", &now)
	database.InvalidateGroupStatsCache(uint(groupID))

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"message": "Post created",
		"data":    post,
	})
}

// List returns a group's posts newest first, paginated
func (h *PostHandler) List(c *fiber.Ctx) error {
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

	var total int64
	database.DB.Model(&models.Post{}).Where("group_id = ?", groupID).Count(&total)

	var posts []models.Post
	if err := database.DB.
		Where("group_id = ?", groupID).
		Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&posts).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"message": "Failed to load posts",
		})
	}

	h.attachDetails(posts)

	return c.JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"posts":     posts,
			"total":     total,
			"page":      page,
			"page_size": pageSize,
		},
	})
}

// Get returns one post with its media, comments and like count
func (h *PostHandler) Get(c *fiber.Ctx) error {
	groupID, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Invalid group ID",
		})
	}
	postID, err := c.ParamsInt("postId")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Invalid post ID",
		})
	}

	if middleware.GetMembership(c, uint(groupID)) == nil {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"success": false,
			"message": "You are not a member of this group",
		})
	}

	var post models.Post
	if err := database.DB.Where("id = ? AND group_id = ?", postID, groupID).First(&post).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"success": false,
			"message": "Post not found",
		})
	}

	posts := []models.Post{post}
	h.attachDetails(posts)

	return c.JSON(fiber.Map{
		"success": true,
		"data":    posts[0],
	})
}

// Delete removes a post. Allowed for the author or a group admin.
// Storage deletes run after the DB commit and never abort on files
// that are already gone.
func (h *PostHandler) Delete(c *fiber.Ctx) error {
	groupID, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Invalid group ID",
		})
	}
	postID, err := c.ParamsInt("postId")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Invalid post ID",
		})
	}

	membership := middleware.GetMembership(c, uint(groupID))
	if membership == nil {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"success": false,
			"message": "You are not a member of this group",
		})
	}

	var post models.Post
	if err := database.DB.Where("id = ? AND group_id = ?", postID, groupID).First(&post).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"success": false,
			"message": "Post not found",
		})
	}

	if post.GroupMemberID != membership.ID && membership.Role < models.MemberRoleAdmin && !middleware.IsPlatformAdmin(c) {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"success": false,
			"message": "You can only delete your own posts",
		})
	}

	if err := h.removePost(&post); err != nil {
		log.Printf("Failed to delete post %d: %v", post.ID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"message": "Failed to delete post",
		})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Post deleted",
	})
}

// ModerateDelete removes any post platform-wide. Routed behind the
// moderator gate, so no group membership is required.
func (h *PostHandler) ModerateDelete(c *fiber.Ctx) error {
	postID, err := c.ParamsInt("postId")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Invalid post ID",
		})
	}

	var post models.Post
	if err := database.DB.First(&post, postID).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"success": false,
			"message": "Post not found",
		})
	}

	if err := h.removePost(&post); err != nil {
		log.Printf("Failed to delete post %d: %v", post.ID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"message": "Failed to delete post",
		})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Post deleted",
	})
}

// removePost deletes a post with its comments, likes and stored media,
// then drops the group's cached stats
func (h *PostHandler) removePost(post *models.Post) error {
	var mediaRefs []string
	database.DB.Model(&models.Media{}).Where("post_id = ?", post.ID).Pluck("media_url", &mediaRefs)

	err := database.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("post_id = ?", post.ID).Delete(&models.Media{}).Error; err != nil {
			return err
		}
		if err := tx.Where("post_id = ?", post.ID).Delete(&models.Comment{}).Error; err != nil {
			return err
		}
		if err := tx.Where("post_id = ?", post.ID).Delete(&models.Like{}).Error; err != nil {
			return err
		}
		return tx.Delete(post).Error
	})
	if err != nil {
		return err
	}

	h.deleteRefs(mediaRefs)
	database.InvalidateGroupStatsCache(post.GroupID)
	return nil
}

// attachDetails loads media, author info, comment and like counts for
// a page of posts
func (h *PostHandler) attachDetails(posts []models.Post) {
	if len(posts) == 0 {
		return
	}

	postIDs := make([]uint, 0, len(posts))
	memberIDs := make([]uint, 0, len(posts))
	for _, p := range posts {
		postIDs = append(postIDs, p.ID)
		memberIDs = append(memberIDs, p.GroupMemberID)
	}

	var media []models.Media
	database.DB.Where("post_id IN ?", postIDs).Order("display_order ASC").Find(&media)
	mediaByPost := make(map[uint][]models.Media)
	for _, m := range media {
		mediaByPost[m.PostID] = append(mediaByPost[m.PostID], m)
	}

	var members []models.GroupMember
	database.DB.Where("id IN ?", memberIDs).Find(&members)
	userIDs := make([]uint, 0, len(members))
	for _, m := range members {
		userIDs = append(userIDs, m.UserID)
	}
	var users []models.User
	if len(userIDs) > 0 {
		database.DB.Where("id IN ?", userIDs).Find(&users)
	}
	userByID := make(map[uint]*models.User, len(users))
	for i := range users {
		userByID[users[i].ID] = &users[i]
	}
	memberByID := make(map[uint]*models.GroupMember, len(members))
	for i := range members {
		members[i].User = userByID[members[i].UserID]
		memberByID[members[i].ID] = &members[i]
	}

	for i := range posts {
		posts[i].Media = mediaByPost[posts[i].ID]
		posts[i].GroupMember = memberByID[posts[i].GroupMemberID]
	}
}
