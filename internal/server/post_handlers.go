package server

import (
	"bulletin/internal/middleware"
	"bulletin/internal/models"
	"bulletin/internal/service"

	"github.com/gofiber/fiber/v2"
)

// postRequest is the body of create and edit. Attachments are records
// returned by POST /api/uploads.
type postRequest struct {
	Title       string              `json:"title"`
	Content     string              `json:"content"`
	Category    string              `json:"category"`
	Tags        []string            `json:"tags"`
	TagsText    string              `json:"tagsText"`
	Attachments []models.Attachment `json:"attachments"`
	// KeepAttachmentIDs is read on edit only; null keeps every attachment.
	KeepAttachmentIDs []string `json:"keepAttachmentIds"`
}

// GetPosts handles GET /api/posts
// @Summary List posts
// @Description Newest posts first. The category filter applies after the limit.
// @Tags posts
// @Produce json
// @Param limit query int false "Maximum posts fetched" default(20)
// @Param category query string false "Category, or 전체 for all"
// @Success 200 {array} models.Post
// @Router /posts [get]
func (s *Server) GetPosts(c *fiber.Ctx) error {
	posts, err := s.postService.ListPosts(c.UserContext(),
		c.QueryInt("limit", service.DefaultPostLimit), c.Query("category"))
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(posts)
}

// GetPost handles GET /api/posts/:id and counts the view.
// @Summary Post detail
// @Tags posts
// @Produce json
// @Param id path string true "Post ID"
// @Success 200 {object} models.Post
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/{id} [get]
func (s *Server) GetPost(c *fiber.Ctx) error {
	id, err := param(c, "id")
	if err != nil {
		return nil
	}
	post, err := s.postService.ViewPost(c.UserContext(), id)
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(post)
}

// GetUserPosts handles GET /api/users/:id/posts
// @Summary Posts by author
// @Tags posts
// @Produce json
// @Param id path string true "Author uid"
// @Success 200 {array} models.Post
// @Router /users/{id}/posts [get]
func (s *Server) GetUserPosts(c *fiber.Ctx) error {
	id, err := param(c, "id")
	if err != nil {
		return nil
	}
	posts, err := s.postService.ListPostsByAuthor(c.UserContext(), id)
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(posts)
}

// CreatePost handles POST /api/posts
// @Summary Create post
// @Tags posts
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body postRequest true "Post"
// @Success 201 {object} models.Post
// @Failure 400 {object} models.ErrorResponse
// @Router /posts [post]
func (s *Server) CreatePost(c *fiber.Ctx) error {
	var req postRequest
	if err := parseBody(c, &req); err != nil {
		return nil
	}
	user, err := s.currentUser(c)
	if err != nil {
		return respond(c, err)
	}

	post, err := s.postService.CreatePost(c.UserContext(), service.CreatePostInput{
		AuthorID:    user.ID,
		AuthorName:  user.Name(),
		Title:       req.Title,
		Content:     req.Content,
		Tags:        req.Tags,
		TagsRaw:     req.TagsText,
		Category:    req.Category,
		Attachments: req.Attachments,
	})
	if err != nil {
		return respond(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(post)
}

// UpdatePost handles PUT /api/posts/:id
// @Summary Edit post
// @Description Author only. Attachments not listed in keepAttachmentIds are removed from storage.
// @Tags posts
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path string true "Post ID"
// @Param request body postRequest true "Post"
// @Success 200 {object} models.Post
// @Failure 403 {object} models.ErrorResponse
// @Router /posts/{id} [put]
func (s *Server) UpdatePost(c *fiber.Ctx) error {
	id, err := param(c, "id")
	if err != nil {
		return nil
	}
	var req postRequest
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	post, err := s.postService.UpdatePost(c.UserContext(), service.UpdatePostInput{
		PostID:            id,
		UserID:            middleware.UserID(c),
		Title:             req.Title,
		Content:           req.Content,
		Tags:              req.Tags,
		TagsRaw:           req.TagsText,
		Category:          req.Category,
		KeepAttachmentIDs: req.KeepAttachmentIDs,
		NewAttachments:    req.Attachments,
	})
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(post)
}

// DeletePost handles DELETE /api/posts/:id
// @Summary Delete post
// @Tags posts
// @Security BearerAuth
// @Param id path string true "Post ID"
// @Success 204
// @Failure 403 {object} models.ErrorResponse
// @Router /posts/{id} [delete]
func (s *Server) DeletePost(c *fiber.Ctx) error {
	id, err := param(c, "id")
	if err != nil {
		return nil
	}
	if err := s.postService.DeletePost(c.UserContext(), id, middleware.UserID(c)); err != nil {
		return respond(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// ToggleLike handles POST /api/posts/:id/like
// @Summary Toggle like
// @Tags posts
// @Security BearerAuth
// @Produce json
// @Param id path string true "Post ID"
// @Success 200 {object} object{post=models.Post,liked=bool}
// @Router /posts/{id}/like [post]
func (s *Server) ToggleLike(c *fiber.Ctx) error {
	id, err := param(c, "id")
	if err != nil {
		return nil
	}
	user, err := s.currentUser(c)
	if err != nil {
		return respond(c, err)
	}
	post, liked, err := s.postService.ToggleLike(c.UserContext(), id, user.ID, user.Name())
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(fiber.Map{"post": post, "liked": liked})
}

// LikePost handles PUT /api/posts/:id/like
func (s *Server) LikePost(c *fiber.Ctx) error {
	id, err := param(c, "id")
	if err != nil {
		return nil
	}
	user, err := s.currentUser(c)
	if err != nil {
		return respond(c, err)
	}
	post, err := s.postService.LikePost(c.UserContext(), id, user.ID, user.Name())
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(post)
}

// UnlikePost handles DELETE /api/posts/:id/like
func (s *Server) UnlikePost(c *fiber.Ctx) error {
	id, err := param(c, "id")
	if err != nil {
		return nil
	}
	post, err := s.postService.UnlikePost(c.UserContext(), id, middleware.UserID(c))
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(post)
}
