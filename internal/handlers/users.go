package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"

	"task-tracker/internal/middleware"
	"task-tracker/internal/models"
	"task-tracker/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/gofrs/uuid"
)

const (
	SessionTokenHeader = "X-Session-Token"

	avatarField = "avatar"
	// room for multipart boundaries and part headers around the file
	multipartOverhead = 64 << 10
)

type UserHandler struct {
	users         services.UserDirectory
	avatars       services.AvatarPipeline
	maxAvatarSize int64
}

func NewUserHandler(users services.UserDirectory, avatars services.AvatarPipeline, maxAvatarSize int64) *UserHandler {
	if maxAvatarSize <= 0 {
		maxAvatarSize = services.DefaultAvatarMaxBytes
	}
	return &UserHandler{users: users, avatars: avatars, maxAvatarSize: maxAvatarSize}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// writeContext detaches a write from the caller's connection so a client
// hanging up does not abort it halfway.
func writeContext(c *gin.Context) context.Context {
	return context.WithoutCancel(c.Request.Context())
}

func (h *UserHandler) Register(c *gin.Context) {
	var input services.RegisterInput
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, err)
		return
	}

	user, token, err := h.users.Register(writeContext(c), input)
	if err != nil {
		respondError(c, err)
		return
	}

	c.Header(SessionTokenHeader, token)
	c.JSON(http.StatusCreated, user)
}

func (h *UserHandler) Login(c *gin.Context) {
	var input loginRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		respondError(c, models.ErrLoginFailed)
		return
	}

	user, token, err := h.users.Login(writeContext(c), input.Email, input.Password)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user":  user.PublicProfile(),
		"token": token,
	})
}

func (h *UserHandler) Logout(c *gin.Context) {
	if err := h.users.Logout(writeContext(c), middleware.CurrentUser(c), middleware.CurrentToken(c)); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusOK)
}

func (h *UserHandler) LogoutAll(c *gin.Context) {
	if err := h.users.LogoutAll(writeContext(c), middleware.CurrentUser(c)); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusOK)
}

func (h *UserHandler) GetMe(c *gin.Context) {
	c.JSON(http.StatusOK, middleware.CurrentUser(c))
}

func (h *UserHandler) UpdateMe(c *gin.Context) {
	var patch map[string]interface{}
	if err := c.ShouldBindJSON(&patch); err != nil {
		badRequest(c, err)
		return
	}

	user, err := h.users.UpdateSelf(writeContext(c), middleware.CurrentUser(c), patch)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

func (h *UserHandler) DeleteMe(c *gin.Context) {
	user, err := h.users.DeleteSelf(writeContext(c), middleware.CurrentUser(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

func (h *UserHandler) UploadAvatar(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxAvatarSize+multipartOverhead)

	header, err := c.FormFile(avatarField)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "File too large"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "Please upload an image"})
		return
	}

	file, err := header.Open()
	if err != nil {
		respondError(c, err)
		return
	}
	defer file.Close()

	// one byte past the ceiling is enough to reject an oversize file
	data, err := io.ReadAll(io.LimitReader(file, h.maxAvatarSize+1))
	if err != nil {
		respondError(c, err)
		return
	}

	if err := h.avatars.Ingest(writeContext(c), middleware.CurrentUser(c), data, header.Filename); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusAccepted)
}

func (h *UserHandler) DeleteAvatar(c *gin.Context) {
	if err := h.avatars.Remove(writeContext(c), middleware.CurrentUser(c)); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"message": "Avatar deleted successfully"})
}

func (h *UserHandler) GetAvatar(c *gin.Context) {
	userID, err := uuid.FromString(c.Param("id"))
	if err != nil {
		respondError(c, models.ErrNotFound)
		return
	}

	avatar, contentType, err := h.avatars.FetchPublic(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.Data(http.StatusOK, contentType, avatar)
}
