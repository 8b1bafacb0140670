package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/talkitive/talkitive-backend/internal/auth"
	"github.com/talkitive/talkitive-backend/internal/users/domain"
	"github.com/talkitive/talkitive-backend/internal/users/service"
)

// Sync reconciles the Firebase login with the local profile store.
// Called by the client right after authentication; the optional body carries
// hints used only on first insert.
func (h *Handler) Sync(c *gin.Context) {
	claims, ok := auth.ClaimsFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return
	}

	var body syncRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
			return
		}
	}

	result, err := h.users.Sync(c.Request.Context(), claims, domain.SyncInput{
		Username:    body.Username,
		DisplayName: body.DisplayName,
		PhotoURL:    body.PhotoURL,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user":          result.User,
		"needsUsername": result.NeedsUsername,
		"firstLogin":    result.FirstLogin,
	})
}

// SetUsername assigns the caller's chosen username.
func (h *Handler) SetUsername(c *gin.Context) {
	email := auth.UserEmail(c)
	if email == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return
	}

	var body setUsernameRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	user, err := h.users.SetUsername(c.Request.Context(), email, body.Username)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": user})
}

// CheckUsername is the public availability probe. No side effects.
func (h *Handler) CheckUsername(c *gin.Context) {
	username := c.Query("username")
	if username == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username query parameter is required"})
		return
	}

	available, reason, err := h.users.CheckUsername(c.Request.Context(), username)
	if err != nil {
		h.writeError(c, err)
		return
	}

	resp := gin.H{"available": available}
	if reason != "" {
		resp["reason"] = reason
	}
	c.JSON(http.StatusOK, resp)
}

// GetMe returns the caller's own profile.
func (h *Handler) GetMe(c *gin.Context) {
	email := auth.UserEmail(c)
	if email == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return
	}

	user, err := h.users.GetByEmail(c.Request.Context(), email)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": user})
}

// GetByIdentifier fetches a profile by object id or exact username.
func (h *Handler) GetByIdentifier(c *gin.Context) {
	user, err := h.users.GetByIdentifier(c.Request.Context(), c.Param("identifier"))
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": user})
}

// UpdateMe applies a partial update to the caller's own profile. The profile
// is addressed by the token's email, never by a client-supplied id.
func (h *Handler) UpdateMe(c *gin.Context) {
	email := auth.UserEmail(c)
	if email == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return
	}

	var body updateProfileRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input data", "details": err.Error()})
		return
	}

	user, err := h.users.UpdateProfile(c.Request.Context(), email, domain.UpdateProfileInput{
		Username:    body.Username,
		DisplayName: body.DisplayName,
		Age:         body.Age,
		Gender:      body.Gender,
		About:       body.About,
		ProfilePic:  body.ProfilePic,
		Topics:      body.Topics,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": user})
}

// Search returns profile cards matching a username prefix.
func (h *Handler) Search(c *gin.Context) {
	limit, _ := strconv.ParseInt(c.DefaultQuery("limit", "20"), 10, 64)

	cards, err := h.users.Search(c.Request.Context(), c.Param("prefix"), limit)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"users": cards})
}

// ListActive returns the paginated browse deck of active profiles.
func (h *Handler) ListActive(c *gin.Context) {
	page, _ := strconv.ParseInt(c.DefaultQuery("page", "1"), 10, 64)
	limit, _ := strconv.ParseInt(c.DefaultQuery("limit", "10"), 10, 64)
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 10
	}

	users, total, err := h.users.ListActive(c.Request.Context(), page, limit)
	if err != nil {
		h.writeError(c, err)
		return
	}

	pages := total / limit
	if total%limit != 0 {
		pages++
	}
	c.JSON(http.StatusOK, gin.H{
		"users":       users,
		"total":       total,
		"pages":       pages,
		"currentPage": page,
	})
}

// ToggleFavorite flips the target's membership in the caller's favorites.
func (h *Handler) ToggleFavorite(c *gin.Context) {
	email := auth.UserEmail(c)
	if email == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return
	}

	var body toggleFavoriteRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	favs, err := h.users.ToggleFavorite(c.Request.Context(), email, body.TargetUserID)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"favs": favs})
}

// DeleteMe soft-deletes the caller's own profile.
func (h *Handler) DeleteMe(c *gin.Context) {
	email := auth.UserEmail(c)
	if email == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return
	}

	if err := h.users.Deactivate(c.Request.Context(), email); err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "profile marked as deleted"})
}

// writeError translates domain and service errors into client-visible
// statuses. Anything unexpected is logged and reduced to a generic 500.
func (h *Handler) writeError(c *gin.Context, err error) {
	var cooldown *domain.CooldownError

	switch {
	case errors.Is(err, service.ErrEmailMissing):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "valid email not found in authentication token"})
	case errors.Is(err, service.ErrEmailUnverified):
		c.JSON(http.StatusForbidden, gin.H{"error": "email not verified"})
	case errors.As(err, &cooldown):
		c.JSON(http.StatusForbidden, gin.H{"error": cooldown.Error()})
	case errors.Is(err, domain.ErrUsernameTaken):
		c.JSON(http.StatusConflict, gin.H{"error": "username is already taken"})
	case errors.Is(err, domain.ErrInvalidUsername):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrProfileNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
	default:
		h.logger.Error("request failed",
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}
