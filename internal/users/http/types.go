package http

import (
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/talkitive/talkitive-backend/internal/users/domain"
	"github.com/talkitive/talkitive-backend/internal/users/service"
)

type Handler struct {
	users  *service.UserService
	logger *zap.Logger
}

func New(users *service.UserService, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{users: users, logger: logger}
}

// syncRequest carries optional client hints; everything authoritative comes
// from the verified token.
type syncRequest struct {
	Username    string `json:"username" binding:"omitempty,username"`
	DisplayName string `json:"displayName" binding:"omitempty,max=50"`
	PhotoURL    string `json:"photoURL" binding:"omitempty,max=2048"`
}

type setUsernameRequest struct {
	Username string `json:"username" binding:"required"`
}

type updateProfileRequest struct {
	Username    *string        `json:"username" binding:"omitempty,username"`
	DisplayName *string        `json:"displayName" binding:"omitempty,max=50"`
	Age         *int           `json:"age" binding:"omitempty,min=13,max=100"`
	Gender      *domain.Gender `json:"gender" binding:"omitempty,oneof=male female other prefer_not_to_say"`
	About       *string        `json:"about" binding:"omitempty,max=500"`
	ProfilePic  *string        `json:"profilePic" binding:"omitempty,max=2048"`
	Topics      []string       `json:"topics" binding:"omitempty,max=15,dive,max=30"`
}

type toggleFavoriteRequest struct {
	TargetUserID string `json:"targetUserId" binding:"required"`
}

func init() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		_ = v.RegisterValidation("username", validUsername)
	}
}

func validUsername(fl validator.FieldLevel) bool {
	return domain.ValidateUsername(fl.Field().String()) == nil
}
