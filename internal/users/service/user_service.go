package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/talkitive/talkitive-backend/internal/auth"
	"github.com/talkitive/talkitive-backend/internal/users/domain"
	"github.com/talkitive/talkitive-backend/internal/users/repository"
)

var (
	// ErrEmailMissing signals a token without an email claim; sync cannot key
	// a profile without one.
	ErrEmailMissing = errors.New("token has no email")

	// ErrEmailUnverified signals an unverified email on a provider that
	// verifies implicitly (e.g. Google sign-in).
	ErrEmailUnverified = errors.New("email not verified")
)

// Presence is the slice of the presence store the service needs.
type Presence interface {
	MarkOnline(ctx context.Context, userID string) error
	IsOnline(ctx context.Context, userID string) (bool, error)
	OnlineStatus(ctx context.Context, userIDs []string) (map[string]bool, error)
}

// UserService owns the identity-sync and profile business rules.
type UserService struct {
	store    repository.ProfileStore
	verifier auth.TokenVerifier
	presence Presence
	logger   *zap.Logger
	now      func() time.Time
}

func NewUserService(store repository.ProfileStore, verifier auth.TokenVerifier, presence Presence, logger *zap.Logger) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserService{
		store:    store,
		verifier: verifier,
		presence: presence,
		logger:   logger,
		now:      time.Now,
	}
}

// Sync reconciles a verified login with the local profile store: find-or-create
// by email with insert-only defaults. Existing profiles come back untouched,
// so sync never clobbers a later explicit edit.
func (s *UserService) Sync(ctx context.Context, claims *auth.Claims, input domain.SyncInput) (*domain.SyncResult, error) {
	email := strings.ToLower(strings.TrimSpace(claims.Email))
	if email == "" {
		return nil, ErrEmailMissing
	}
	if auth.RequiresVerifiedEmail(claims.SignInProvider) && !claims.EmailVerified {
		return nil, ErrEmailUnverified
	}

	if input.Username != "" {
		if err := domain.ValidateUsername(input.Username); err != nil {
			return nil, err
		}
	}

	// First login is recomputed from provider metadata; client flags are
	// never trusted for this.
	firstLogin := false
	if meta, err := s.verifier.AccountMetadata(ctx, claims.UID); err != nil {
		s.logger.Warn("account metadata lookup failed", zap.Error(err))
	} else {
		firstLogin = meta.FirstLogin()
	}

	defaults := &domain.User{
		Username:       input.Username,
		DisplayName:    firstNonEmpty(input.DisplayName, claims.Name, emailLocalPart(email)),
		ProfilePic:     firstNonEmpty(input.PhotoURL, claims.Picture),
		HasSetUsername: input.Username != "",
	}

	user, err := s.store.UpsertByEmail(ctx, email, defaults)
	if err != nil {
		return nil, err
	}

	s.markOnline(ctx, user)

	return &domain.SyncResult{
		User:          user,
		NeedsUsername: !user.HasSetUsername,
		FirstLogin:    firstLogin,
	}, nil
}

// SetUsername assigns a chosen username to the caller's profile. Re-setting
// the current username is a no-op, not a conflict; changing an existing one
// is subject to the 24h cooldown.
func (s *UserService) SetUsername(ctx context.Context, email, username string) (*domain.User, error) {
	if err := domain.ValidateUsername(username); err != nil {
		return nil, err
	}

	user, err := s.store.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}

	if user.Username != "" && strings.EqualFold(user.Username, username) {
		return user, nil
	}

	// Renames go through the same cooldown as profile updates; only the
	// first assignment is exempt.
	if user.Username != "" && user.UsernameLastUpdatedAt != nil {
		elapsed := s.now().Sub(*user.UsernameLastUpdatedAt)
		if elapsed < domain.UsernameCooldown {
			return nil, &domain.CooldownError{Remaining: domain.UsernameCooldown - elapsed}
		}
	}

	if err := s.ensureUsernameFree(ctx, username, user.ID); err != nil {
		return nil, err
	}

	return s.store.UpdateFields(ctx, user.ID, map[string]interface{}{
		"username":              username,
		"hasSetUsername":        true,
		"usernameLastUpdatedAt": s.now().UTC(),
	})
}

// UpdateProfile applies a partial update to the profile identified by the
// token's email. A username change is gated by the 24h cooldown and the
// uniqueness check; all other fields apply only when present.
func (s *UserService) UpdateProfile(ctx context.Context, email string, input domain.UpdateProfileInput) (*domain.User, error) {
	user, err := s.store.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}

	fields := map[string]interface{}{}

	if input.Username != nil && *input.Username != user.Username {
		if err := domain.ValidateUsername(*input.Username); err != nil {
			return nil, err
		}
		if user.UsernameLastUpdatedAt != nil {
			elapsed := s.now().Sub(*user.UsernameLastUpdatedAt)
			if elapsed < domain.UsernameCooldown {
				return nil, &domain.CooldownError{Remaining: domain.UsernameCooldown - elapsed}
			}
		}
		if err := s.ensureUsernameFree(ctx, *input.Username, user.ID); err != nil {
			return nil, err
		}
		fields["username"] = *input.Username
		fields["hasSetUsername"] = true
		fields["usernameLastUpdatedAt"] = s.now().UTC()
	}

	if input.DisplayName != nil {
		fields["displayName"] = *input.DisplayName
	}
	if input.Age != nil {
		fields["age"] = *input.Age
	}
	if input.Gender != nil {
		fields["gender"] = *input.Gender
	}
	if input.About != nil {
		fields["about"] = *input.About
	}
	if input.ProfilePic != nil {
		fields["profilePic"] = *input.ProfilePic
	}
	if input.Topics != nil {
		fields["topics"] = input.Topics
	}

	if len(fields) == 0 {
		return user, nil
	}

	return s.store.UpdateFields(ctx, user.ID, fields)
}

// CheckUsername reports whether a candidate username is free. Pure read;
// malformed candidates report as unavailable with the validation reason.
func (s *UserService) CheckUsername(ctx context.Context, username string) (available bool, reason string, err error) {
	if vErr := domain.ValidateUsername(username); vErr != nil {
		return false, vErr.Error(), nil
	}

	_, err = s.store.FindByUsername(ctx, username)
	if errors.Is(err, domain.ErrProfileNotFound) {
		return true, "", nil
	}
	if err != nil {
		return false, "", err
	}
	return false, "username is already taken", nil
}

// GetByEmail returns the caller's own profile with presence populated.
func (s *UserService) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	user, err := s.store.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	s.fillPresence(ctx, user)
	return user, nil
}

// GetByIdentifier resolves a profile by object id or by exact username.
func (s *UserService) GetByIdentifier(ctx context.Context, identifier string) (*domain.User, error) {
	var user *domain.User
	var err error

	if oid, idErr := primitive.ObjectIDFromHex(identifier); idErr == nil {
		user, err = s.store.FindByID(ctx, oid)
	} else {
		user, err = s.store.FindByUsername(ctx, identifier)
	}
	if err != nil {
		return nil, err
	}

	s.fillPresence(ctx, user)
	return user, nil
}

// Search returns profile cards whose username starts with the given prefix,
// case-insensitively.
func (s *UserService) Search(ctx context.Context, prefix string, limit int64) ([]domain.ProfileCard, error) {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		return []domain.ProfileCard{}, nil
	}
	return s.store.SearchByUsernamePrefix(ctx, prefix, limit)
}

// ListActive returns a page of active profiles (the browse deck) with
// presence resolved in one batch.
func (s *UserService) ListActive(ctx context.Context, page, limit int64) ([]domain.User, int64, error) {
	users, total, err := s.store.ListActive(ctx, page, limit)
	if err != nil {
		return nil, 0, err
	}

	if s.presence != nil && len(users) > 0 {
		ids := make([]string, len(users))
		for i := range users {
			ids[i] = users[i].ID.Hex()
		}
		if status, pErr := s.presence.OnlineStatus(ctx, ids); pErr != nil {
			s.logger.Warn("batch presence lookup failed", zap.Error(pErr))
		} else {
			for i := range users {
				users[i].IsOnline = status[users[i].ID.Hex()]
			}
		}
	}
	return users, total, nil
}

// ToggleFavorite adds the target to the caller's favorites if absent, removes
// it if present, and returns the updated list.
func (s *UserService) ToggleFavorite(ctx context.Context, email, targetID string) ([]primitive.ObjectID, error) {
	user, err := s.store.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}

	oid, err := primitive.ObjectIDFromHex(targetID)
	if err != nil {
		return nil, fmt.Errorf("%w: bad target id", domain.ErrProfileNotFound)
	}
	if _, err := s.store.FindByID(ctx, oid); err != nil {
		return nil, err
	}

	return s.store.ToggleFav(ctx, user.ID, oid)
}

// Deactivate soft-deletes the caller's own profile. The document stays, only
// the status flips.
func (s *UserService) Deactivate(ctx context.Context, email string) error {
	user, err := s.store.FindByEmail(ctx, email)
	if err != nil {
		return err
	}
	return s.store.SetStatus(ctx, user.ID, domain.StatusDeleted)
}

func (s *UserService) ensureUsernameFree(ctx context.Context, username string, self primitive.ObjectID) error {
	holder, err := s.store.FindByUsername(ctx, username)
	if errors.Is(err, domain.ErrProfileNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if holder.ID != self {
		return domain.ErrUsernameTaken
	}
	return nil
}

func (s *UserService) markOnline(ctx context.Context, user *domain.User) {
	if s.presence == nil {
		return
	}
	if err := s.presence.MarkOnline(ctx, user.ID.Hex()); err != nil {
		s.logger.Warn("mark online failed", zap.String("user_id", user.ID.Hex()), zap.Error(err))
		return
	}
	user.IsOnline = true
}

func (s *UserService) fillPresence(ctx context.Context, user *domain.User) {
	if s.presence == nil {
		return
	}
	online, err := s.presence.IsOnline(ctx, user.ID.Hex())
	if err != nil {
		s.logger.Warn("presence lookup failed", zap.String("user_id", user.ID.Hex()), zap.Error(err))
		return
	}
	user.IsOnline = online
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func emailLocalPart(email string) string {
	if at := strings.Index(email, "@"); at > 0 {
		return email[:at]
	}
	return email
}
