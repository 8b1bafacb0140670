package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/talkitive/talkitive-backend/internal/auth"
	"github.com/talkitive/talkitive-backend/internal/users/domain"
	"github.com/talkitive/talkitive-backend/internal/users/repository"
)

type fakeVerifier struct {
	meta    map[string]*auth.AccountMetadata
	metaErr error
}

func (f *fakeVerifier) VerifyIDToken(_ context.Context, _ string) (*auth.Claims, error) {
	return nil, errors.New("not used in service tests")
}

func (f *fakeVerifier) AccountMetadata(_ context.Context, uid string) (*auth.AccountMetadata, error) {
	if f.metaErr != nil {
		return nil, f.metaErr
	}
	if m, ok := f.meta[uid]; ok {
		return m, nil
	}
	now := time.Now()
	return &auth.AccountMetadata{CreatedAt: now.Add(-time.Hour), LastSignInAt: now}, nil
}

func newTestService(t *testing.T) (*UserService, *repository.MemoryProfileStore, *fakeVerifier) {
	t.Helper()
	store := repository.NewMemoryProfileStore()
	verifier := &fakeVerifier{meta: map[string]*auth.AccountMetadata{}}
	svc := NewUserService(store, verifier, nil, zap.NewNop())
	return svc, store, verifier
}

func googleClaims(uid, email string) *auth.Claims {
	return &auth.Claims{
		UID:            uid,
		Email:          email,
		EmailVerified:  true,
		SignInProvider: auth.ProviderGoogle,
	}
}

func TestSync_CreatesProfileWithDefaults(t *testing.T) {
	svc, _, verifier := newTestService(t)
	ctx := context.Background()

	created := time.Now().Add(-time.Minute)
	verifier.meta["uid-1"] = &auth.AccountMetadata{CreatedAt: created, LastSignInAt: created}

	res, err := svc.Sync(ctx, googleClaims("uid-1", "a@x.com"), domain.SyncInput{})
	require.NoError(t, err)

	assert.Equal(t, "a@x.com", res.User.Email)
	assert.Equal(t, 0, res.User.Coins)
	assert.Equal(t, 0.0, res.User.Rating)
	assert.Equal(t, 0, res.User.CallCount)
	assert.Equal(t, domain.StatusActive, res.User.ProfileStatus)
	assert.False(t, res.User.HasSetUsername)
	assert.True(t, res.NeedsUsername)
	assert.True(t, res.FirstLogin)

	// Display name falls back to the email's local part.
	assert.Equal(t, "a", res.User.DisplayName)
}

func TestSync_UsernameHint(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	res, err := svc.Sync(ctx, googleClaims("uid-1", "a@x.com"), domain.SyncInput{Username: "alice_01"})
	require.NoError(t, err)

	assert.Equal(t, "alice_01", res.User.Username)
	assert.True(t, res.User.HasSetUsername)
	assert.False(t, res.NeedsUsername)
}

func TestSync_InvalidHintRejected(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.Sync(context.Background(), googleClaims("uid-1", "a@x.com"), domain.SyncInput{Username: "a b"})
	assert.ErrorIs(t, err, domain.ErrInvalidUsername)
}

func TestSync_Idempotent(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	claims := googleClaims("uid-1", "a@x.com")

	first, err := svc.Sync(ctx, claims, domain.SyncInput{DisplayName: "Alice"})
	require.NoError(t, err)

	second, err := svc.Sync(ctx, claims, domain.SyncInput{DisplayName: "Someone Else"})
	require.NoError(t, err)

	assert.Equal(t, first.User.ID, second.User.ID)
	assert.Equal(t, "Alice", second.User.DisplayName, "second sync must not overwrite insert-time values")
}

func TestSync_DoesNotClobberLaterEdits(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	claims := googleClaims("uid-1", "a@x.com")

	_, err := svc.Sync(ctx, claims, domain.SyncInput{})
	require.NoError(t, err)

	about := "hello world"
	_, err = svc.UpdateProfile(ctx, "a@x.com", domain.UpdateProfileInput{About: &about})
	require.NoError(t, err)

	res, err := svc.Sync(ctx, claims, domain.SyncInput{})
	require.NoError(t, err)
	assert.Equal(t, "hello world", res.User.About)
}

func TestSync_EmailPolicies(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	t.Run("missing email", func(t *testing.T) {
		claims := googleClaims("uid-1", "")
		_, err := svc.Sync(ctx, claims, domain.SyncInput{})
		assert.ErrorIs(t, err, ErrEmailMissing)
	})

	t.Run("unverified google rejected", func(t *testing.T) {
		claims := googleClaims("uid-2", "b@x.com")
		claims.EmailVerified = false
		_, err := svc.Sync(ctx, claims, domain.SyncInput{})
		assert.ErrorIs(t, err, ErrEmailUnverified)
	})

	t.Run("unverified password account allowed", func(t *testing.T) {
		claims := &auth.Claims{
			UID:            "uid-3",
			Email:          "c@x.com",
			EmailVerified:  false,
			SignInProvider: auth.ProviderPassword,
		}
		res, err := svc.Sync(ctx, claims, domain.SyncInput{})
		require.NoError(t, err)
		assert.Equal(t, "c@x.com", res.User.Email)
	})
}

func TestSync_FirstLoginRecomputedServerSide(t *testing.T) {
	svc, _, verifier := newTestService(t)
	ctx := context.Background()

	created := time.Now().Add(-48 * time.Hour)
	verifier.meta["uid-1"] = &auth.AccountMetadata{
		CreatedAt:    created,
		LastSignInAt: time.Now(),
	}

	res, err := svc.Sync(ctx, googleClaims("uid-1", "a@x.com"), domain.SyncInput{})
	require.NoError(t, err)
	assert.False(t, res.FirstLogin)
}

func TestSync_MetadataFailureIsNotFatal(t *testing.T) {
	svc, _, verifier := newTestService(t)
	verifier.metaErr = errors.New("provider down")

	res, err := svc.Sync(context.Background(), googleClaims("uid-1", "a@x.com"), domain.SyncInput{})
	require.NoError(t, err)
	assert.False(t, res.FirstLogin)
}

func TestSetUsername(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Sync(ctx, googleClaims("uid-1", "a@x.com"), domain.SyncInput{})
	require.NoError(t, err)
	_, err = svc.Sync(ctx, googleClaims("uid-2", "b@x.com"), domain.SyncInput{})
	require.NoError(t, err)

	t.Run("assigns and stamps", func(t *testing.T) {
		user, err := svc.SetUsername(ctx, "a@x.com", "alice")
		require.NoError(t, err)
		assert.Equal(t, "alice", user.Username)
		assert.True(t, user.HasSetUsername)
		require.NotNil(t, user.UsernameLastUpdatedAt)
	})

	t.Run("conflict with other profile", func(t *testing.T) {
		_, err := svc.SetUsername(ctx, "b@x.com", "ALICE")
		assert.ErrorIs(t, err, domain.ErrUsernameTaken)
	})

	t.Run("re-setting own name is a no-op", func(t *testing.T) {
		user, err := svc.SetUsername(ctx, "a@x.com", "Alice")
		require.NoError(t, err)
		assert.Equal(t, "alice", user.Username)
	})

	t.Run("validation failure", func(t *testing.T) {
		_, err := svc.SetUsername(ctx, "a@x.com", "ab")
		assert.ErrorIs(t, err, domain.ErrInvalidUsername)
	})

	t.Run("unknown profile", func(t *testing.T) {
		_, err := svc.SetUsername(ctx, "ghost@x.com", "ghostly")
		assert.ErrorIs(t, err, domain.ErrProfileNotFound)
	})
}

func TestSetUsername_RenameCooldown(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	base := time.Now()
	svc.now = func() time.Time { return base }

	_, err := svc.Sync(ctx, googleClaims("uid-1", "a@x.com"), domain.SyncInput{})
	require.NoError(t, err)

	t.Run("first assignment exempt", func(t *testing.T) {
		user, err := svc.SetUsername(ctx, "a@x.com", "alice")
		require.NoError(t, err)
		assert.Equal(t, "alice", user.Username)
	})

	t.Run("rename a minute later rejected", func(t *testing.T) {
		svc.now = func() time.Time { return base.Add(time.Minute) }

		_, err := svc.SetUsername(ctx, "a@x.com", "alice2")
		var cooldown *domain.CooldownError
		require.ErrorAs(t, err, &cooldown)
		assert.Equal(t, 23, cooldown.HoursLeft())

		user, err := svc.GetByEmail(ctx, "a@x.com")
		require.NoError(t, err)
		assert.Equal(t, "alice", user.Username)
	})

	t.Run("re-setting own name still a no-op during cooldown", func(t *testing.T) {
		svc.now = func() time.Time { return base.Add(time.Minute) }

		user, err := svc.SetUsername(ctx, "a@x.com", "ALICE")
		require.NoError(t, err)
		assert.Equal(t, "alice", user.Username)
	})

	t.Run("rename after window succeeds", func(t *testing.T) {
		svc.now = func() time.Time { return base.Add(25 * time.Hour) }

		user, err := svc.SetUsername(ctx, "a@x.com", "alice2")
		require.NoError(t, err)
		assert.Equal(t, "alice2", user.Username)
	})
}

func TestUpdateProfile_UsernameCooldown(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	base := time.Now()
	svc.now = func() time.Time { return base }

	_, err := svc.Sync(ctx, googleClaims("uid-1", "a@x.com"), domain.SyncInput{})
	require.NoError(t, err)
	_, err = svc.SetUsername(ctx, "a@x.com", "alice")
	require.NoError(t, err)

	t.Run("change one hour later rejected with 23h left", func(t *testing.T) {
		svc.now = func() time.Time { return base.Add(time.Hour) }

		next := "alice2"
		_, err := svc.UpdateProfile(ctx, "a@x.com", domain.UpdateProfileInput{Username: &next})

		var cooldown *domain.CooldownError
		require.ErrorAs(t, err, &cooldown)
		assert.Equal(t, 23, cooldown.HoursLeft())
		assert.Contains(t, cooldown.Error(), fmt.Sprintf("%dh", cooldown.HoursLeft()))
	})

	t.Run("other fields unaffected by cooldown", func(t *testing.T) {
		svc.now = func() time.Time { return base.Add(time.Hour) }

		about := "still editable"
		user, err := svc.UpdateProfile(ctx, "a@x.com", domain.UpdateProfileInput{About: &about})
		require.NoError(t, err)
		assert.Equal(t, "still editable", user.About)
	})

	t.Run("change after window succeeds", func(t *testing.T) {
		svc.now = func() time.Time { return base.Add(25 * time.Hour) }

		next := "alice2"
		user, err := svc.UpdateProfile(ctx, "a@x.com", domain.UpdateProfileInput{Username: &next})
		require.NoError(t, err)
		assert.Equal(t, "alice2", user.Username)
	})
}

func TestUpdateProfile_UniquenessExcludesSelf(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Sync(ctx, googleClaims("uid-1", "a@x.com"), domain.SyncInput{Username: "alice"})
	require.NoError(t, err)
	_, err = svc.Sync(ctx, googleClaims("uid-2", "b@x.com"), domain.SyncInput{Username: "bob"})
	require.NoError(t, err)

	t.Run("same username is a no-op, not a conflict", func(t *testing.T) {
		name := "alice"
		user, err := svc.UpdateProfile(ctx, "a@x.com", domain.UpdateProfileInput{Username: &name})
		require.NoError(t, err)
		assert.Nil(t, user.UsernameLastUpdatedAt, "no-op must not burn the cooldown")
	})

	t.Run("taken by other profile", func(t *testing.T) {
		name := "bob"
		_, err := svc.UpdateProfile(ctx, "a@x.com", domain.UpdateProfileInput{Username: &name})
		assert.ErrorIs(t, err, domain.ErrUsernameTaken)
	})
}

func TestUpdateProfile_PartialFields(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Sync(ctx, googleClaims("uid-1", "a@x.com"), domain.SyncInput{})
	require.NoError(t, err)

	age := 30
	gender := domain.GenderFemale
	user, err := svc.UpdateProfile(ctx, "a@x.com", domain.UpdateProfileInput{
		Age:    &age,
		Gender: &gender,
		Topics: []string{"travel", "coffee"},
	})
	require.NoError(t, err)
	require.NotNil(t, user.Age)
	assert.Equal(t, 30, *user.Age)
	assert.Equal(t, domain.GenderFemale, user.Gender)
	assert.Equal(t, []string{"travel", "coffee"}, user.Topics)

	// Absent fields stay untouched.
	about := "about me"
	user, err = svc.UpdateProfile(ctx, "a@x.com", domain.UpdateProfileInput{About: &about})
	require.NoError(t, err)
	require.NotNil(t, user.Age)
	assert.Equal(t, 30, *user.Age)
	assert.Equal(t, []string{"travel", "coffee"}, user.Topics)
}

func TestCheckUsername(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Sync(ctx, googleClaims("uid-1", "a@x.com"), domain.SyncInput{Username: "alice"})
	require.NoError(t, err)

	available, _, err := svc.CheckUsername(ctx, "bob")
	require.NoError(t, err)
	assert.True(t, available)

	available, reason, err := svc.CheckUsername(ctx, "Alice")
	require.NoError(t, err)
	assert.False(t, available, "case-insensitive match counts as taken")
	assert.NotEmpty(t, reason)

	available, reason, err = svc.CheckUsername(ctx, "a b")
	require.NoError(t, err)
	assert.False(t, available)
	assert.NotEmpty(t, reason)
}

func TestSearch_ProjectsCards(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Sync(ctx, googleClaims("uid-1", "a@x.com"), domain.SyncInput{Username: "alice", PhotoURL: "http://pic/a"})
	require.NoError(t, err)
	_, err = svc.Sync(ctx, googleClaims("uid-2", "b@x.com"), domain.SyncInput{Username: "Albert"})
	require.NoError(t, err)
	_, err = svc.Sync(ctx, googleClaims("uid-3", "c@x.com"), domain.SyncInput{Username: "bob"})
	require.NoError(t, err)

	cards, err := svc.Search(ctx, "al", 20)
	require.NoError(t, err)
	require.Len(t, cards, 2)
	for _, card := range cards {
		assert.False(t, card.ID.IsZero())
		assert.NotEmpty(t, card.Username)
	}

	cards, err = svc.Search(ctx, "  ", 20)
	require.NoError(t, err)
	assert.Empty(t, cards)
}

func TestToggleFavorite(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Sync(ctx, googleClaims("uid-1", "a@x.com"), domain.SyncInput{})
	require.NoError(t, err)
	target, err := svc.Sync(ctx, googleClaims("uid-2", "b@x.com"), domain.SyncInput{})
	require.NoError(t, err)

	targetID := target.User.ID.Hex()

	favs, err := svc.ToggleFavorite(ctx, "a@x.com", targetID)
	require.NoError(t, err)
	require.Len(t, favs, 1)
	assert.Equal(t, target.User.ID, favs[0])

	favs, err = svc.ToggleFavorite(ctx, "a@x.com", targetID)
	require.NoError(t, err)
	assert.Empty(t, favs)

	_, err = svc.ToggleFavorite(ctx, "a@x.com", "not-an-object-id")
	assert.ErrorIs(t, err, domain.ErrProfileNotFound)
}

func TestDeactivate_SoftDeletes(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()

	res, err := svc.Sync(ctx, googleClaims("uid-1", "a@x.com"), domain.SyncInput{})
	require.NoError(t, err)

	require.NoError(t, svc.Deactivate(ctx, "a@x.com"))

	user, err := store.FindByID(ctx, res.User.ID)
	require.NoError(t, err, "soft delete keeps the document")
	assert.Equal(t, domain.StatusDeleted, user.ProfileStatus)
}
