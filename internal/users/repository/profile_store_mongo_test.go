package repository

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/talkitive/talkitive-backend/internal/users/domain"
)

func duplicateKeyErr() error {
	return mongo.WriteException{WriteErrors: []mongo.WriteError{{Code: 11000}}}
}

func TestUpsertWithRetry(t *testing.T) {
	winner := &domain.User{Email: "a@x.com", Username: "alice"}

	t.Run("lost insert race recovers on retry", func(t *testing.T) {
		calls := 0
		user, err := upsertWithRetry(func() (*domain.User, error) {
			calls++
			if calls == 1 {
				return nil, duplicateKeyErr()
			}
			return winner, nil
		}, false)
		require.NoError(t, err)
		assert.Equal(t, winner, user)
		assert.Equal(t, 2, calls)
	})

	t.Run("persisting duplicate with hint is a username conflict", func(t *testing.T) {
		_, err := upsertWithRetry(func() (*domain.User, error) {
			return nil, duplicateKeyErr()
		}, true)
		assert.ErrorIs(t, err, domain.ErrUsernameTaken)
	})

	t.Run("persisting duplicate without hint surfaces the error", func(t *testing.T) {
		_, err := upsertWithRetry(func() (*domain.User, error) {
			return nil, duplicateKeyErr()
		}, false)
		require.Error(t, err)
		assert.NotErrorIs(t, err, domain.ErrUsernameTaken)
	})

	t.Run("non-duplicate error is not retried", func(t *testing.T) {
		boom := errors.New("network down")
		calls := 0
		_, err := upsertWithRetry(func() (*domain.User, error) {
			calls++
			return nil, boom
		}, true)
		require.ErrorIs(t, err, boom)
		assert.Equal(t, 1, calls)
	})

	t.Run("clean insert needs one attempt", func(t *testing.T) {
		calls := 0
		user, err := upsertWithRetry(func() (*domain.User, error) {
			calls++
			return winner, nil
		}, true)
		require.NoError(t, err)
		assert.Equal(t, winner, user)
		assert.Equal(t, 1, calls)
	})
}
