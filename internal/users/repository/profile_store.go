package repository

import (
	"context"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/talkitive/talkitive-backend/internal/users/domain"
)

// ProfileStore is the persistence boundary for user profiles. Implementations
// must enforce a unique index on email and a sparse, case-insensitive unique
// index on username.
type ProfileStore interface {
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	FindByID(ctx context.Context, id primitive.ObjectID) (*domain.User, error)

	// FindByUsername matches case-insensitively.
	FindByUsername(ctx context.Context, username string) (*domain.User, error)

	// UpsertByEmail inserts defaults if no profile holds the email, otherwise
	// returns the existing profile untouched. The insert and the lookup are a
	// single atomic operation; concurrent calls for one email never create
	// two documents.
	UpsertByEmail(ctx context.Context, email string, defaults *domain.User) (*domain.User, error)

	// UpdateFields applies the given field set to one profile and returns the
	// updated document. Keys are bson field names.
	UpdateFields(ctx context.Context, id primitive.ObjectID, fields map[string]interface{}) (*domain.User, error)

	SearchByUsernamePrefix(ctx context.Context, prefix string, limit int64) ([]domain.ProfileCard, error)

	// ListActive returns a page of active profiles with the social-graph
	// fields projected out, plus the total count of active profiles.
	ListActive(ctx context.Context, page, limit int64) ([]domain.User, int64, error)

	ToggleFav(ctx context.Context, userID, targetID primitive.ObjectID) ([]primitive.ObjectID, error)

	SetStatus(ctx context.Context, id primitive.ObjectID, status domain.ProfileStatus) error
}
