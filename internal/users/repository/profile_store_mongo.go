package repository

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/talkitive/talkitive-backend/internal/users/domain"
)

const profilesCollection = "users"

// caseInsensitive makes username lookups and the username unique index
// compare case-folded.
var caseInsensitive = &options.Collation{Locale: "en", Strength: 2}

// MongoProfileStore is the MongoDB-backed ProfileStore.
type MongoProfileStore struct {
	col *mongo.Collection
}

func NewMongoProfileStore(db *mongo.Database) *MongoProfileStore {
	return &MongoProfileStore{col: db.Collection(profilesCollection)}
}

// EnsureIndexes creates the unique email index and the sparse,
// case-insensitive unique username index. Call once at startup.
func (s *MongoProfileStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.col.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "username", Value: 1}},
			Options: options.Index().
				SetUnique(true).
				SetCollation(caseInsensitive).
				SetPartialFilterExpression(bson.D{{Key: "username", Value: bson.D{{Key: "$exists", Value: true}}}}),
		},
		{
			Keys: bson.D{{Key: "profileStatus", Value: 1}},
		},
	})
	if err != nil {
		return fmt.Errorf("create profile indexes: %w", err)
	}
	return nil
}

func (s *MongoProfileStore) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	return s.findOne(ctx, bson.M{"email": strings.ToLower(email)}, nil)
}

func (s *MongoProfileStore) FindByID(ctx context.Context, id primitive.ObjectID) (*domain.User, error) {
	return s.findOne(ctx, bson.M{"_id": id}, nil)
}

func (s *MongoProfileStore) FindByUsername(ctx context.Context, username string) (*domain.User, error) {
	return s.findOne(ctx, bson.M{"username": username}, caseInsensitive)
}

func (s *MongoProfileStore) findOne(ctx context.Context, filter bson.M, collation *options.Collation) (*domain.User, error) {
	opts := options.FindOne()
	if collation != nil {
		opts.SetCollation(collation)
	}

	var user domain.User
	err := s.col.FindOne(ctx, filter, opts).Decode(&user)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrProfileNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find profile: %w", err)
	}
	return &user, nil
}

func (s *MongoProfileStore) UpsertByEmail(ctx context.Context, email string, defaults *domain.User) (*domain.User, error) {
	email = strings.ToLower(email)
	now := time.Now().UTC()

	setOnInsert := bson.M{
		"email":          email,
		"displayName":    defaults.DisplayName,
		"profilePic":     defaults.ProfilePic,
		"about":          "",
		"coins":          0,
		"rating":         0.0,
		"callCount":      0,
		"profileStatus":  domain.StatusActive,
		"favs":           []primitive.ObjectID{},
		"friends":        []primitive.ObjectID{},
		"blocked":        []primitive.ObjectID{},
		"topics":         []string{},
		"hasSetUsername": defaults.HasSetUsername,
		"createdAt":      now,
		"updatedAt":      now,
	}
	// Username stays absent until chosen, keeping the sparse unique index out
	// of play for fresh Google sign-ins.
	if defaults.Username != "" {
		setOnInsert["username"] = defaults.Username
	}

	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	return upsertWithRetry(func() (*domain.User, error) {
		var user domain.User
		err := s.col.FindOneAndUpdate(
			ctx,
			bson.M{"email": email},
			bson.M{"$setOnInsert": setOnInsert},
			opts,
		).Decode(&user)
		if err != nil {
			return nil, err
		}
		return &user, nil
	}, defaults.Username != "")
}

// upsertWithRetry runs an upsert attempt and retries once on a duplicate key.
// Two concurrent first syncs can both take the insert path; the loser hits
// E11000 on the email index, and the retry matches the now existing document
// instead of inserting, so the loser gets the winner's profile. A duplicate
// that survives the retry can only be a username-hint conflict.
func upsertWithRetry(attempt func() (*domain.User, error), usernameHint bool) (*domain.User, error) {
	user, err := attempt()
	if mongo.IsDuplicateKeyError(err) {
		user, err = attempt()
		if mongo.IsDuplicateKeyError(err) && usernameHint {
			return nil, domain.ErrUsernameTaken
		}
	}
	if err != nil {
		return nil, fmt.Errorf("upsert profile: %w", err)
	}
	return user, nil
}

func (s *MongoProfileStore) UpdateFields(ctx context.Context, id primitive.ObjectID, fields map[string]interface{}) (*domain.User, error) {
	set := bson.M{"updatedAt": time.Now().UTC()}
	for k, v := range fields {
		set[k] = v
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var user domain.User
	err := s.col.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set}, opts).Decode(&user)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrProfileNotFound
	}
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, domain.ErrUsernameTaken
		}
		return nil, fmt.Errorf("update profile: %w", err)
	}
	return &user, nil
}

func (s *MongoProfileStore) SearchByUsernamePrefix(ctx context.Context, prefix string, limit int64) ([]domain.ProfileCard, error) {
	if limit <= 0 {
		limit = 20
	}

	filter := bson.M{
		"username": primitive.Regex{
			Pattern: "^" + regexp.QuoteMeta(prefix),
			Options: "i",
		},
		"profileStatus": bson.M{"$ne": domain.StatusDeleted},
	}

	opts := options.Find().
		SetProjection(bson.M{"_id": 1, "username": 1, "profilePic": 1}).
		SetLimit(limit).
		SetSort(bson.D{{Key: "username", Value: 1}})

	cur, err := s.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("search profiles: %w", err)
	}
	defer cur.Close(ctx)

	cards := []domain.ProfileCard{}
	if err := cur.All(ctx, &cards); err != nil {
		return nil, fmt.Errorf("decode search results: %w", err)
	}
	return cards, nil
}

func (s *MongoProfileStore) ListActive(ctx context.Context, page, limit int64) ([]domain.User, int64, error) {
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = 10
	}

	filter := bson.M{"profileStatus": domain.StatusActive}

	total, err := s.col.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("count active profiles: %w", err)
	}

	opts := options.Find().
		SetSkip((page - 1) * limit).
		SetLimit(limit).
		SetProjection(bson.M{"favs": 0, "friends": 0, "blocked": 0})

	cur, err := s.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("list active profiles: %w", err)
	}
	defer cur.Close(ctx)

	users := []domain.User{}
	if err := cur.All(ctx, &users); err != nil {
		return nil, 0, fmt.Errorf("decode active profiles: %w", err)
	}
	return users, total, nil
}

func (s *MongoProfileStore) ToggleFav(ctx context.Context, userID, targetID primitive.ObjectID) ([]primitive.ObjectID, error) {
	user, err := s.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	op := bson.M{"$addToSet": bson.M{"favs": targetID}}
	for _, fav := range user.Favs {
		if fav == targetID {
			op = bson.M{"$pull": bson.M{"favs": targetID}}
			break
		}
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var updated domain.User
	err = s.col.FindOneAndUpdate(ctx, bson.M{"_id": userID}, op, opts).Decode(&updated)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrProfileNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("toggle favorite: %w", err)
	}
	return updated.Favs, nil
}

func (s *MongoProfileStore) SetStatus(ctx context.Context, id primitive.ObjectID, status domain.ProfileStatus) error {
	res, err := s.col.UpdateByID(ctx, id, bson.M{"$set": bson.M{
		"profileStatus": status,
		"updatedAt":     time.Now().UTC(),
	}})
	if err != nil {
		return fmt.Errorf("set profile status: %w", err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrProfileNotFound
	}
	return nil
}
