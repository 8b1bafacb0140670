package domain

import (
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Gender string

const (
	GenderMale        Gender = "male"
	GenderFemale      Gender = "female"
	GenderOther       Gender = "other"
	GenderUnspecified Gender = "prefer_not_to_say"
)

func (g Gender) Valid() bool {
	switch g {
	case GenderMale, GenderFemale, GenderOther, GenderUnspecified:
		return true
	}
	return false
}

type ProfileStatus string

const (
	StatusActive   ProfileStatus = "active"
	StatusInactive ProfileStatus = "inactive"
	StatusBanned   ProfileStatus = "banned"
	StatusDeleted  ProfileStatus = "deleted"
)

const (
	UsernameMinLen   = 3
	UsernameMaxLen   = 25
	UsernameCooldown = 24 * time.Hour

	MinAge      = 13
	MaxAge      = 100
	MaxAboutLen = 500
	MaxTopics   = 15
	MaxTopicLen = 30
)

// User is the application's local profile record, distinct from the
// identity-provider account. Email is the stable join key between the two.
type User struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Email       string             `bson:"email" json:"email"`
	Username    string             `bson:"username,omitempty" json:"username,omitempty"`
	DisplayName string             `bson:"displayName,omitempty" json:"displayName,omitempty"`
	ProfilePic  string             `bson:"profilePic" json:"profilePic"`
	About       string             `bson:"about" json:"about"`
	Age         *int               `bson:"age,omitempty" json:"age,omitempty"`
	Gender      Gender             `bson:"gender,omitempty" json:"gender,omitempty"`

	Coins     int     `bson:"coins" json:"coins"`
	Rating    float64 `bson:"rating" json:"rating"`
	CallCount int     `bson:"callCount" json:"callCount"`

	ProfileStatus ProfileStatus `bson:"profileStatus" json:"profileStatus"`

	// IsOnline is served from the presence store, never persisted.
	IsOnline bool `bson:"-" json:"isOnline"`

	Favs    []primitive.ObjectID `bson:"favs" json:"favs"`
	Friends []primitive.ObjectID `bson:"friends" json:"friends"`
	Blocked []primitive.ObjectID `bson:"blocked" json:"blocked"`
	Topics  []string             `bson:"topics" json:"topics"`

	HasSetUsername        bool       `bson:"hasSetUsername" json:"hasSetUsername"`
	UsernameLastUpdatedAt *time.Time `bson:"usernameLastUpdatedAt,omitempty" json:"usernameLastUpdatedAt,omitempty"`

	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt" json:"updatedAt"`
}

// ProfileCard is the projection returned by username search:
// just enough to render a result card.
type ProfileCard struct {
	ID         primitive.ObjectID `bson:"_id" json:"id"`
	Username   string             `bson:"username" json:"username"`
	ProfilePic string             `bson:"profilePic" json:"profilePic"`
}

// SyncInput carries client-supplied hints for a sync call. All fields are
// optional; hints only ever fill insert-time defaults, never overwrite.
type SyncInput struct {
	DisplayName string
	PhotoURL    string
	Username    string
}

// UpdateProfileInput is a partial update. Nil pointer / nil slice means
// field untouched, not cleared.
type UpdateProfileInput struct {
	Username    *string
	DisplayName *string
	Age         *int
	Gender      *Gender
	About       *string
	ProfilePic  *string
	Topics      []string
}

// SyncResult pairs the reconciled profile with flags the client needs to
// drive its post-login flow.
type SyncResult struct {
	User          *User
	NeedsUsername bool
	FirstLogin    bool
}

var usernameCharset = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// ValidateUsername checks length and character-set rules. Returned errors
// wrap ErrInvalidUsername so callers can map them to a validation failure.
func ValidateUsername(username string) error {
	if len(username) < UsernameMinLen {
		return ErrUsernameTooShort
	}
	if len(username) > UsernameMaxLen {
		return ErrUsernameTooLong
	}
	if !usernameCharset.MatchString(username) {
		return ErrUsernameBadChars
	}
	return nil
}
