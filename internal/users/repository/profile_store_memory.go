package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/talkitive/talkitive-backend/internal/users/domain"
)

// MemoryProfileStore is an in-memory ProfileStore used by tests and local
// development. It mirrors the Mongo store's semantics, including the
// insert-only upsert and the case-insensitive username constraint.
type MemoryProfileStore struct {
	mu       sync.Mutex
	profiles map[primitive.ObjectID]*domain.User
}

func NewMemoryProfileStore() *MemoryProfileStore {
	return &MemoryProfileStore{
		profiles: make(map[primitive.ObjectID]*domain.User),
	}
}

func clone(u *domain.User) *domain.User {
	cp := *u
	cp.Favs = append([]primitive.ObjectID(nil), u.Favs...)
	cp.Friends = append([]primitive.ObjectID(nil), u.Friends...)
	cp.Blocked = append([]primitive.ObjectID(nil), u.Blocked...)
	cp.Topics = append([]string(nil), u.Topics...)
	if u.Age != nil {
		age := *u.Age
		cp.Age = &age
	}
	if u.UsernameLastUpdatedAt != nil {
		at := *u.UsernameLastUpdatedAt
		cp.UsernameLastUpdatedAt = &at
	}
	return &cp
}

func (s *MemoryProfileStore) FindByEmail(_ context.Context, email string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	email = strings.ToLower(email)
	for _, u := range s.profiles {
		if u.Email == email {
			return clone(u), nil
		}
	}
	return nil, domain.ErrProfileNotFound
}

func (s *MemoryProfileStore) FindByID(_ context.Context, id primitive.ObjectID) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.profiles[id]
	if !ok {
		return nil, domain.ErrProfileNotFound
	}
	return clone(u), nil
}

func (s *MemoryProfileStore) FindByUsername(_ context.Context, username string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u := s.findByUsernameLocked(username)
	if u == nil {
		return nil, domain.ErrProfileNotFound
	}
	return clone(u), nil
}

func (s *MemoryProfileStore) findByUsernameLocked(username string) *domain.User {
	for _, u := range s.profiles {
		if u.Username != "" && strings.EqualFold(u.Username, username) {
			return u
		}
	}
	return nil
}

func (s *MemoryProfileStore) UpsertByEmail(_ context.Context, email string, defaults *domain.User) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	email = strings.ToLower(email)
	for _, u := range s.profiles {
		if u.Email == email {
			return clone(u), nil
		}
	}

	if defaults.Username != "" && s.findByUsernameLocked(defaults.Username) != nil {
		return nil, domain.ErrUsernameTaken
	}

	now := time.Now().UTC()
	u := &domain.User{
		ID:             primitive.NewObjectID(),
		Email:          email,
		Username:       defaults.Username,
		DisplayName:    defaults.DisplayName,
		ProfilePic:     defaults.ProfilePic,
		ProfileStatus:  domain.StatusActive,
		Favs:           []primitive.ObjectID{},
		Friends:        []primitive.ObjectID{},
		Blocked:        []primitive.ObjectID{},
		Topics:         []string{},
		HasSetUsername: defaults.HasSetUsername,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	s.profiles[u.ID] = u
	return clone(u), nil
}

func (s *MemoryProfileStore) UpdateFields(_ context.Context, id primitive.ObjectID, fields map[string]interface{}) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.profiles[id]
	if !ok {
		return nil, domain.ErrProfileNotFound
	}

	if v, ok := fields["username"]; ok {
		username := v.(string)
		if other := s.findByUsernameLocked(username); other != nil && other.ID != id {
			return nil, domain.ErrUsernameTaken
		}
		u.Username = username
	}

	for k, v := range fields {
		switch k {
		case "username":
			// handled above
		case "displayName":
			u.DisplayName = v.(string)
		case "profilePic":
			u.ProfilePic = v.(string)
		case "about":
			u.About = v.(string)
		case "age":
			age := v.(int)
			u.Age = &age
		case "gender":
			u.Gender = v.(domain.Gender)
		case "topics":
			u.Topics = append([]string(nil), v.([]string)...)
		case "hasSetUsername":
			u.HasSetUsername = v.(bool)
		case "usernameLastUpdatedAt":
			at := v.(time.Time)
			u.UsernameLastUpdatedAt = &at
		case "profileStatus":
			u.ProfileStatus = v.(domain.ProfileStatus)
		}
	}
	u.UpdatedAt = time.Now().UTC()

	return clone(u), nil
}

func (s *MemoryProfileStore) SearchByUsernamePrefix(_ context.Context, prefix string, limit int64) ([]domain.ProfileCard, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if limit <= 0 {
		limit = 20
	}

	cards := []domain.ProfileCard{}
	for _, u := range s.profiles {
		if u.Username == "" || u.ProfileStatus == domain.StatusDeleted {
			continue
		}
		if strings.HasPrefix(strings.ToLower(u.Username), strings.ToLower(prefix)) {
			cards = append(cards, domain.ProfileCard{
				ID:         u.ID,
				Username:   u.Username,
				ProfilePic: u.ProfilePic,
			})
		}
	}
	sort.Slice(cards, func(i, j int) bool { return cards[i].Username < cards[j].Username })
	if int64(len(cards)) > limit {
		cards = cards[:limit]
	}
	return cards, nil
}

func (s *MemoryProfileStore) ListActive(_ context.Context, page, limit int64) ([]domain.User, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = 10
	}

	active := []domain.User{}
	for _, u := range s.profiles {
		if u.ProfileStatus != domain.StatusActive {
			continue
		}
		cp := clone(u)
		cp.Favs, cp.Friends, cp.Blocked = nil, nil, nil
		active = append(active, *cp)
	}
	sort.Slice(active, func(i, j int) bool { return active[i].CreatedAt.Before(active[j].CreatedAt) })

	total := int64(len(active))
	start := (page - 1) * limit
	if start >= total {
		return []domain.User{}, total, nil
	}
	end := start + limit
	if end > total {
		end = total
	}
	return active[start:end], total, nil
}

func (s *MemoryProfileStore) ToggleFav(_ context.Context, userID, targetID primitive.ObjectID) ([]primitive.ObjectID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.profiles[userID]
	if !ok {
		return nil, domain.ErrProfileNotFound
	}

	for i, fav := range u.Favs {
		if fav == targetID {
			u.Favs = append(u.Favs[:i], u.Favs[i+1:]...)
			return append([]primitive.ObjectID(nil), u.Favs...), nil
		}
	}
	u.Favs = append(u.Favs, targetID)
	return append([]primitive.ObjectID(nil), u.Favs...), nil
}

func (s *MemoryProfileStore) SetStatus(_ context.Context, id primitive.ObjectID, status domain.ProfileStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.profiles[id]
	if !ok {
		return domain.ErrProfileNotFound
	}
	u.ProfileStatus = status
	u.UpdatedAt = time.Now().UTC()
	return nil
}
