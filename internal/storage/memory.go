package storage

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/aerocall/backend/internal/types"
)

// MemoryStore is an in-process directory used when DynamoDB is disabled
type MemoryStore struct {
	mu    sync.RWMutex
	users map[string]types.UserProfile
}

func NewMemoryStore(users ...types.UserProfile) *MemoryStore {
	s := &MemoryStore{users: make(map[string]types.UserProfile)}
	for _, u := range users {
		s.users[u.UserID] = u
	}
	return s
}

func (s *MemoryStore) GetUser(_ context.Context, userID string) (*types.UserProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[userID]
	if !ok {
		return nil, ErrUserNotFound
	}
	return &u, nil
}

func (s *MemoryStore) FindUserByEmail(_ context.Context, email string) (*types.UserProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			return &u, nil
		}
	}
	return nil, ErrUserNotFound
}

func (s *MemoryStore) ListTeam(_ context.Context, teamID string) ([]types.UserProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	team := []types.UserProfile{}
	for _, u := range s.users {
		if u.TeamID == teamID {
			team = append(team, u)
		}
	}
	sort.Slice(team, func(i, j int) bool { return team[i].Name < team[j].Name })
	return team, nil
}

func (s *MemoryStore) PutUser(_ context.Context, user types.UserProfile) error {
	s.mu.Lock()
	s.users[user.UserID] = user
	s.mu.Unlock()
	return nil
}
