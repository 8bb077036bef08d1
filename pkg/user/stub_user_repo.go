package user

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

type StubUserRepository struct {
	mu     sync.Mutex
	nextId int
	data   map[string]User // uid -> user
	now    func() time.Time
}

func NewStubUserRepository() *StubUserRepository {
	return &StubUserRepository{data: map[string]User{}, now: time.Now}
}

func (s *StubUserRepository) CreateUser(_ context.Context, user User) (User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.usernameFree(user.Username, user.Uid) {
		return User{}, ErrUsernameTaken
	}
	s.nextId++
	user.Id = s.nextId
	user.CreatedAt = s.now()
	user.LastActive = user.CreatedAt
	s.data[user.Uid] = user
	return user, nil
}

func (s *StubUserRepository) FindUserByUid(_ context.Context, uid string) (User, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.data[uid]
	return u, ok, nil
}

func (s *StubUserRepository) GetAllUsers(_ context.Context) ([]User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	users := make([]User, 0, len(s.data))
	for _, u := range s.data {
		users = append(users, u)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Id < users[j].Id })
	return users, nil
}

func (s *StubUserRepository) UpdateUsername(_ context.Context, uid string, username string) (User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.data[uid]
	if !ok {
		return User{}, ErrUserNotFound
	}
	if !s.usernameFree(username, uid) {
		return User{}, ErrUsernameTaken
	}
	u.Username = username
	s.data[uid] = u
	return u, nil
}

func (s *StubUserRepository) TouchLastActive(_ context.Context, uid string) (User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.data[uid]
	if !ok {
		return User{}, ErrUserNotFound
	}
	u.LastActive = s.now()
	s.data[uid] = u
	return u, nil
}

func (s *StubUserRepository) IsUsernameAvailable(_ context.Context, username string, exceptUid string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.usernameFree(username, exceptUid), nil
}

func (s *StubUserRepository) usernameFree(username string, exceptUid string) bool {
	for uid, u := range s.data {
		if uid != exceptUid && strings.EqualFold(u.Username, username) {
			return false
		}
	}
	return true
}
