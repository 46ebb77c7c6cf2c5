// Package fakes provides in-memory stand-ins for the credential store and the
// rate provider, for unit tests that do not need Postgres or the network.
package fakes

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/fxgate/fxgate/internal/model"
	"github.com/fxgate/fxgate/internal/repository"
)

// MemoryStore mirrors repository.Repository semantics in memory. Debits are
// conditional under a mutex, matching the database's conditional UPDATE.
type MemoryStore struct {
	mu     sync.Mutex
	plans  map[int64]model.Plan
	users  map[string]*model.User
	logs   []model.RequestLog
	nextID int64

	// FailCharge, when set, is returned by ChargeCredits.
	FailCharge error
}

// NewMemoryStore creates a store seeded with plans. IDs are assigned in order from 1.
func NewMemoryStore(plans ...model.Plan) *MemoryStore {
	s := &MemoryStore{
		plans: make(map[int64]model.Plan),
		users: make(map[string]*model.User),
	}
	for _, p := range plans {
		s.AddPlan(p)
	}
	return s
}

// AddPlan stores p and returns it with its assigned ID.
func (s *MemoryStore) AddPlan(p model.Plan) model.Plan {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	p.ID = s.nextID
	s.plans[p.ID] = p
	return p
}

// GetPlanByID implements the plan lookup.
func (s *MemoryStore) GetPlanByID(_ context.Context, id int64) (*model.Plan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.plans[id]
	if !ok {
		return nil, repository.ErrPlanNotFound
	}
	return &p, nil
}

// CreateUser inserts user, enforcing unique email and API key.
func (s *MemoryStore) CreateUser(_ context.Context, user *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if u.Email == user.Email {
			return repository.ErrEmailExists
		}
		if u.APIKey == user.APIKey {
			return repository.ErrAPIKeyExists
		}
	}
	if _, ok := s.plans[user.PlanID]; !ok {
		return repository.ErrPlanNotFound
	}
	if user.ID == "" {
		user.ID = ulid.Make().String()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	user.UpdatedAt = user.CreatedAt

	stored := *user
	stored.Plan = nil
	s.users[stored.ID] = &stored
	return nil
}

// GetUserByID returns a copy of the user with its plan.
func (s *MemoryStore) GetUserByID(_ context.Context, id string) (*model.User, error) {
	return s.find(func(u *model.User) bool { return u.ID == id })
}

// GetUserByEmail returns a copy of the user with its plan.
func (s *MemoryStore) GetUserByEmail(_ context.Context, email string) (*model.User, error) {
	return s.find(func(u *model.User) bool { return u.Email == email })
}

// GetUserByAPIKey returns a copy of an active user with its plan.
func (s *MemoryStore) GetUserByAPIKey(_ context.Context, key string) (*model.User, error) {
	return s.find(func(u *model.User) bool { return u.APIKey == key && u.IsActive })
}

func (s *MemoryStore) find(match func(*model.User) bool) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if match(u) {
			out := *u
			p := s.plans[u.PlanID]
			out.Plan = &p
			return &out, nil
		}
	}
	return nil, repository.ErrUserNotFound
}

// ChargeCredits debits cost and appends log if the balance allows it.
func (s *MemoryStore) ChargeCredits(_ context.Context, userID string, cost int, log *model.RequestLog) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.FailCharge != nil {
		return 0, s.FailCharge
	}
	u, ok := s.users[userID]
	if !ok {
		return 0, repository.ErrUserNotFound
	}
	if u.Credits < cost {
		return 0, repository.ErrInsufficientCredits
	}

	u.Credits -= cost
	u.UpdatedAt = time.Now().UTC()
	log.UserID = userID
	log.CreditsDeducted = cost
	s.appendLocked(log)
	return u.Credits, nil
}

// AppendRequestLog records a non-billed outcome.
func (s *MemoryStore) AppendRequestLog(_ context.Context, log *model.RequestLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	log.CreditsDeducted = 0
	s.appendLocked(log)
	return nil
}

func (s *MemoryStore) appendLocked(log *model.RequestLog) {
	if log.ID == "" {
		log.ID = ulid.Make().String()
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now().UTC()
	}
	s.logs = append(s.logs, *log)
}

// ListRequestLogs returns the user's logs, newest first.
func (s *MemoryStore) ListRequestLogs(_ context.Context, userID string, limit int) ([]model.RequestLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []model.RequestLog
	for _, l := range s.logs {
		if l.UserID == userID {
			out = append(out, l)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Ping always succeeds.
func (s *MemoryStore) Ping(context.Context) error { return nil }

// Credits returns the stored balance, or -1 for an unknown user.
func (s *MemoryStore) Credits(userID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[userID]; ok {
		return u.Credits
	}
	return -1
}

// Logs returns every stored log in insertion order.
func (s *MemoryStore) Logs() []model.RequestLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.RequestLog, len(s.logs))
	copy(out, s.logs)
	return out
}

// UserCount returns the number of stored users.
func (s *MemoryStore) UserCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.users)
}

// SetActive toggles a user's active flag.
func (s *MemoryStore) SetActive(userID string, active bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[userID]; ok {
		u.IsActive = active
	}
}
