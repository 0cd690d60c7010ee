package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"

	"github.com/ironforge/athlete-api/internal/apperror"
	"github.com/ironforge/athlete-api/internal/model"
	"github.com/ironforge/athlete-api/internal/repository"
)

// memStore is an in-memory repository.Store. InTx runs fn against the same
// maps without isolation or rollback, which is enough for the rules under
// test here; transactional behaviour is covered against SQLite.
type memStore struct {
	mu           sync.Mutex
	nextID       int
	users        map[string]*model.User
	profiles     map[string]map[string]any
	training     map[string]map[string]any
	achievements map[string]*model.Achievement
	stats        []*model.PerformanceStat

	failWith error // returned by every write when set
}

func newMemStore() *memStore {
	return &memStore{
		users:        map[string]*model.User{},
		profiles:     map[string]map[string]any{},
		training:     map[string]map[string]any{},
		achievements: map[string]*model.Achievement{},
	}
}

func (m *memStore) id() string {
	m.nextID++
	return fmt.Sprintf("mem-%04d", m.nextID)
}

func (m *memStore) Users() repository.UserRepository               { return memUsers{m} }
func (m *memStore) Profiles() repository.ProfileRepository         { return memDetails{m, m.profiles} }
func (m *memStore) Training() repository.TrainingRepository        { return memTraining{memDetails{m, m.training}} }
func (m *memStore) Achievements() repository.AchievementRepository { return memAchievements{m} }
func (m *memStore) Stats() repository.StatRepository               { return memStats{m} }

func (m *memStore) InTx(ctx context.Context, fn func(ctx context.Context, tx repository.Repositories) error) error {
	return fn(ctx, m)
}

func (m *memStore) Ping(context.Context) error { return nil }
func (m *memStore) Close() error               { return nil }

type memUsers struct{ m *memStore }

func (r memUsers) Create(_ context.Context, u *model.User) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if r.m.failWith != nil {
		return r.m.failWith
	}
	for _, existing := range r.m.users {
		if existing.Email == u.Email {
			return apperror.Conflict("duplicate email")
		}
	}
	u.ID = r.m.id()
	stored := *u
	r.m.users[u.ID] = &stored
	return nil
}

func (r memUsers) EmailExists(_ context.Context, email string) (bool, error) {
	_, err := r.find(func(u *model.User) bool { return u.Email == email })
	return err == nil, nil
}

func (r memUsers) GetByID(_ context.Context, id string) (*model.User, error) {
	return r.find(func(u *model.User) bool { return u.ID == id })
}

func (r memUsers) GetByEmail(_ context.Context, email string) (*model.User, error) {
	return r.find(func(u *model.User) bool { return u.Email == email })
}

func (r memUsers) GetByGitHubID(_ context.Context, githubID int64) (*model.User, error) {
	return r.find(func(u *model.User) bool { return u.GitHubID != nil && *u.GitHubID == githubID })
}

func (r memUsers) UpdatePassword(_ context.Context, id, hash string) error {
	return r.update(id, func(u *model.User) { u.PasswordHash = hash })
}

func (r memUsers) UpdateFullName(_ context.Context, id, fullName string) error {
	return r.update(id, func(u *model.User) { u.FullName = fullName })
}

func (r memUsers) LinkGitHub(_ context.Context, id string, githubID int64) error {
	return r.update(id, func(u *model.User) { u.GitHubID = &githubID })
}

func (r memUsers) find(match func(*model.User) bool) (*model.User, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, u := range r.m.users {
		if match(u) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, apperror.NotFoundMessage("User not found.")
}

func (r memUsers) update(id string, fn func(*model.User)) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if r.m.failWith != nil {
		return r.m.failWith
	}
	u, ok := r.m.users[id]
	if !ok {
		return apperror.NotFoundMessage("User not found.")
	}
	fn(u)
	return nil
}

type memDetails struct {
	m    *memStore
	rows map[string]map[string]any
}

func (r memDetails) CreateEmpty(_ context.Context, userID string) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	r.rows[userID] = map[string]any{}
	return nil
}

func (r memDetails) Get(_ context.Context, userID string) (model.Profile, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	out := map[string]any{}
	for k, v := range r.rows[userID] {
		out[k] = v
	}
	return out, nil
}

func (r memDetails) Update(_ context.Context, userID string, values []model.FieldValue) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if r.m.failWith != nil {
		return r.m.failWith
	}
	row, ok := r.rows[userID]
	if !ok {
		row = map[string]any{}
		r.rows[userID] = row
	}
	for _, v := range values {
		row[v.Column] = v.Value
	}
	return nil
}

type memTraining struct{ memDetails }

func (r memTraining) Get(ctx context.Context, userID string) (model.Training, error) {
	p, err := r.memDetails.Get(ctx, userID)
	return model.Training(p), err
}

type memAchievements struct{ m *memStore }

func (r memAchievements) Create(_ context.Context, a *model.Achievement) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	a.ID = r.m.id()
	cp := *a
	r.m.achievements[a.ID] = &cp
	return nil
}

func (r memAchievements) ListRecent(_ context.Context, userID string, _ repository.ListOptions) ([]model.Achievement, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	out := []model.Achievement{}
	for _, a := range r.m.achievements {
		if a.UserID == userID {
			out = append(out, *a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (r memAchievements) Delete(_ context.Context, userID, id string) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	a, ok := r.m.achievements[id]
	if !ok || a.UserID != userID {
		return apperror.NotFoundMessage("Achievement not found.")
	}
	delete(r.m.achievements, id)
	return nil
}

type memStats struct{ m *memStore }

func (r memStats) Create(_ context.Context, s *model.PerformanceStat) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	s.ID = r.m.id()
	cp := *s
	r.m.stats = append(r.m.stats, &cp)
	return nil
}

func (r memStats) ListRecent(_ context.Context, userID string, _ repository.ListOptions) ([]model.PerformanceStat, error) {
	out := r.owned(userID)
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

// ListForSeries returns rows in insertion order; tests insert them already
// sorted by metric and date.
func (r memStats) ListForSeries(_ context.Context, userID string, _ repository.ListOptions) ([]model.PerformanceStat, error) {
	return r.owned(userID), nil
}

func (r memStats) Delete(_ context.Context, userID, id string) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for i, s := range r.m.stats {
		if s.ID == id && s.UserID == userID {
			r.m.stats = append(r.m.stats[:i], r.m.stats[i+1:]...)
			return nil
		}
	}
	return apperror.NotFoundMessage("Stat not found.")
}

func (r memStats) owned(userID string) []model.PerformanceStat {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	out := []model.PerformanceStat{}
	for _, s := range r.m.stats {
		if s.UserID == userID {
			out = append(out, *s)
		}
	}
	return out
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
