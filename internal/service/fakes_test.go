package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"callcenter-ops/internal/model"
)

// fakeUserStore is an in-memory UserStore mirroring the repository's row
// semantics, including the generation bump on UpdatePassword and the
// guarded single-winner ConsumeResetToken.
type fakeUserStore struct {
	mu     sync.Mutex
	users  map[int64]model.User
	nextID int64

	consumeErr error
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{users: map[int64]model.User{}, nextID: 1}
}

func (f *fakeUserStore) add(u model.User) model.User {
	f.mu.Lock()
	defer f.mu.Unlock()

	if u.ID == 0 {
		u.ID = f.nextID
		f.nextID++
	}
	f.users[u.ID] = u
	return u
}

func (f *fakeUserStore) get(id int64) model.User {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.users[id]
}

func (f *fakeUserStore) FindByID(_ context.Context, id int64) (model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	u, ok := f.users[id]
	if !ok {
		return model.User{}, model.ErrUserNotFound
	}
	return u, nil
}

func (f *fakeUserStore) FindByEmail(_ context.Context, email string) (model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, u := range f.users {
		if strings.EqualFold(u.Email, strings.TrimSpace(email)) {
			return u, nil
		}
	}
	return model.User{}, model.ErrUserNotFound
}

func (f *fakeUserStore) Create(_ context.Context, u model.User) (model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, existing := range f.users {
		if strings.EqualFold(existing.Email, u.Email) {
			return model.User{}, model.ErrUserAlreadyExists
		}
	}

	u.ID = f.nextID
	f.nextID++
	f.users[u.ID] = u
	return u, nil
}

func (f *fakeUserStore) UpdatePassword(_ context.Context, userID int64, passwordHash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	u, ok := f.users[userID]
	if !ok {
		return model.ErrUserNotFound
	}

	u.PasswordHash = passwordHash
	u.IsPasswordChanged = true
	u.TokenGeneration++
	f.users[userID] = u
	return nil
}

func (f *fakeUserStore) SetResetToken(_ context.Context, userID int64, tokenHash string, expiry time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	u, ok := f.users[userID]
	if !ok {
		return model.ErrUserNotFound
	}

	u.ResetTokenHash = &tokenHash
	u.ResetTokenExpiry = &expiry
	u.ResetTokenAttempts = 0
	f.users[userID] = u
	return nil
}

func (f *fakeUserStore) ClearResetToken(_ context.Context, userID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	u, ok := f.users[userID]
	if !ok {
		return model.ErrUserNotFound
	}

	u.ResetTokenHash = nil
	u.ResetTokenExpiry = nil
	u.ResetTokenAttempts = 0
	f.users[userID] = u
	return nil
}

func (f *fakeUserStore) IncrementResetAttempts(_ context.Context, userID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	u, ok := f.users[userID]
	if !ok {
		return model.ErrUserNotFound
	}

	u.ResetTokenAttempts++
	f.users[userID] = u
	return nil
}

func (f *fakeUserStore) ConsumeResetToken(_ context.Context, userID int64, passwordHash string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.consumeErr != nil {
		return false, f.consumeErr
	}

	u, ok := f.users[userID]
	if !ok || u.ResetTokenHash == nil {
		return false, nil
	}

	u.PasswordHash = passwordHash
	u.IsPasswordChanged = true
	u.TokenGeneration++
	u.ResetTokenHash = nil
	u.ResetTokenExpiry = nil
	u.ResetTokenAttempts = 0
	f.users[userID] = u
	return true, nil
}

func (f *fakeUserStore) ListByRole(_ context.Context, role model.Role) ([]model.PublicUser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []model.PublicUser
	for _, u := range f.users {
		if u.Role == role {
			out = append(out, u.Public())
		}
	}
	return out, nil
}

func (f *fakeUserStore) Delete(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.users[id]; !ok {
		return model.ErrUserNotFound
	}
	delete(f.users, id)
	return nil
}

type sentMail struct {
	to     string
	name   string
	link   string
	secret string
}

// fakeSender records outgoing mail instead of talking SMTP.
type fakeSender struct {
	mu       sync.Mutex
	resets   []sentMail
	welcomes []sentMail
}

func (f *fakeSender) SendPasswordReset(_ context.Context, to string, name string, link string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resets = append(f.resets, sentMail{to: to, name: name, link: link})
	return nil
}

func (f *fakeSender) SendWelcome(_ context.Context, to string, name string, tempPassword string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.welcomes = append(f.welcomes, sentMail{to: to, name: name, secret: tempPassword})
	return nil
}

func (f *fakeSender) resetCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.resets)
}

func (f *fakeSender) lastReset() sentMail {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.resets[len(f.resets)-1]
}
