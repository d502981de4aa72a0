package auth

import (
	"context"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/vantage/server/internal/model"
	"github.com/vantage/server/internal/repo"
)

// In-memory repository fakes for service-level tests.

type fakeOtpRepo struct {
	mu         sync.Mutex
	challenges map[uuid.UUID]*model.OtpChallenge
}

func newFakeOtpRepo() *fakeOtpRepo {
	return &fakeOtpRepo{challenges: make(map[uuid.UUID]*model.OtpChallenge)}
}

func (r *fakeOtpRepo) CreateOrReplace(_ context.Context, userID uuid.UUID, purpose model.OtpPurpose, codeHash, challengeSalt string, expiresAt time.Time) (uuid.UUID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	for _, c := range r.challenges {
		if c.UserID == userID && c.Purpose == purpose && c.ConsumedAt == nil {
			t := now
			c.ConsumedAt = &t
		}
	}
	id := uuid.New()
	r.challenges[id] = &model.OtpChallenge{
		ID:            id,
		UserID:        userID,
		Purpose:       purpose,
		CodeHash:      codeHash,
		ChallengeSalt: challengeSalt,
		ExpiresAt:     expiresAt,
		CreatedAt:     now,
	}
	return id, nil
}

// GetActive filters consumed rows only; expiry is left to the service clock so
// tests can control it.
func (r *fakeOtpRepo) GetActive(_ context.Context, userID uuid.UUID, purpose model.OtpPurpose) (model.OtpChallenge, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.challenges {
		if c.UserID == userID && c.Purpose == purpose && c.ConsumedAt == nil {
			return *c, nil
		}
	}
	return model.OtpChallenge{}, repo.ErrNotFound
}

func (r *fakeOtpRepo) Consume(_ context.Context, challengeID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.challenges[challengeID]
	if !ok || c.ConsumedAt != nil {
		return repo.ErrNotFound
	}
	t := time.Now()
	c.ConsumedAt = &t
	return nil
}

func (r *fakeOtpRepo) ConsumeAllForUser(_ context.Context, userID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.challenges {
		if c.UserID == userID && c.ConsumedAt == nil {
			t := time.Now()
			c.ConsumedAt = &t
		}
	}
	return nil
}

type fakeUserRepo struct {
	mu    sync.Mutex
	users map[uuid.UUID]*model.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[uuid.UUID]*model.User)}
}

func (r *fakeUserRepo) taken(email string, username *string, except uuid.UUID) bool {
	for id, u := range r.users {
		if id == except {
			continue
		}
		if u.Email == email {
			return true
		}
		if username != nil && u.Username != nil && *u.Username == *username {
			return true
		}
	}
	return false
}

func (r *fakeUserRepo) Create(_ context.Context, email, passwordHash string, profile repo.ProfileUpdate) (model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.taken(email, profile.Username, uuid.Nil) {
		return model.User{}, repo.ErrDuplicate
	}
	now := time.Now()
	user := &model.User{
		ID:           uuid.New(),
		Email:        email,
		Username:     profile.Username,
		Name:         profile.Name,
		Phone:        profile.Phone,
		PasswordHash: passwordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	r.users[user.ID] = user
	return *user, nil
}

func (r *fakeUserRepo) GetByID(_ context.Context, id uuid.UUID) (model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.users[id]; ok {
		return *u, nil
	}
	return model.User{}, repo.ErrNotFound
}

func (r *fakeUserRepo) GetByEmail(_ context.Context, email string) (model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == email {
			return *u, nil
		}
	}
	return model.User{}, repo.ErrNotFound
}

// GetByIdentifier folds case on the email match (stored emails are lower-cased)
// and matches usernames exactly, mirroring the SQL repository.
func (r *fakeUserRepo) GetByIdentifier(_ context.Context, identifier string) (model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == strings.ToLower(identifier) || (u.Username != nil && *u.Username == identifier) {
			return *u, nil
		}
	}
	return model.User{}, repo.ErrNotFound
}

func (r *fakeUserRepo) MarkVerified(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return repo.ErrNotFound
	}
	u.IsVerified = true
	u.UpdatedAt = time.Now()
	return nil
}

func (r *fakeUserRepo) UpdatePassword(_ context.Context, id uuid.UUID, passwordHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return repo.ErrNotFound
	}
	u.PasswordHash = passwordHash
	u.UpdatedAt = time.Now()
	return nil
}

func (r *fakeUserRepo) UpdateEmail(_ context.Context, id uuid.UUID, email string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return repo.ErrNotFound
	}
	if r.taken(email, nil, id) {
		return repo.ErrDuplicate
	}
	u.Email = email
	u.UpdatedAt = time.Now()
	return nil
}

func (r *fakeUserRepo) UpdateProfile(_ context.Context, id uuid.UUID, profile repo.ProfileUpdate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return repo.ErrNotFound
	}
	if profile.Username != nil && r.taken("", profile.Username, id) {
		return repo.ErrDuplicate
	}
	if profile.Name != nil {
		u.Name = profile.Name
	}
	if profile.Phone != nil {
		u.Phone = profile.Phone
	}
	if profile.Username != nil {
		u.Username = profile.Username
	}
	u.UpdatedAt = time.Now()
	return nil
}

func (r *fakeUserRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[id]; !ok {
		return repo.ErrNotFound
	}
	delete(r.users, id)
	return nil
}

type fakeSessionRepo struct {
	mu       sync.Mutex
	sessions map[string]*model.Session
}

func newFakeSessionRepo() *fakeSessionRepo {
	return &fakeSessionRepo{sessions: make(map[string]*model.Session)}
}

func (r *fakeSessionRepo) Create(_ context.Context, userID uuid.UUID, tokenHash string) (uuid.UUID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := &model.Session{
		ID:        uuid.New(),
		UserID:    userID,
		TokenHash: tokenHash,
		CreatedAt: time.Now(),
	}
	r.sessions[tokenHash] = s
	return s.ID, nil
}

func (r *fakeSessionRepo) ResolveByTokenHash(_ context.Context, tokenHash string) (model.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[tokenHash]
	if !ok || s.RevokedAt != nil {
		return model.Session{}, repo.ErrNotFound
	}
	return *s, nil
}

func (r *fakeSessionRepo) Revoke(_ context.Context, tokenHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[tokenHash]; ok && s.RevokedAt == nil {
		t := time.Now()
		s.RevokedAt = &t
	}
	return nil
}

func (r *fakeSessionRepo) RevokeAllForUser(_ context.Context, userID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.sessions {
		if s.UserID == userID && s.RevokedAt == nil {
			t := time.Now()
			s.RevokedAt = &t
		}
	}
	return nil
}

func (r *fakeSessionRepo) activeCount(userID uuid.UUID) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, s := range r.sessions {
		if s.UserID == userID && s.RevokedAt == nil {
			n++
		}
	}
	return n
}

type sentMail struct {
	to      string
	subject string
	body    string
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []sentMail
}

func (m *fakeMailer) Enqueue(to, subject, body string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMail{to: to, subject: subject, body: body})
}

func (m *fakeMailer) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

var codeRe = regexp.MustCompile(`\b\d{6}\b`)

// lastCode extracts the 6-digit code from the most recent message.
func (m *fakeMailer) lastCode() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		return ""
	}
	return codeRe.FindString(m.sent[len(m.sent)-1].body)
}
