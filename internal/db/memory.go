package db

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/gym-crm/auth-backend/internal/model"
)

// MemoryStore keeps principals and tokens in process memory. It backs
// STORE_BACKEND=memory and the package tests; state is lost on restart.
type MemoryStore struct {
	mu      sync.RWMutex
	nextID  int64
	users   map[string]*model.Principal
	tokens  map[string]*model.Token
	byOwner map[int64][]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:   make(map[string]*model.Principal),
		tokens:  make(map[string]*model.Token),
		byOwner: make(map[int64][]string),
	}
}

func (m *MemoryStore) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (m *MemoryStore) CreateUser(ctx context.Context, username, passwordHash string, role model.Role) (*model.Principal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.users[username]; ok {
		return nil, fmt.Errorf("user %q already exists", username)
	}
	m.nextID++
	p := &model.Principal{
		ID:           m.nextID,
		Username:     username,
		PasswordHash: passwordHash,
		Active:       true,
		Role:         role,
		Permissions:  model.CapabilitiesFor(role),
	}
	m.users[username] = p
	return clonePrincipal(p), nil
}

// SetActive toggles a principal's active flag.
func (m *MemoryStore) SetActive(username string, active bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.users[username]; ok {
		p.Active = active
	}
}

func (m *MemoryStore) FindByUsername(ctx context.Context, username string) (*model.Principal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.users[username]
	if !ok {
		return nil, ErrNotFound
	}
	return clonePrincipal(p), nil
}

func (m *MemoryStore) SaveToken(ctx context.Context, token *model.Token) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.saveLocked(token)
}

func (m *MemoryStore) FindAllValidTokens(ctx context.Context, principalID int64) ([]model.Token, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []model.Token
	for _, tokenStr := range m.byOwner[principalID] {
		t := m.tokens[tokenStr]
		if t.Active() {
			out = append(out, *t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *MemoryStore) FindTokenByString(ctx context.Context, tokenStr string) (*model.Token, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	t, ok := m.tokens[tokenStr]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *t
	return &cp, nil
}

// SaveAllTokens applies the whole batch under one lock.
func (m *MemoryStore) SaveAllTokens(ctx context.Context, tokens []model.Token) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range tokens {
		if err := m.saveLocked(&tokens[i]); err != nil {
			return err
		}
	}
	return nil
}

func (m *MemoryStore) saveLocked(token *model.Token) error {
	existing, ok := m.tokens[token.Token]
	if !ok {
		cp := *token
		m.tokens[token.Token] = &cp
		m.byOwner[token.PrincipalID] = append(m.byOwner[token.PrincipalID], token.Token)
		return nil
	}
	if existing.ID != token.ID {
		return fmt.Errorf("token string already stored under id %s", existing.ID)
	}
	// Flags are terminal: a save never clears them.
	existing.Revoked = existing.Revoked || token.Revoked
	existing.Expired = existing.Expired || token.Expired
	return nil
}

func clonePrincipal(p *model.Principal) *model.Principal {
	cp := *p
	cp.Permissions = append([]string(nil), p.Permissions...)
	return &cp
}
