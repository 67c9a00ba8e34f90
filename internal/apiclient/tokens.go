package apiclient

import "sync"

// TokenStore holds the bearer token attached to outbound requests.
type TokenStore interface {
	Token() string
	SetToken(token string)
	Clear()
}

// MemoryTokens is a TokenStore kept in process memory, one per dashboard session.
type MemoryTokens struct {
	mu    sync.RWMutex
	token string
}

// NewMemoryTokens returns a store seeded with token, which may be empty.
func NewMemoryTokens(token string) *MemoryTokens {
	return &MemoryTokens{token: token}
}

func (m *MemoryTokens) Token() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.token
}

func (m *MemoryTokens) SetToken(token string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = token
}

func (m *MemoryTokens) Clear() {
	m.SetToken("")
}
