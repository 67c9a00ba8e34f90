package web

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-dashboard/internal/apiclient"
	"github.com/spec-kit/ticket-dashboard/internal/domain"
	"github.com/spec-kit/ticket-dashboard/internal/loader"
	"github.com/spec-kit/ticket-dashboard/internal/store"
	"github.com/spec-kit/ticket-dashboard/internal/view"
)

const sessionCookie = "dashboard_session"

// Session is the server side state of one browser session.
type Session struct {
	ID        string
	Store     *store.Store
	Tokens    *apiclient.MemoryTokens
	Client    *apiclient.Client
	Tickets   *loader.TicketLoader
	Detail    *loader.DetailLoader
	Dashboard *view.Dashboard

	sender view.ReplySender
	logger *zap.Logger
	now    func() time.Time

	mu       sync.Mutex
	replies  map[int64]*view.ReplyPanel
	modals   map[int64]*view.AnalysisModal
	lastSeen time.Time
}

// Reply returns the reply composer of ticket id, creating it on first use.
func (s *Session) Reply(id int64) *view.ReplyPanel {
	s.mu.Lock()
	defer s.mu.Unlock()
	panel, ok := s.replies[id]
	if !ok {
		panel = view.NewReplyPanel(id, s.sender, s.now)
		s.replies[id] = panel
	}
	return panel
}

// Modal returns the analysis modal of ticket id, creating it on first use.
func (s *Session) Modal(id int64) *view.AnalysisModal {
	s.mu.Lock()
	defer s.mu.Unlock()
	modal, ok := s.modals[id]
	if !ok {
		modal = view.NewAnalysisModal(s.Client, s.logger)
		s.modals[id] = modal
	}
	return modal
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

func (s *Session) close() {
	s.Tickets.Close()
	s.Detail.Close()
	s.Dashboard.Close()
}

// SessionDeps are shared by every session.
type SessionDeps struct {
	Client  *apiclient.Client
	Groups  *domain.GroupCatalog
	PerPage int
	Sender  view.ReplySender
	Logger  *zap.Logger
	Now     func() time.Time
}

// SessionManager hands out sessions keyed by cookie and reaps idle ones.
type SessionManager struct {
	deps   SessionDeps
	ttl    time.Duration
	secure bool
	logger *zap.Logger

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewSessionManager(deps SessionDeps, ttl time.Duration, secureCookies bool) *SessionManager {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Sender == nil {
		deps.Sender = view.NewSimulatedSender(deps.Logger)
	}
	return &SessionManager{
		deps:     deps,
		ttl:      ttl,
		secure:   secureCookies,
		logger:   deps.Logger.Named("sessions"),
		sessions: make(map[string]*Session),
	}
}

// Get returns the session named by the request cookie, starting a new one
// when the cookie is missing or unknown.
func (m *SessionManager) Get(c *fiber.Ctx) *Session {
	now := m.deps.Now()
	id := c.Cookies(sessionCookie)

	m.mu.Lock()
	session, ok := m.sessions[id]
	if !ok {
		id = uuid.NewString()
		session = m.newSession(id)
		m.sessions[id] = session
		m.logger.Debug("session started", zap.String("session_id", id))
	}
	m.mu.Unlock()

	session.touch(now)
	c.Cookie(&fiber.Cookie{
		Name:     sessionCookie,
		Value:    id,
		Path:     "/",
		HTTPOnly: true,
		Secure:   m.secure,
		SameSite: fiber.CookieSameSiteLaxMode,
		Expires:  now.Add(m.ttl),
	})
	return session
}

func (m *SessionManager) newSession(id string) *Session {
	st := store.New()
	tokens := apiclient.NewMemoryTokens("")
	client := m.deps.Client.WithTokens(tokens)
	logger := m.deps.Logger.With(zap.String("session_id", id))
	tickets := loader.NewTicketLoader(client, st, logger)
	return &Session{
		ID:        id,
		Store:     st,
		Tokens:    tokens,
		Client:    client,
		Tickets:   tickets,
		Detail:    loader.NewDetailLoader(client, st, logger),
		Dashboard: view.NewDashboard(tickets, st, m.deps.Groups, m.deps.PerPage, m.deps.Now),
		sender:    m.deps.Sender,
		logger:    logger,
		now:       m.deps.Now,
		replies:   make(map[int64]*view.ReplyPanel),
		modals:    make(map[int64]*view.AnalysisModal),
	}
}

// Len reports the number of live sessions.
func (m *SessionManager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Reap closes and forgets sessions idle for longer than the TTL.
func (m *SessionManager) Reap() int {
	cutoff := m.deps.Now().Add(-m.ttl)

	m.mu.Lock()
	var expired []*Session
	for id, s := range m.sessions {
		if s.idleSince().Before(cutoff) {
			expired = append(expired, s)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, s := range expired {
		s.close()
	}
	if len(expired) > 0 {
		m.logger.Info("sessions reaped", zap.Int("count", len(expired)))
	}
	return len(expired)
}

// Run reaps on every tick until ctx is done, then closes all sessions.
func (m *SessionManager) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			m.Close()
			return
		case <-ticker.C:
			m.Reap()
		}
	}
}

// Close ends every session.
func (m *SessionManager) Close() {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()
	for _, s := range sessions {
		s.close()
	}
}

// Login stores a pasted bearer token in the session.
func (s *Session) Login(token string) {
	s.Tokens.SetToken(strings.Clone(strings.TrimSpace(token)))
}
