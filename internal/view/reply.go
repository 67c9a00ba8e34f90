package view

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// MsgEmptyReply is shown when the reply body is blank.
const MsgEmptyReply = "Reply cannot be empty"

// SuccessBannerDuration is how long the sent banner stays visible.
const SuccessBannerDuration = 3 * time.Second

// ReplySender delivers a reply to a ticket.
type ReplySender interface {
	SendReply(ctx context.Context, ticketID int64, body string, private bool) error
}

// SimulatedSender logs the reply and reports success. The ticket API has no
// reply endpoint yet.
type SimulatedSender struct {
	logger *zap.Logger
}

func NewSimulatedSender(logger *zap.Logger) *SimulatedSender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SimulatedSender{logger: logger.Named("reply")}
}

func (s *SimulatedSender) SendReply(_ context.Context, ticketID int64, body string, private bool) error {
	s.logger.Info("reply sent (simulated)",
		zap.Int64("ticket_id", ticketID),
		zap.Int("body_length", len(body)),
		zap.Bool("private", private),
	)
	return nil
}

// ReplyState is the reply composer as rendered.
type ReplyState struct {
	Body    string
	Private bool
	Error   string
	Success bool
}

// ReplyPanel is the reply composer of one ticket.
type ReplyPanel struct {
	ticketID int64
	sender   ReplySender
	now      func() time.Time

	mu           sync.Mutex
	body         string
	private      bool
	err          string
	successUntil time.Time
}

func NewReplyPanel(ticketID int64, sender ReplySender, now func() time.Time) *ReplyPanel {
	if now == nil {
		now = time.Now
	}
	return &ReplyPanel{ticketID: ticketID, sender: sender, now: now}
}

// Submit sends the reply. A blank body never reaches the sender.
func (p *ReplyPanel) Submit(ctx context.Context, body string, private bool) error {
	p.mu.Lock()
	p.body = body
	p.private = private
	p.successUntil = time.Time{}
	if strings.TrimSpace(body) == "" {
		p.err = MsgEmptyReply
		p.mu.Unlock()
		return nil
	}
	p.err = ""
	p.mu.Unlock()

	if err := p.sender.SendReply(ctx, p.ticketID, body, private); err != nil {
		p.mu.Lock()
		p.err = err.Error()
		p.mu.Unlock()
		return err
	}

	p.mu.Lock()
	p.body = ""
	p.private = false
	p.successUntil = p.now().Add(SuccessBannerDuration)
	p.mu.Unlock()
	return nil
}

// State returns the composer state; Success is true while the banner shows.
func (p *ReplyPanel) State() ReplyState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return ReplyState{
		Body:    p.body,
		Private: p.private,
		Error:   p.err,
		Success: p.now().Before(p.successUntil),
	}
}
