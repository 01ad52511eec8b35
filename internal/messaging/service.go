// Package messaging implements builder/tradie conversations: threads,
// messages, read cursors, per-user closing and typing presence.
//
// Closing is a timestamp, not a flag. A thread is in a user's history only
// while nothing newer than that user's closure has happened on it, so a new
// message reopens it for both sides without any explicit reopen write.
package messaging

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/lalith-99/tradielink/internal/apperr"
	"github.com/lalith-99/tradielink/internal/models"
	"github.com/lalith-99/tradielink/internal/repository"
	"go.uber.org/zap"
)

// DefaultTypingTTL is how long a typing intent stays believable after its
// last write. Polling clients have no reliable "stopped typing" signal.
const DefaultTypingTTL = 10 * time.Second

// Caller is the authenticated user, as resolved by the auth middleware.
type Caller struct {
	UserID int64
	Role   models.Role
}

// Stores groups the repositories the service reads and writes.
type Stores struct {
	Users    repository.UserRepository
	Threads  repository.ThreadRepository
	Messages repository.MessageRepository
	Reads    repository.ReadCursorRepository
	Closures repository.ClosureRepository
	Typing   repository.TypingRepository
}

type Service struct {
	users     repository.UserRepository
	threads   repository.ThreadRepository
	messages  repository.MessageRepository
	reads     repository.ReadCursorRepository
	closures  repository.ClosureRepository
	typing    repository.TypingRepository
	typingTTL time.Duration
	now       func() time.Time
	logger    *zap.Logger
}

type Option func(*Service)

// WithClock replaces time.Now. Every timestamp the service writes comes
// from this clock.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithTypingTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.typingTTL = ttl
		}
	}
}

func NewService(stores Stores, logger *zap.Logger, opts ...Option) *Service {
	s := &Service{
		users:     stores.Users,
		threads:   stores.Threads,
		messages:  stores.Messages,
		reads:     stores.Reads,
		closures:  stores.Closures,
		typing:    stores.Typing,
		typingTTL: DefaultTypingTTL,
		now:       time.Now,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ThreadDetail is a thread with both participants and its full history.
type ThreadDetail struct {
	Thread      models.Thread    `json:"thread"`
	Builder     Participant      `json:"builder"`
	Tradie      Participant      `json:"tradie"`
	Participant Participant      `json:"participant"`
	Messages    []models.Message `json:"messages"`
}

// TypingStatus is the typing state of both directions of a thread.
type TypingStatus struct {
	MeTyping     bool `json:"meTyping"`
	PeerTyping   bool `json:"peerTyping"`
	EitherTyping bool `json:"eitherTyping"`
}

// StartThread returns the caller's thread with counterpartID, creating it
// on first contact. A non-blank firstBody is stored as the opening message
// in the same transaction. created reports whether the thread is new.
func (s *Service) StartThread(ctx context.Context, caller Caller, counterpartID int64, firstBody string) (*models.Thread, bool, error) {
	if !caller.Role.Valid() {
		return nil, false, apperr.Forbidden("Unknown account role.")
	}
	want := caller.Role.Opposite()
	if counterpartID <= 0 {
		return nil, false, apperr.InvalidInput("A valid %sId is required.", want)
	}

	counterpart, err := s.users.GetByID(ctx, counterpartID)
	if err != nil {
		return nil, false, fmt.Errorf("load counterpart: %w", err)
	}
	if counterpart == nil || counterpart.Role != want {
		return nil, false, apperr.NotFound("%s not found.", capitalize(string(want)))
	}

	builderID, tradieID := caller.UserID, counterpart.ID
	if caller.Role == models.RoleTradie {
		builderID, tradieID = counterpart.ID, caller.UserID
	}

	thread, created, err := s.threads.Open(ctx, builderID, tradieID, caller.UserID, strings.TrimSpace(firstBody), s.now())
	if err != nil {
		return nil, false, fmt.Errorf("open thread: %w", err)
	}
	if created {
		s.logger.Info("thread created",
			zap.Int64("thread_id", thread.ID),
			zap.Int64("builder_id", builderID),
			zap.Int64("tradie_id", tradieID),
		)
	}
	return thread, created, nil
}

// ListThreads resolves the caller's threads for one view.
func (s *Service) ListThreads(ctx context.Context, caller Caller, view View) ([]ThreadSummary, error) {
	rows, err := s.threads.ListForUser(ctx, caller.UserID)
	if err != nil {
		return nil, fmt.Errorf("list threads: %w", err)
	}
	if len(rows) == 0 {
		return []ThreadSummary{}, nil
	}

	closures, err := s.closures.ListForUser(ctx, caller.UserID)
	if err != nil {
		return nil, fmt.Errorf("list closures: %w", err)
	}

	var unread map[int64]int
	if view == ViewActive {
		unread, err = s.messages.UnreadCounts(ctx, caller.UserID)
		if err != nil {
			return nil, fmt.Errorf("count unread: %w", err)
		}
	}

	return Resolve(rows, closures, unread, view), nil
}

// CountThreads returns how many of the caller's threads are active and how
// many exist in total.
func (s *Service) CountThreads(ctx context.Context, caller Caller) (active, total int, err error) {
	rows, err := s.threads.ListForUser(ctx, caller.UserID)
	if err != nil {
		return 0, 0, fmt.Errorf("list threads: %w", err)
	}
	closures, err := s.closures.ListForUser(ctx, caller.UserID)
	if err != nil {
		return 0, 0, fmt.Errorf("list closures: %w", err)
	}
	for i := range rows {
		closedAt, ok := closures[rows[i].Peer.ID]
		if !Closed(EffectiveAt(&rows[i]), closedAt, ok) {
			active++
		}
	}
	return active, len(rows), nil
}

// GetThread loads a thread and its messages. It does not mark anything
// read; clients that want that call MarkRead as well.
func (s *Service) GetThread(ctx context.Context, caller Caller, threadID int64) (*ThreadDetail, error) {
	thread, peerID, err := s.participantThread(ctx, caller, threadID)
	if err != nil {
		return nil, err
	}

	builder, err := s.requireUser(ctx, thread.BuilderID)
	if err != nil {
		return nil, err
	}
	tradie, err := s.requireUser(ctx, thread.TradieID)
	if err != nil {
		return nil, err
	}

	messages, err := s.messages.ListByThread(ctx, thread.ID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}

	detail := &ThreadDetail{
		Thread:   *thread,
		Builder:  participantOf(builder),
		Tradie:   participantOf(tradie),
		Messages: messages,
	}
	if peerID == builder.ID {
		detail.Participant = detail.Builder
	} else {
		detail.Participant = detail.Tradie
	}
	return detail, nil
}

// SendMessage appends a message from the caller and clears the caller's
// typing intent toward the peer.
func (s *Service) SendMessage(ctx context.Context, caller Caller, threadID int64, body string) (*models.Message, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, apperr.InvalidInput("Message body is required.")
	}

	thread, peerID, err := s.participantThread(ctx, caller, threadID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	msg, err := s.messages.Create(ctx, thread.ID, caller.UserID, body, now)
	if err != nil {
		return nil, fmt.Errorf("create message: %w", err)
	}

	// The message is already stored; a failed typing reset only leaves a
	// flag that expires with the TTL, so it must not fail the send.
	if err := s.typing.SetTyping(ctx, caller.UserID, peerID, false, now); err != nil {
		s.logger.Warn("failed to clear typing after send",
			zap.Int64("thread_id", thread.ID),
			zap.Int64("user_id", caller.UserID),
			zap.Error(err),
		)
	}
	return msg, nil
}

// MarkRead moves the caller's read cursor for the peer to now.
func (s *Service) MarkRead(ctx context.Context, caller Caller, threadID int64) error {
	_, peerID, err := s.participantThread(ctx, caller, threadID)
	if err != nil {
		return err
	}
	if err := s.reads.MarkRead(ctx, caller.UserID, peerID, s.now()); err != nil {
		return fmt.Errorf("mark read: %w", err)
	}
	return nil
}

// CloseThread archives the thread for both participants as of now.
func (s *Service) CloseThread(ctx context.Context, caller Caller, threadID int64) error {
	thread, peerID, err := s.participantThread(ctx, caller, threadID)
	if err != nil {
		return err
	}
	if err := s.closures.CloseBoth(ctx, caller.UserID, peerID, s.now()); err != nil {
		return fmt.Errorf("close thread: %w", err)
	}
	s.logger.Info("thread closed",
		zap.Int64("thread_id", thread.ID),
		zap.Int64("closed_by", caller.UserID),
	)
	return nil
}

// SetTyping records whether the caller is composing toward the peer.
func (s *Service) SetTyping(ctx context.Context, caller Caller, threadID int64, isTyping bool) error {
	_, peerID, err := s.participantThread(ctx, caller, threadID)
	if err != nil {
		return err
	}
	if err := s.typing.SetTyping(ctx, caller.UserID, peerID, isTyping, s.now()); err != nil {
		return fmt.Errorf("set typing: %w", err)
	}
	return nil
}

// GetTyping reads both directions of the thread. An intent older than the
// TTL counts as not typing whatever its stored flag says.
func (s *Service) GetTyping(ctx context.Context, caller Caller, threadID int64) (*TypingStatus, error) {
	_, peerID, err := s.participantThread(ctx, caller, threadID)
	if err != nil {
		return nil, err
	}

	mine, err := s.typing.GetTyping(ctx, caller.UserID, peerID)
	if err != nil {
		return nil, fmt.Errorf("get own typing: %w", err)
	}
	theirs, err := s.typing.GetTyping(ctx, peerID, caller.UserID)
	if err != nil {
		return nil, fmt.Errorf("get peer typing: %w", err)
	}

	now := s.now()
	status := &TypingStatus{
		MeTyping:   s.fresh(mine, now),
		PeerTyping: s.fresh(theirs, now),
	}
	status.EitherTyping = status.MeTyping || status.PeerTyping
	return status, nil
}

func (s *Service) fresh(ti *models.TypingIntent, now time.Time) bool {
	if ti == nil || !ti.IsTyping {
		return false
	}
	return now.Sub(ti.UpdatedAt) <= s.typingTTL
}

// participantThread loads the thread and checks the caller is in it.
func (s *Service) participantThread(ctx context.Context, caller Caller, threadID int64) (*models.Thread, int64, error) {
	if threadID <= 0 {
		return nil, 0, apperr.InvalidInput("A valid threadId is required.")
	}

	thread, err := s.threads.GetByID(ctx, threadID)
	if err != nil {
		return nil, 0, fmt.Errorf("load thread: %w", err)
	}
	if thread == nil {
		return nil, 0, apperr.NotFound("Thread not found.")
	}

	peerID, ok := thread.Peer(caller.UserID)
	if !ok {
		return nil, 0, apperr.Forbidden("You are not part of this thread.")
	}
	return thread, peerID, nil
}

func (s *Service) requireUser(ctx context.Context, userID int64) (*models.User, error) {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load user %d: %w", userID, err)
	}
	if u == nil {
		return nil, apperr.NotFound("User not found.")
	}
	return u, nil
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
