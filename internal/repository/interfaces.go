package repository

import (
	"context"
	"time"

	"github.com/lalith-99/tradielink/internal/models"
)

// Conventions for every repository below:
//
//   - context.Context first; it carries the request deadline down to pgx.
//   - Lookups of a single row return nil, nil when the row does not exist.
//     Callers decide whether that is a 404.
//   - List methods return an empty slice, never nil, so JSON renders [].
//   - Timestamps are passed in by the caller. The messaging service owns
//     the clock so closure and message times are comparable.

// UserRepository handles accounts.
type UserRepository interface {
	// Create inserts a user. A duplicate email surfaces as apperr.ErrConflict.
	Create(ctx context.Context, u models.NewUser) (*models.User, error)

	GetByID(ctx context.Context, userID int64) (*models.User, error)

	// GetByEmail expects an already lower-cased email.
	GetByEmail(ctx context.Context, email string) (*models.User, error)

	// Update rewrites the profile fields of an existing user from p. Role
	// and email never change. The password hash is replaced only when
	// p.PasswordHash is non-empty. A missing user returns nil, nil.
	Update(ctx context.Context, userID int64, p models.NewUser) (*models.User, error)

	// ListByRole returns every user with the role, ordered by name.
	ListByRole(ctx context.Context, role models.Role) ([]models.User, error)
}

// ThreadRepository handles the builder/tradie conversation rows.
type ThreadRepository interface {
	// Open returns the thread for the pair, creating it if needed. When
	// firstBody is non-empty it is stored as a message from senderID in the
	// same transaction. created reports whether the thread row is new.
	Open(ctx context.Context, builderID, tradieID, senderID int64, firstBody string, at time.Time) (thread *models.Thread, created bool, err error)

	GetByID(ctx context.Context, threadID int64) (*models.Thread, error)

	// ListForUser returns every thread the user is in, each with the peer
	// and the latest message. Unordered.
	ListForUser(ctx context.Context, userID int64) ([]models.ThreadRow, error)
}

// MessageRepository handles chat message persistence.
type MessageRepository interface {
	Create(ctx context.Context, threadID, senderID int64, body string, at time.Time) (*models.Message, error)

	// ListByThread returns the full history oldest first, with sender
	// role and name filled in.
	ListByThread(ctx context.Context, threadID int64) ([]models.Message, error)

	// UnreadCounts maps thread id to the number of messages the peer sent
	// after the user's read cursor for that peer. Threads with nothing
	// unread may be absent.
	UnreadCounts(ctx context.Context, userID int64) (map[int64]int, error)
}

// ReadCursorRepository records how far a user has read a peer's messages.
type ReadCursorRepository interface {
	MarkRead(ctx context.Context, userID, peerID int64, at time.Time) error
}

// ClosureRepository records per-user archive timestamps.
type ClosureRepository interface {
	// CloseBoth writes (userID→peerID, at) and (peerID→userID, at)
	// atomically, updating existing rows.
	CloseBoth(ctx context.Context, userID, peerID int64, at time.Time) error

	// ListForUser maps peer id to the user's closure time for that peer.
	ListForUser(ctx context.Context, userID int64) (map[int64]time.Time, error)
}

// TypingRepository stores directional typing intents. Implementations
// store what they are told; freshness is judged by the reader.
type TypingRepository interface {
	SetTyping(ctx context.Context, fromUserID, toUserID int64, isTyping bool, at time.Time) error

	// GetTyping returns nil, nil when no intent was ever recorded.
	GetTyping(ctx context.Context, fromUserID, toUserID int64) (*models.TypingIntent, error)
}

// JobRepository handles builder jobs and tradie enquiries.
type JobRepository interface {
	Create(ctx context.Context, job models.Job) (*models.Job, error)

	GetByID(ctx context.Context, jobID int64) (*models.Job, error)

	// ListByBuilder returns the builder's jobs, newest first.
	ListByBuilder(ctx context.Context, builderID int64) ([]models.Job, error)

	// ListEnquiries returns the enquiries on the given jobs, oldest first.
	ListEnquiries(ctx context.Context, jobIDs []int64) ([]models.JobEnquiry, error)

	// ListPosted returns posted jobs annotated for the given tradie.
	ListPosted(ctx context.Context, tradieID int64) ([]models.BoardJob, error)

	// Enquire is idempotent: a repeat enquiry is a no-op.
	Enquire(ctx context.Context, jobID, tradieID int64, at time.Time) error

	// CountPendingEnquiries counts enquiries on the builder's posted jobs.
	CountPendingEnquiries(ctx context.Context, builderID int64) (int, error)
}
