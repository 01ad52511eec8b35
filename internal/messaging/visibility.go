package messaging

import (
	"sort"
	"strings"
	"time"

	"github.com/lalith-99/tradielink/internal/apperr"
	"github.com/lalith-99/tradielink/internal/models"
)

// View selects which side of the close boundary a thread list shows.
type View string

const (
	ViewActive  View = "active"
	ViewHistory View = "history"
)

// Shown as lastMessage when a thread has no messages at all.
const (
	PlaceholderActive  = "No messages yet"
	PlaceholderHistory = "Chat closed"
)

// ParseView accepts "active", "history" or empty (active).
func ParseView(s string) (View, error) {
	switch View(strings.ToLower(strings.TrimSpace(s))) {
	case "", ViewActive:
		return ViewActive, nil
	case ViewHistory:
		return ViewHistory, nil
	}
	return "", apperr.InvalidInput("View must be active or history.")
}

// Participant is the counterpart identity shown on a thread.
type Participant struct {
	ID       int64       `json:"id"`
	Role     models.Role `json:"role"`
	Name     string      `json:"name"`
	Subtitle string      `json:"subtitle,omitempty"`
}

func participantOf(u *models.User) Participant {
	return Participant{
		ID:       u.ID,
		Role:     u.Role,
		Name:     u.FullName(),
		Subtitle: u.Subtitle(),
	}
}

// ThreadSummary is one entry of a thread list.
type ThreadSummary struct {
	ID            int64       `json:"id"`
	Participant   Participant `json:"participant"`
	LastMessage   string      `json:"lastMessage"`
	LastMessageAt time.Time   `json:"lastMessageAt"`
	UnreadCount   int         `json:"unreadCount"`
}

// EffectiveAt is the time of the latest activity on a thread: its newest
// message, or its creation when it has none.
func EffectiveAt(r *models.ThreadRow) time.Time {
	if r.LastMessageAt != nil && r.LastMessageAt.After(r.CreatedAt) {
		return *r.LastMessageAt
	}
	return r.CreatedAt
}

// Closed reports whether activity at effective is covered by a closure.
// Anything strictly newer than the closure reopens the thread.
func Closed(effective time.Time, closedAt time.Time, hasClosure bool) bool {
	return hasClosure && !effective.After(closedAt)
}

// Resolve turns raw thread rows for one user into the requested view.
// closures is keyed by peer id, unread by thread id. History entries always
// report zero unread. The result is newest activity first.
func Resolve(rows []models.ThreadRow, closures map[int64]time.Time, unread map[int64]int, view View) []ThreadSummary {
	type entry struct {
		summary   ThreadSummary
		effective time.Time
	}

	entries := make([]entry, 0, len(rows))
	for i := range rows {
		r := &rows[i]
		effective := EffectiveAt(r)
		closedAt, hasClosure := closures[r.Peer.ID]
		inHistory := Closed(effective, closedAt, hasClosure)
		if inHistory != (view == ViewHistory) {
			continue
		}

		s := ThreadSummary{
			ID:            r.ID,
			Participant:   participantOf(&r.Peer),
			LastMessageAt: effective,
		}
		switch {
		case r.LastMessage != nil:
			s.LastMessage = *r.LastMessage
		case inHistory:
			s.LastMessage = PlaceholderHistory
		default:
			s.LastMessage = PlaceholderActive
		}
		if !inHistory {
			s.UnreadCount = unread[r.ID]
		}
		entries = append(entries, entry{summary: s, effective: effective})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if !entries[i].effective.Equal(entries[j].effective) {
			return entries[i].effective.After(entries[j].effective)
		}
		return entries[i].summary.ID > entries[j].summary.ID
	})

	out := make([]ThreadSummary, len(entries))
	for i := range entries {
		out[i] = entries[i].summary
	}
	return out
}
