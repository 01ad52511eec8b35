package models

import (
	"strings"
	"time"
)

// Role is fixed at registration. Every account is exactly one of these.
type Role string

const (
	RoleBuilder Role = "builder"
	RoleTradie  Role = "tradie"
)

func (r Role) Valid() bool {
	return r == RoleBuilder || r == RoleTradie
}

// Opposite returns the role a thread counterpart must have.
func (r Role) Opposite() Role {
	if r == RoleBuilder {
		return RoleTradie
	}
	return RoleBuilder
}

// User mirrors the users table. Builder-only and tradie-only columns are
// nullable, so they are pointers here.
type User struct {
	ID              int64     `json:"id"`
	Role            Role      `json:"role"`
	FirstName       string    `json:"firstName"`
	LastName        string    `json:"lastName"`
	About           string    `json:"about"`
	CompanyName     *string   `json:"companyName"`
	Address         *string   `json:"address"`
	Occupation      *string   `json:"occupation"`
	PricePerHour    *float64  `json:"pricePerHour"`
	ExperienceYears *int      `json:"experienceYears"`
	Certifications  []string  `json:"certifications"`
	PhotoURL        *string   `json:"photoUrl"`
	Email           string    `json:"email"`
	PasswordHash    string    `json:"-"`
	CreatedAt       time.Time `json:"createdAt"`
}

func (u *User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// Subtitle is the one-line descriptor shown under a name: the company for
// builders, the occupation for tradies.
func (u *User) Subtitle() string {
	if u.Role == RoleBuilder {
		return deref(u.CompanyName)
	}
	return deref(u.Occupation)
}

// NewUser is the validated input for creating an account.
type NewUser struct {
	Role            Role
	FirstName       string
	LastName        string
	About           string
	CompanyName     *string
	Address         *string
	Occupation      *string
	PricePerHour    *float64
	ExperienceYears *int
	Certifications  []string
	PhotoURL        *string
	Email           string
	PasswordHash    string
}

// Thread is the single conversation between one builder and one tradie.
// (BuilderID, TradieID) is unique.
type Thread struct {
	ID        int64     `json:"id"`
	BuilderID int64     `json:"builderId"`
	TradieID  int64     `json:"tradieId"`
	CreatedAt time.Time `json:"createdAt"`
}

// Peer returns the other participant. ok is false when userID is not in
// the thread at all.
func (t *Thread) Peer(userID int64) (peerID int64, ok bool) {
	switch userID {
	case t.BuilderID:
		return t.TradieID, true
	case t.TradieID:
		return t.BuilderID, true
	}
	return 0, false
}

// ThreadRow is a thread as seen by one user: the peer and the most recent
// message, if any.
type ThreadRow struct {
	Thread
	Peer          User
	LastMessage   *string
	LastMessageAt *time.Time
}

// Message is append-only. Ordered by (CreatedAt, ID) within a thread.
type Message struct {
	ID         int64     `json:"id"`
	ThreadID   int64     `json:"threadId"`
	SenderID   int64     `json:"senderId"`
	SenderRole Role      `json:"senderRole,omitempty"`
	SenderName string    `json:"senderName,omitempty"`
	Body       string    `json:"body"`
	CreatedAt  time.Time `json:"createdAt"`
}

// TypingIntent is a directional "from is composing to to" flag. It is only
// trustworthy while UpdatedAt is fresh.
type TypingIntent struct {
	FromUserID int64     `json:"fromUserId"`
	ToUserID   int64     `json:"toUserId"`
	IsTyping   bool      `json:"isTyping"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

type JobStatus string

const (
	JobPosted     JobStatus = "posted"
	JobInProgress JobStatus = "inProgress"
	JobDone       JobStatus = "done"
)

func (s JobStatus) Valid() bool {
	switch s {
	case JobPosted, JobInProgress, JobDone:
		return true
	}
	return false
}

// Trades a job can ask for.
var TradeOptions = []string{
	"Carpenter",
	"Plumber",
	"Scaffolder",
	"Electrician",
	"Waterproofer",
	"Renderer",
}

type Job struct {
	ID           int64     `json:"id"`
	BuilderID    int64     `json:"builderId"`
	Title        string    `json:"title"`
	Location     string    `json:"location"`
	TradesNeeded []string  `json:"tradesNeeded"`
	Details      string    `json:"details"`
	Status       JobStatus `json:"status"`
	CreatedAt    time.Time `json:"createdAt"`
}

// JobEnquiry is a tradie who enquired on a job, with enough of their
// profile to render a list entry.
type JobEnquiry struct {
	JobID      int64   `json:"-"`
	TradieID   int64   `json:"id"`
	Name       string  `json:"name"`
	Occupation *string `json:"occupation"`
}

// BoardJob is a posted job as a tradie sees it.
type BoardJob struct {
	Job
	BuilderDisplayName string `json:"builderDisplayName"`
	HasEnquired        bool   `json:"hasEnquired"`
	EnquiriesCount     int    `json:"enquiriesCount"`
}

// DisplayName is how a user is listed in directories and job boards.
// Builders with a company show it in parentheses.
func DisplayName(u *User) string {
	name := u.FullName()
	if u.Role == RoleBuilder {
		if company := strings.TrimSpace(deref(u.CompanyName)); company != "" {
			return name + " (" + company + ")"
		}
	}
	return name
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
