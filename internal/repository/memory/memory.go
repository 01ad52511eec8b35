// Package memory holds in-process implementations of every repository.
// They follow the same rules as the Postgres stores (unique pairs, upserts
// on natural keys, unread after the read cursor) and back the service and
// handler tests.
package memory

import (
	"context"
	"errors"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/lalith-99/tradielink/internal/apperr"
	"github.com/lalith-99/tradielink/internal/models"
	"github.com/lalith-99/tradielink/internal/repository"
)

// ErrTypingDown is returned by the typing store while FailTyping is set.
var ErrTypingDown = errors.New("typing store unavailable")

type pair [2]int64

type enquiry struct {
	jobID, tradieID int64
	at              time.Time
}

// Store keeps every table in maps guarded by one mutex. The repository
// views returned by its methods share that state.
type Store struct {
	mu        sync.Mutex
	users     map[int64]*models.User
	nextUser  int64
	threads   []*models.Thread
	messages  []*models.Message
	reads     map[pair]time.Time
	closures  map[pair]time.Time
	typing    map[pair]models.TypingIntent
	jobs      []*models.Job
	enquiries []enquiry

	failTyping bool
	now        func() time.Time
}

func New() *Store {
	return &Store{
		users:    make(map[int64]*models.User),
		reads:    make(map[pair]time.Time),
		closures: make(map[pair]time.Time),
		typing:   make(map[pair]models.TypingIntent),
		now:      time.Now,
	}
}

// SetClock sets the source for timestamps the store stamps itself
// (user and job creation).
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// FailTyping makes every typing write fail with ErrTypingDown.
func (s *Store) FailTyping(fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failTyping = fail
}

// AddUser inserts u as is, keeping its id.
func (s *Store) AddUser(u models.User) *models.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u.Certifications == nil {
		u.Certifications = []string{}
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = s.now()
	}
	s.users[u.ID] = &u
	if u.ID > s.nextUser {
		s.nextUser = u.ID
	}
	cp := u
	return &cp
}

func (s *Store) ThreadCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.threads)
}

func (s *Store) MessageCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.messages)
}

func (s *Store) ClosureCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.closures)
}

func (s *Store) Users() *Users       { return &Users{s} }
func (s *Store) Threads() *Threads   { return &Threads{s} }
func (s *Store) Messages() *Messages { return &Messages{s} }
func (s *Store) Reads() *Reads       { return &Reads{s} }
func (s *Store) Closures() *Closures { return &Closures{s} }
func (s *Store) Typing() *Typing     { return &Typing{s} }
func (s *Store) Jobs() *Jobs         { return &Jobs{s} }

// ---------------------------------------------------------------
// Users
// ---------------------------------------------------------------

type Users struct{ s *Store }

func (r *Users) Create(_ context.Context, nu models.NewUser) (*models.User, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if u.Email == nu.Email {
			return nil, apperr.Conflict("Email already registered.")
		}
	}
	s.nextUser++
	u := &models.User{
		ID:              s.nextUser,
		Role:            nu.Role,
		FirstName:       nu.FirstName,
		LastName:        nu.LastName,
		About:           nu.About,
		CompanyName:     nu.CompanyName,
		Address:         nu.Address,
		Occupation:      nu.Occupation,
		PricePerHour:    nu.PricePerHour,
		ExperienceYears: nu.ExperienceYears,
		Certifications:  slices.Clone(nu.Certifications),
		PhotoURL:        nu.PhotoURL,
		Email:           nu.Email,
		PasswordHash:    nu.PasswordHash,
		CreatedAt:       s.now(),
	}
	if u.Certifications == nil {
		u.Certifications = []string{}
	}
	s.users[u.ID] = u
	cp := *u
	return &cp, nil
}

func (r *Users) Update(_ context.Context, id int64, p models.NewUser) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return nil, nil
	}
	u.FirstName, u.LastName, u.About = p.FirstName, p.LastName, p.About
	u.CompanyName, u.Address = p.CompanyName, p.Address
	u.Occupation, u.PricePerHour, u.ExperienceYears = p.Occupation, p.PricePerHour, p.ExperienceYears
	u.Certifications = slices.Clone(p.Certifications)
	if u.Certifications == nil {
		u.Certifications = []string{}
	}
	u.PhotoURL = p.PhotoURL
	if p.PasswordHash != "" {
		u.PasswordHash = p.PasswordHash
	}
	cp := *u
	return &cp, nil
}

func (r *Users) GetByID(_ context.Context, id int64) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (r *Users) GetByEmail(_ context.Context, email string) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *Users) ListByRole(_ context.Context, role models.Role) ([]models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]models.User, 0)
	for _, u := range r.s.users {
		if u.Role == role {
			out = append(out, *u)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].FirstName != out[j].FirstName {
			return out[i].FirstName < out[j].FirstName
		}
		if out[i].LastName != out[j].LastName {
			return out[i].LastName < out[j].LastName
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// ---------------------------------------------------------------
// Threads and messages
// ---------------------------------------------------------------

type Threads struct{ s *Store }

func (r *Threads) Open(_ context.Context, builderID, tradieID, senderID int64, firstBody string, at time.Time) (*models.Thread, bool, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	var th *models.Thread
	for _, t := range s.threads {
		if t.BuilderID == builderID && t.TradieID == tradieID {
			th = t
			break
		}
	}
	created := th == nil
	if created {
		th = &models.Thread{ID: int64(100 + len(s.threads)), BuilderID: builderID, TradieID: tradieID, CreatedAt: at}
		s.threads = append(s.threads, th)
	}
	if firstBody != "" {
		s.appendMessage(th.ID, senderID, firstBody, at)
	}
	cp := *th
	return &cp, created, nil
}

func (r *Threads) GetByID(_ context.Context, id int64) (*models.Thread, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, t := range r.s.threads {
		if t.ID == id {
			cp := *t
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *Threads) ListForUser(_ context.Context, userID int64) ([]models.ThreadRow, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	rows := make([]models.ThreadRow, 0)
	for _, t := range s.threads {
		peerID, ok := t.Peer(userID)
		if !ok {
			continue
		}
		peer, ok := s.users[peerID]
		if !ok {
			continue
		}
		row := models.ThreadRow{Thread: *t, Peer: *peer}
		if last := s.lastMessage(t.ID); last != nil {
			body, at := last.Body, last.CreatedAt
			row.LastMessage, row.LastMessageAt = &body, &at
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func (s *Store) lastMessage(threadID int64) *models.Message {
	var last *models.Message
	for _, msg := range s.messages {
		if msg.ThreadID != threadID {
			continue
		}
		if last == nil || msg.CreatedAt.After(last.CreatedAt) ||
			(msg.CreatedAt.Equal(last.CreatedAt) && msg.ID > last.ID) {
			last = msg
		}
	}
	return last
}

func (s *Store) appendMessage(threadID, senderID int64, body string, at time.Time) *models.Message {
	msg := &models.Message{
		ID:        int64(len(s.messages) + 1),
		ThreadID:  threadID,
		SenderID:  senderID,
		Body:      body,
		CreatedAt: at,
	}
	s.messages = append(s.messages, msg)
	return msg
}

type Messages struct{ s *Store }

func (r *Messages) Create(_ context.Context, threadID, senderID int64, body string, at time.Time) (*models.Message, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if strings.TrimSpace(body) == "" {
		return nil, errors.New("insert message: empty body")
	}
	cp := *r.s.appendMessage(threadID, senderID, body, at)
	return &cp, nil
}

func (r *Messages) ListByThread(_ context.Context, threadID int64) ([]models.Message, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.Message, 0)
	for _, msg := range s.messages {
		if msg.ThreadID != threadID {
			continue
		}
		cp := *msg
		if sender, ok := s.users[msg.SenderID]; ok {
			cp.SenderRole = sender.Role
			cp.SenderName = sender.FullName()
		}
		out = append(out, cp)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r *Messages) UnreadCounts(_ context.Context, userID int64) (map[int64]int, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	counts := make(map[int64]int)
	for _, t := range s.threads {
		peerID, ok := t.Peer(userID)
		if !ok {
			continue
		}
		cursor := s.reads[pair{userID, peerID}]
		for _, msg := range s.messages {
			if msg.ThreadID == t.ID && msg.SenderID == peerID && msg.CreatedAt.After(cursor) {
				counts[t.ID]++
			}
		}
	}
	return counts, nil
}

// ---------------------------------------------------------------
// Read cursors, closures and typing
// ---------------------------------------------------------------

type Reads struct{ s *Store }

// MarkRead never moves a cursor backwards.
func (r *Reads) MarkRead(_ context.Context, userID, peerID int64, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	k := pair{userID, peerID}
	if at.After(r.s.reads[k]) {
		r.s.reads[k] = at
	}
	return nil
}

type Closures struct{ s *Store }

func (r *Closures) CloseBoth(_ context.Context, userID, peerID int64, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.closures[pair{userID, peerID}] = at
	r.s.closures[pair{peerID, userID}] = at
	return nil
}

func (r *Closures) ListForUser(_ context.Context, userID int64) (map[int64]time.Time, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make(map[int64]time.Time)
	for k, v := range r.s.closures {
		if k[0] == userID {
			out[k[1]] = v
		}
	}
	return out, nil
}

type Typing struct{ s *Store }

func (r *Typing) SetTyping(_ context.Context, from, to int64, isTyping bool, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.failTyping {
		return ErrTypingDown
	}
	r.s.typing[pair{from, to}] = models.TypingIntent{FromUserID: from, ToUserID: to, IsTyping: isTyping, UpdatedAt: at}
	return nil
}

func (r *Typing) GetTyping(_ context.Context, from, to int64) (*models.TypingIntent, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	ti, ok := r.s.typing[pair{from, to}]
	if !ok {
		return nil, nil
	}
	return &ti, nil
}

// ---------------------------------------------------------------
// Jobs
// ---------------------------------------------------------------

type Jobs struct{ s *Store }

func (r *Jobs) Create(_ context.Context, job models.Job) (*models.Job, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	job.ID = int64(len(s.jobs) + 1)
	job.CreatedAt = s.now()
	job.TradesNeeded = slices.Clone(job.TradesNeeded)
	s.jobs = append(s.jobs, &job)
	cp := job
	return &cp, nil
}

func (r *Jobs) GetByID(_ context.Context, jobID int64) (*models.Job, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, j := range r.s.jobs {
		if j.ID == jobID {
			cp := *j
			return &cp, nil
		}
	}
	return nil, nil
}

// newestFirst walks jobs in reverse insertion order, which is creation
// order for this store.
func (s *Store) newestFirst(keep func(*models.Job) bool) []models.Job {
	out := make([]models.Job, 0)
	for i := len(s.jobs) - 1; i >= 0; i-- {
		if keep(s.jobs[i]) {
			out = append(out, *s.jobs[i])
		}
	}
	return out
}

func (r *Jobs) ListByBuilder(_ context.Context, builderID int64) ([]models.Job, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.newestFirst(func(j *models.Job) bool { return j.BuilderID == builderID }), nil
}

func (r *Jobs) ListEnquiries(_ context.Context, jobIDs []int64) ([]models.JobEnquiry, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.JobEnquiry, 0)
	for _, e := range s.enquiries {
		if !slices.Contains(jobIDs, e.jobID) {
			continue
		}
		u, ok := s.users[e.tradieID]
		if !ok {
			continue
		}
		out = append(out, models.JobEnquiry{
			JobID:      e.jobID,
			TradieID:   u.ID,
			Name:       u.FullName(),
			Occupation: u.Occupation,
		})
	}
	return out, nil
}

func (r *Jobs) ListPosted(_ context.Context, tradieID int64) ([]models.BoardJob, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	posted := s.newestFirst(func(j *models.Job) bool { return j.Status == models.JobPosted })
	out := make([]models.BoardJob, 0, len(posted))
	for _, j := range posted {
		bj := models.BoardJob{Job: j}
		if b, ok := s.users[j.BuilderID]; ok {
			bj.BuilderDisplayName = models.DisplayName(b)
		}
		for _, e := range s.enquiries {
			if e.jobID != j.ID {
				continue
			}
			bj.EnquiriesCount++
			if e.tradieID == tradieID {
				bj.HasEnquired = true
			}
		}
		out = append(out, bj)
	}
	return out, nil
}

func (r *Jobs) Enquire(_ context.Context, jobID, tradieID int64, at time.Time) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.enquiries {
		if e.jobID == jobID && e.tradieID == tradieID {
			return nil
		}
	}
	s.enquiries = append(s.enquiries, enquiry{jobID: jobID, tradieID: tradieID, at: at})
	return nil
}

func (r *Jobs) CountPendingEnquiries(_ context.Context, builderID int64) (int, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, e := range s.enquiries {
		for _, j := range s.jobs {
			if j.ID == e.jobID && j.BuilderID == builderID && j.Status == models.JobPosted {
				n++
			}
		}
	}
	return n, nil
}

var (
	_ repository.UserRepository       = (*Users)(nil)
	_ repository.ThreadRepository     = (*Threads)(nil)
	_ repository.MessageRepository    = (*Messages)(nil)
	_ repository.ReadCursorRepository = (*Reads)(nil)
	_ repository.ClosureRepository    = (*Closures)(nil)
	_ repository.TypingRepository     = (*Typing)(nil)
	_ repository.JobRepository        = (*Jobs)(nil)
)
