package messaging

import (
	"sync"
	"time"

	"github.com/lalith-99/tradielink/internal/models"
	"github.com/lalith-99/tradielink/internal/repository/memory"
)

func memStores(m *memory.Store) Stores {
	return Stores{
		Users:    m.Users(),
		Threads:  m.Threads(),
		Messages: m.Messages(),
		Reads:    m.Reads(),
		Closures: m.Closures(),
		Typing:   m.Typing(),
	}
}

// addUser gives builders a company and tradies an occupation so
// participant subtitles are populated.
func addUser(m *memory.Store, id int64, role models.Role, first, last string) {
	u := models.User{ID: id, Role: role, FirstName: first, LastName: last}
	if role == models.RoleBuilder {
		company := first + " Constructions"
		u.CompanyName = &company
	} else {
		occ := "Carpenter"
		u.Occupation = &occ
	}
	m.AddUser(u)
}

// fakeClock moves forward 1ms on every read, so writes are strictly ordered.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Millisecond)
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
