package client

import (
	"context"
	"strings"
	"sync"
	"time"
)

const (
	// DefaultPollInterval is how often an open chat screen refreshes.
	DefaultPollInterval = 2500 * time.Millisecond

	// DefaultTypingIdle is how long after the last keystroke a typing
	// intent is withdrawn.
	DefaultTypingIdle = 1200 * time.Millisecond
)

// Poller calls Refresh once immediately and then on every tick until the
// context is cancelled. A failed tick goes to OnError and the loop keeps
// going.
type Poller struct {
	Interval time.Duration
	Refresh  func(ctx context.Context) error
	OnError  func(err error)
}

// Run blocks until ctx is done and returns ctx.Err().
func (p *Poller) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval())
	defer ticker.Stop()

	p.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			p.tick(ctx)
		}
	}
}

func (p *Poller) tick(ctx context.Context) {
	if p.Refresh == nil {
		return
	}
	if err := p.Refresh(ctx); err != nil && ctx.Err() == nil && p.OnError != nil {
		p.OnError(err)
	}
}

func (p *Poller) interval() time.Duration {
	if p.Interval <= 0 {
		return DefaultPollInterval
	}
	return p.Interval
}

// TypingDebouncer sends isTyping=true on the first keystroke and false
// once the input goes idle or is cleared, matching a 1.2s idle window.
type TypingDebouncer struct {
	mu     sync.Mutex
	send   func(isTyping bool)
	idle   time.Duration
	timer  *time.Timer
	typing bool
}

// NewTypingDebouncer calls send on every typing state change. send runs
// on the caller's goroutine for the "true" edge and on a timer goroutine
// for the idle "false" edge.
func NewTypingDebouncer(idle time.Duration, send func(isTyping bool)) *TypingDebouncer {
	if idle <= 0 {
		idle = DefaultTypingIdle
	}
	return &TypingDebouncer{send: send, idle: idle}
}

// Input reports the current composer text.
func (d *TypingDebouncer) Input(text string) {
	d.mu.Lock()
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}

	if strings.TrimSpace(text) == "" {
		d.mu.Unlock()
		d.Stop()
		return
	}

	start := !d.typing
	d.typing = true
	d.timer = time.AfterFunc(d.idle, d.Stop)
	d.mu.Unlock()

	if start {
		d.send(true)
	}
}

// Stop withdraws the typing intent if one is outstanding. Call it after
// sending and when the screen closes.
func (d *TypingDebouncer) Stop() {
	d.mu.Lock()
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	was := d.typing
	d.typing = false
	d.mu.Unlock()

	if was {
		d.send(false)
	}
}
