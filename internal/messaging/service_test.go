package messaging

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/lalith-99/tradielink/internal/apperr"
	"github.com/lalith-99/tradielink/internal/models"
	"github.com/lalith-99/tradielink/internal/repository/memory"
	"go.uber.org/zap"
)

var (
	builderB = Caller{UserID: 1, Role: models.RoleBuilder}
	tradieT  = Caller{UserID: 2, Role: models.RoleTradie}
	tradieU  = Caller{UserID: 3, Role: models.RoleTradie}
)

func newTestService(t *testing.T) (*Service, *memory.Store, *fakeClock) {
	t.Helper()
	store := memory.New()
	addUser(store, 1, models.RoleBuilder, "Bob", "Builder")
	addUser(store, 2, models.RoleTradie, "Tess", "Tradie")
	addUser(store, 3, models.RoleTradie, "Uma", "Underwood")
	clock := newFakeClock()
	svc := NewService(memStores(store), zap.NewNop(), WithClock(clock.Now))
	return svc, store, clock
}

func mustList(t *testing.T, svc *Service, caller Caller, view View) []ThreadSummary {
	t.Helper()
	threads, err := svc.ListThreads(context.Background(), caller, view)
	if err != nil {
		t.Fatalf("ListThreads(%d, %s) failed: %v", caller.UserID, view, err)
	}
	return threads
}

func findThread(threads []ThreadSummary, id int64) *ThreadSummary {
	for i := range threads {
		if threads[i].ID == id {
			return &threads[i]
		}
	}
	return nil
}

func mustStart(t *testing.T, svc *Service, caller Caller, counterpartID int64, body string) *models.Thread {
	t.Helper()
	th, _, err := svc.StartThread(context.Background(), caller, counterpartID, body)
	if err != nil {
		t.Fatalf("StartThread failed: %v", err)
	}
	return th
}

func TestStartThreadIsIdempotent(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()

	first, created, err := svc.StartThread(ctx, tradieT, builderB.UserID, "")
	if err != nil {
		t.Fatalf("StartThread failed: %v", err)
	}
	if !created {
		t.Error("expected first call to create the thread")
	}

	// The builder reaching out to the same tradie lands on the same row.
	second, created, err := svc.StartThread(ctx, builderB, tradieT.UserID, "")
	if err != nil {
		t.Fatalf("StartThread failed: %v", err)
	}
	if created {
		t.Error("expected second call to reuse the thread")
	}
	if first.ID != second.ID {
		t.Errorf("expected same thread id, got %d and %d", first.ID, second.ID)
	}
	if store.ThreadCount() != 1 {
		t.Errorf("expected 1 thread row, got %d", store.ThreadCount())
	}
	if first.BuilderID != builderB.UserID || first.TradieID != tradieT.UserID {
		t.Errorf("unexpected pair columns: %+v", first)
	}
}

func TestStartThreadWithFirstMessage(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	th := mustStart(t, svc, tradieT, builderB.UserID, "  Keen on the deck job  ")

	detail, err := svc.GetThread(ctx, tradieT, th.ID)
	if err != nil {
		t.Fatalf("GetThread failed: %v", err)
	}
	if len(detail.Messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(detail.Messages))
	}
	msg := detail.Messages[0]
	if msg.Body != "Keen on the deck job" || msg.SenderID != tradieT.UserID {
		t.Errorf("unexpected first message %+v", msg)
	}

	// A blank opener is ignored rather than stored.
	th2 := mustStart(t, svc, tradieU, builderB.UserID, "   ")
	detail2, err := svc.GetThread(ctx, tradieU, th2.ID)
	if err != nil {
		t.Fatalf("GetThread failed: %v", err)
	}
	if len(detail2.Messages) != 0 {
		t.Errorf("expected no messages, got %d", len(detail2.Messages))
	}
}

func TestStartThreadValidation(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	cases := []struct {
		name   string
		caller Caller
		peer   int64
		want   error
	}{
		{"missing counterpart", tradieT, 0, apperr.ErrInvalidInput},
		{"unknown counterpart", tradieT, 99, apperr.ErrNotFound},
		{"same role counterpart", tradieT, tradieU.UserID, apperr.ErrNotFound},
		{"builder citing builder", builderB, builderB.UserID, apperr.ErrNotFound},
		{"unknown caller role", Caller{UserID: 2, Role: "admin"}, 1, apperr.ErrForbidden},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := svc.StartThread(ctx, tc.caller, tc.peer, "")
			if !errors.Is(err, tc.want) {
				t.Errorf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestNeverClosedThreadIsActive(t *testing.T) {
	svc, _, _ := newTestService(t)

	th := mustStart(t, svc, tradieT, builderB.UserID, "")

	for _, caller := range []Caller{tradieT, builderB} {
		active := mustList(t, svc, caller, ViewActive)
		got := findThread(active, th.ID)
		if got == nil {
			t.Fatalf("user %d: expected empty thread in active view", caller.UserID)
		}
		if got.UnreadCount != 0 {
			t.Errorf("user %d: expected 0 unread, got %d", caller.UserID, got.UnreadCount)
		}
		if got.LastMessage != PlaceholderActive {
			t.Errorf("user %d: expected placeholder, got %q", caller.UserID, got.LastMessage)
		}
		if !got.LastMessageAt.Equal(th.CreatedAt) {
			t.Errorf("user %d: expected lastMessageAt to fall back to creation", caller.UserID)
		}
		if len(mustList(t, svc, caller, ViewHistory)) != 0 {
			t.Errorf("user %d: expected empty history", caller.UserID)
		}
	}
}

func TestListThreadsParticipant(t *testing.T) {
	svc, _, _ := newTestService(t)

	th := mustStart(t, svc, tradieT, builderB.UserID, "")

	got := findThread(mustList(t, svc, tradieT, ViewActive), th.ID)
	if got == nil {
		t.Fatal("expected thread")
	}
	want := Participant{ID: 1, Role: models.RoleBuilder, Name: "Bob Builder", Subtitle: "Bob Constructions"}
	if got.Participant != want {
		t.Errorf("expected participant %+v, got %+v", want, got.Participant)
	}

	got = findThread(mustList(t, svc, builderB, ViewActive), th.ID)
	if got.Participant.Name != "Tess Tradie" || got.Participant.Subtitle != "Carpenter" {
		t.Errorf("unexpected participant for builder: %+v", got.Participant)
	}
}

// Walks the full lifecycle: start, message, read, close, reopen.
func TestThreadLifecycleScenario(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	th := mustStart(t, svc, tradieT, builderB.UserID, "")

	if _, err := svc.SendMessage(ctx, builderB, th.ID, "Hello"); err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}
	if got := findThread(mustList(t, svc, tradieT, ViewActive), th.ID); got == nil || got.UnreadCount != 1 {
		t.Fatalf("expected tradie unread 1, got %+v", got)
	}
	if got := findThread(mustList(t, svc, builderB, ViewActive), th.ID); got == nil || got.UnreadCount != 0 {
		t.Fatalf("expected builder unread 0, got %+v", got)
	}

	if err := svc.MarkRead(ctx, tradieT, th.ID); err != nil {
		t.Fatalf("MarkRead failed: %v", err)
	}
	if got := findThread(mustList(t, svc, tradieT, ViewActive), th.ID); got == nil || got.UnreadCount != 0 {
		t.Fatalf("expected tradie unread 0 after read, got %+v", got)
	}

	// Tradie closes: both sides move to history, even though the builder
	// never called close.
	if err := svc.CloseThread(ctx, tradieT, th.ID); err != nil {
		t.Fatalf("CloseThread failed: %v", err)
	}
	for _, caller := range []Caller{tradieT, builderB} {
		if findThread(mustList(t, svc, caller, ViewActive), th.ID) != nil {
			t.Errorf("user %d: expected thread out of active view", caller.UserID)
		}
		hist := findThread(mustList(t, svc, caller, ViewHistory), th.ID)
		if hist == nil {
			t.Fatalf("user %d: expected thread in history", caller.UserID)
		}
		if hist.UnreadCount != 0 {
			t.Errorf("user %d: history must report 0 unread", caller.UserID)
		}
		if hist.LastMessage != "Hello" {
			t.Errorf("user %d: expected last message in history, got %q", caller.UserID, hist.LastMessage)
		}
	}

	// New activity reopens it for both.
	if _, err := svc.SendMessage(ctx, builderB, th.ID, "Still there?"); err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}
	for _, caller := range []Caller{tradieT, builderB} {
		if findThread(mustList(t, svc, caller, ViewHistory), th.ID) != nil {
			t.Errorf("user %d: expected thread out of history", caller.UserID)
		}
	}
	if got := findThread(mustList(t, svc, tradieT, ViewActive), th.ID); got == nil || got.UnreadCount != 1 {
		t.Errorf("expected tradie unread 1 after reopen, got %+v", got)
	}
	if got := findThread(mustList(t, svc, builderB, ViewActive), th.ID); got == nil || got.UnreadCount != 0 {
		t.Errorf("expected builder unread 0 after reopen, got %+v", got)
	}
}

func TestClosingEmptyThreadHidesUntilFirstMessage(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	th := mustStart(t, svc, builderB, tradieT.UserID, "")
	if err := svc.CloseThread(ctx, builderB, th.ID); err != nil {
		t.Fatalf("CloseThread failed: %v", err)
	}

	if findThread(mustList(t, svc, builderB, ViewActive), th.ID) != nil {
		t.Fatal("expected closed empty thread out of active view")
	}
	hist := findThread(mustList(t, svc, builderB, ViewHistory), th.ID)
	if hist == nil || hist.LastMessage != PlaceholderHistory {
		t.Fatalf("expected history entry with placeholder, got %+v", hist)
	}

	if _, err := svc.SendMessage(ctx, tradieT, th.ID, "Hi"); err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}
	if findThread(mustList(t, svc, builderB, ViewActive), th.ID) == nil {
		t.Error("expected first message to reopen the thread")
	}
}

func TestRestartingClosedThreadDoesNotReopen(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	th := mustStart(t, svc, tradieT, builderB.UserID, "hey")
	if err := svc.CloseThread(ctx, builderB, th.ID); err != nil {
		t.Fatalf("CloseThread failed: %v", err)
	}

	// Start without a message leaves closures alone.
	mustStart(t, svc, tradieT, builderB.UserID, "")
	if findThread(mustList(t, svc, tradieT, ViewHistory), th.ID) == nil {
		t.Error("expected thread to stay in history")
	}

	// Start with a message is new activity.
	mustStart(t, svc, tradieT, builderB.UserID, "back again")
	if findThread(mustList(t, svc, tradieT, ViewActive), th.ID) == nil {
		t.Error("expected opener message to reopen the thread")
	}
}

func TestReclosingMovesClosureForward(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()

	th := mustStart(t, svc, tradieT, builderB.UserID, "one")
	if err := svc.CloseThread(ctx, tradieT, th.ID); err != nil {
		t.Fatalf("CloseThread failed: %v", err)
	}
	if _, err := svc.SendMessage(ctx, builderB, th.ID, "two"); err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}
	if err := svc.CloseThread(ctx, builderB, th.ID); err != nil {
		t.Fatalf("CloseThread failed: %v", err)
	}

	if store.ClosureCount() != 2 {
		t.Errorf("expected one closure per direction, got %d", store.ClosureCount())
	}
	if findThread(mustList(t, svc, tradieT, ViewHistory), th.ID) == nil {
		t.Error("expected re-closed thread in history")
	}
}

func TestUnreadIgnoresOwnMessages(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	th := mustStart(t, svc, tradieT, builderB.UserID, "first")
	for _, body := range []string{"second", "third"} {
		if _, err := svc.SendMessage(ctx, tradieT, th.ID, body); err != nil {
			t.Fatalf("SendMessage failed: %v", err)
		}
	}

	if got := findThread(mustList(t, svc, tradieT, ViewActive), th.ID); got.UnreadCount != 0 {
		t.Errorf("sender should owe nothing, got %d", got.UnreadCount)
	}
	if got := findThread(mustList(t, svc, builderB, ViewActive), th.ID); got.UnreadCount != 3 {
		t.Errorf("expected builder unread 3, got %d", got.UnreadCount)
	}
}

func TestListThreadsOrdering(t *testing.T) {
	svc, _, clock := newTestService(t)
	ctx := context.Background()

	older := mustStart(t, svc, builderB, tradieT.UserID, "")
	clock.Advance(time.Minute)
	newer := mustStart(t, svc, builderB, tradieU.UserID, "")

	threads := mustList(t, svc, builderB, ViewActive)
	if len(threads) != 2 || threads[0].ID != newer.ID {
		t.Fatalf("expected newest thread first, got %+v", threads)
	}

	clock.Advance(time.Minute)
	if _, err := svc.SendMessage(ctx, tradieT, older.ID, "bump"); err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}
	threads = mustList(t, svc, builderB, ViewActive)
	if threads[0].ID != older.ID {
		t.Errorf("expected bumped thread first, got %d", threads[0].ID)
	}
	if threads[0].LastMessage != "bump" {
		t.Errorf("expected last message bump, got %q", threads[0].LastMessage)
	}
}

func TestGetThread(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	th := mustStart(t, svc, tradieT, builderB.UserID, "a")
	if _, err := svc.SendMessage(ctx, builderB, th.ID, "b"); err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}

	detail, err := svc.GetThread(ctx, builderB, th.ID)
	if err != nil {
		t.Fatalf("GetThread failed: %v", err)
	}
	if detail.Participant.ID != tradieT.UserID {
		t.Errorf("expected participant to be the tradie, got %+v", detail.Participant)
	}
	if detail.Builder.ID != builderB.UserID || detail.Tradie.ID != tradieT.UserID {
		t.Errorf("unexpected participants %+v / %+v", detail.Builder, detail.Tradie)
	}
	if len(detail.Messages) != 2 || detail.Messages[0].Body != "a" || detail.Messages[1].Body != "b" {
		t.Fatalf("expected messages in order, got %+v", detail.Messages)
	}
	if detail.Messages[1].SenderRole != models.RoleBuilder || detail.Messages[1].SenderName != "Bob Builder" {
		t.Errorf("expected sender details, got %+v", detail.Messages[1])
	}

	// Fetching does not mark read.
	if got := findThread(mustList(t, svc, builderB, ViewActive), th.ID); got.UnreadCount != 1 {
		t.Errorf("expected unread 1 after preview, got %d", got.UnreadCount)
	}
}

func TestThreadAccessErrors(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	th := mustStart(t, svc, tradieT, builderB.UserID, "")

	ops := map[string]func(Caller, int64) error{
		"get": func(c Caller, id int64) error {
			_, err := svc.GetThread(ctx, c, id)
			return err
		},
		"send": func(c Caller, id int64) error {
			_, err := svc.SendMessage(ctx, c, id, "hi")
			return err
		},
		"read":  func(c Caller, id int64) error { return svc.MarkRead(ctx, c, id) },
		"close": func(c Caller, id int64) error { return svc.CloseThread(ctx, c, id) },
		"set typing": func(c Caller, id int64) error {
			return svc.SetTyping(ctx, c, id, true)
		},
		"get typing": func(c Caller, id int64) error {
			_, err := svc.GetTyping(ctx, c, id)
			return err
		},
	}

	for name, op := range ops {
		t.Run(name, func(t *testing.T) {
			if err := op(tradieU, th.ID); !errors.Is(err, apperr.ErrForbidden) {
				t.Errorf("non-participant: expected forbidden, got %v", err)
			}
			if err := op(tradieT, 9999); !errors.Is(err, apperr.ErrNotFound) {
				t.Errorf("missing thread: expected not found, got %v", err)
			}
			if err := op(tradieT, 0); !errors.Is(err, apperr.ErrInvalidInput) {
				t.Errorf("bad id: expected invalid input, got %v", err)
			}
		})
	}
}

func TestSendMessageRejectsBlankBody(t *testing.T) {
	svc, store, _ := newTestService(t)
	th := mustStart(t, svc, tradieT, builderB.UserID, "")

	for _, body := range []string{"", "   ", "\n\t"} {
		_, err := svc.SendMessage(context.Background(), tradieT, th.ID, body)
		if !errors.Is(err, apperr.ErrInvalidInput) {
			t.Errorf("body %q: expected invalid input, got %v", body, err)
		}
	}
	if store.MessageCount() != 0 {
		t.Errorf("expected no stored messages, got %d", store.MessageCount())
	}
}

func TestTypingFreshness(t *testing.T) {
	svc, _, clock := newTestService(t)
	ctx := context.Background()
	th := mustStart(t, svc, tradieT, builderB.UserID, "")

	if err := svc.SetTyping(ctx, tradieT, th.ID, true); err != nil {
		t.Fatalf("SetTyping failed: %v", err)
	}

	st, err := svc.GetTyping(ctx, builderB, th.ID)
	if err != nil {
		t.Fatalf("GetTyping failed: %v", err)
	}
	if !st.PeerTyping || st.MeTyping || !st.EitherTyping {
		t.Errorf("expected peer typing from builder's side, got %+v", st)
	}

	st, err = svc.GetTyping(ctx, tradieT, th.ID)
	if err != nil {
		t.Fatalf("GetTyping failed: %v", err)
	}
	if !st.MeTyping || st.PeerTyping {
		t.Errorf("expected me typing from tradie's side, got %+v", st)
	}

	// A stale true row reads as false.
	clock.Advance(11 * time.Second)
	st, err = svc.GetTyping(ctx, builderB, th.ID)
	if err != nil {
		t.Fatalf("GetTyping failed: %v", err)
	}
	if st.PeerTyping || st.EitherTyping {
		t.Errorf("expected stale intent to read as not typing, got %+v", st)
	}
}

func TestTypingExplicitStop(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	th := mustStart(t, svc, tradieT, builderB.UserID, "")

	if err := svc.SetTyping(ctx, builderB, th.ID, true); err != nil {
		t.Fatalf("SetTyping failed: %v", err)
	}
	if err := svc.SetTyping(ctx, builderB, th.ID, false); err != nil {
		t.Fatalf("SetTyping failed: %v", err)
	}
	st, err := svc.GetTyping(ctx, tradieT, th.ID)
	if err != nil {
		t.Fatalf("GetTyping failed: %v", err)
	}
	if st.PeerTyping {
		t.Error("expected explicit stop to clear peer typing")
	}
}

func TestSendClearsSenderTyping(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	th := mustStart(t, svc, tradieT, builderB.UserID, "")

	if err := svc.SetTyping(ctx, tradieT, th.ID, true); err != nil {
		t.Fatalf("SetTyping failed: %v", err)
	}
	if _, err := svc.SendMessage(ctx, tradieT, th.ID, "done typing"); err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}

	st, err := svc.GetTyping(ctx, tradieT, th.ID)
	if err != nil {
		t.Fatalf("GetTyping failed: %v", err)
	}
	if st.MeTyping {
		t.Error("expected meTyping false right after sending")
	}
}

func TestSendSurvivesTypingStoreFailure(t *testing.T) {
	svc, store, _ := newTestService(t)
	th := mustStart(t, svc, tradieT, builderB.UserID, "")
	store.FailTyping(true)

	msg, err := svc.SendMessage(context.Background(), tradieT, th.ID, "still delivered")
	if err != nil {
		t.Fatalf("expected send to succeed, got %v", err)
	}
	if msg.Body != "still delivered" {
		t.Errorf("unexpected message %+v", msg)
	}
}

func TestCountThreads(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	a := mustStart(t, svc, builderB, tradieT.UserID, "hi")
	mustStart(t, svc, builderB, tradieU.UserID, "")
	if err := svc.CloseThread(ctx, builderB, a.ID); err != nil {
		t.Fatalf("CloseThread failed: %v", err)
	}

	active, total, err := svc.CountThreads(ctx, builderB)
	if err != nil {
		t.Fatalf("CountThreads failed: %v", err)
	}
	if active != 1 || total != 2 {
		t.Errorf("expected 1 active of 2, got %d of %d", active, total)
	}
}
