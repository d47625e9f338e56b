package worker

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"promptcoach/internal/broker"
	"promptcoach/internal/models"
)

type stubRemote struct {
	delay    time.Duration
	inFlight int32
	peak     int32
	calls    int32
	onCheck  func()
}

func (s *stubRemote) DispatchText(ctx context.Context, message string, lang models.Language) (string, error) {
	n := atomic.AddInt32(&s.inFlight, 1)
	defer atomic.AddInt32(&s.inFlight, -1)
	for {
		peak := atomic.LoadInt32(&s.peak)
		if n <= peak || atomic.CompareAndSwapInt32(&s.peak, peak, n) {
			break
		}
	}
	atomic.AddInt32(&s.calls, 1)
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	return "remote: " + message, nil
}

func (s *stubRemote) DispatchImage(ctx context.Context, prompt string, lang models.Language) (string, error) {
	atomic.AddInt32(&s.calls, 1)
	return "https://img.example/1.png", nil
}

func (s *stubRemote) CheckCredential(ctx context.Context) broker.CredentialStatus {
	if s.onCheck != nil {
		s.onCheck()
	}
	return broker.CredentialStatus{Valid: true, Message: "ok"}
}

func newTestManager(t *testing.T, remote broker.RemoteDispatcher, quota int) *Manager {
	t.Helper()
	log := logrus.New()
	log.SetOutput(io.Discard)
	b := broker.New(remote, broker.Options{DefaultQuota: quota, ResetQuota: 5, Timeout: time.Second, Logger: log})
	m := NewManager(b, DispatcherConfig{MinWorkers: 2, MaxWorkers: 4, QueueSize: 32}, nil)
	t.Cleanup(m.Close)
	return m
}

func TestManagerTurnConsumesQuota(t *testing.T) {
	remote := &stubRemote{}
	m := newTestManager(t, remote, 2)

	res, err := m.Turn(Request{SessionID: "s1", Language: "en", Message: "what is a prompt"})
	if err != nil {
		t.Fatalf("turn: %v", err)
	}
	if res.Reply == nil || res.Reply.Source != broker.SourceRemote {
		t.Fatalf("expected remote reply, got %+v", res.Reply)
	}
	if res.Session.Remaining != 1 || res.Session.Language != models.LanguageEN {
		t.Fatalf("unexpected session state: %+v", res.Session)
	}

	m.Turn(Request{SessionID: "s1", Message: "second"})
	res, err = m.Turn(Request{SessionID: "s1", Message: "third"})
	if err != nil {
		t.Fatalf("turn: %v", err)
	}
	if res.Reply.Source != broker.SourceCanned || res.Session.Remaining != 0 {
		t.Fatalf("exhausted quota should answer from canned table: %+v", res)
	}
	if got := atomic.LoadInt32(&remote.calls); got != 2 {
		t.Fatalf("expected 2 remote calls, got %d", got)
	}
}

func TestManagerSerialisesTurnsPerSession(t *testing.T) {
	remote := &stubRemote{delay: 20 * time.Millisecond}
	m := newTestManager(t, remote, 100)

	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := m.Turn(Request{SessionID: "shared", Message: "hola"}); err != nil {
				t.Errorf("turn: %v", err)
			}
		}()
	}
	wg.Wait()

	if peak := atomic.LoadInt32(&remote.peak); peak != 1 {
		t.Fatalf("turns of one session overlapped: peak=%d", peak)
	}
	res, err := m.Snapshot(Request{SessionID: "shared"})
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if res.Session.Remaining != 94 || len(res.Session.Transcript) != 12 {
		t.Fatalf("unexpected session after concurrent turns: remaining=%d turns=%d", res.Session.Remaining, len(res.Session.Transcript))
	}
}

func TestManagerResetAndSettings(t *testing.T) {
	m := newTestManager(t, &stubRemote{}, 2)

	res, err := m.ResetQuota(Request{SessionID: "s2"})
	if err != nil {
		t.Fatalf("reset: %v", err)
	}
	if res.Session.Remaining != 5 {
		t.Fatalf("expected reset quota 5, got %d", res.Session.Remaining)
	}

	off := false
	res, err = m.UpdateSettings(Request{SessionID: "s2", Language: "en", UseAPI: &off})
	if err != nil {
		t.Fatalf("settings: %v", err)
	}
	if res.Session.Enabled || res.Session.Language != models.LanguageEN {
		t.Fatalf("settings not applied: %+v", res.Session)
	}

	turn, err := m.Turn(Request{SessionID: "s2", Message: "hello"})
	if err != nil {
		t.Fatalf("turn: %v", err)
	}
	if turn.Reply.Source != broker.SourceCanned || turn.Session.Remaining != 5 {
		t.Fatalf("disabled remote should keep quota: %+v", turn)
	}
}

func TestManagerPurgeForgetsSession(t *testing.T) {
	m := newTestManager(t, &stubRemote{}, 2)

	if _, err := m.Turn(Request{SessionID: "s3", Message: "hola"}); err != nil {
		t.Fatalf("turn: %v", err)
	}
	if m.state.get("s3") == nil {
		t.Fatalf("session should be cached after a turn")
	}
	m.Purge("s3")
	if m.state.get("s3") != nil {
		t.Fatalf("purge left the session cached")
	}
	res, err := m.Snapshot(Request{SessionID: "s3"})
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if res.Session.Remaining != 2 || len(res.Session.Transcript) != 0 {
		t.Fatalf("purged session should start fresh: %+v", res.Session)
	}
}

func TestManagerRequiresSessionID(t *testing.T) {
	m := newTestManager(t, nil, 2)
	if _, err := m.Turn(Request{Message: "hi"}); err == nil {
		t.Fatalf("expected error without session id")
	}
}

func TestManagerHonoursCancelledContext(t *testing.T) {
	m := newTestManager(t, &stubRemote{}, 2)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := m.Turn(Request{Context: ctx, SessionID: "s4", Message: "hi"})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context cancelled, got %v", err)
	}
}

func TestManagerSkipsTurnCancelledWhileLoading(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	remote := &stubRemote{onCheck: cancel}
	m := newTestManager(t, remote, 2)

	_, err := m.Turn(Request{Context: ctx, SessionID: "s5", Message: "hi"})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context cancelled, got %v", err)
	}

	res, err := m.Snapshot(Request{SessionID: "s5"})
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if len(res.Session.Transcript) != 0 || res.Session.Remaining != 2 {
		t.Fatalf("cancelled turn must not touch the session: %+v", res.Session)
	}
	if got := atomic.LoadInt32(&remote.calls); got != 0 {
		t.Fatalf("expected no remote calls, got %d", got)
	}
}

func TestDispatcherOneJobPerSession(t *testing.T) {
	d := newDispatcher(8)
	d.enqueueJob(Job{Type: Turn, SessionID: "a"})
	d.enqueueJob(Job{Type: Reset, SessionID: "a"})
	d.enqueueJob(Job{Type: Turn, SessionID: "b"})

	job, ok := d.next()
	if !ok || job.SessionID != "a" || job.Type != Turn {
		t.Fatalf("expected first job of a, got %+v", job)
	}
	job, ok = d.next()
	if !ok || job.SessionID != "b" {
		t.Fatalf("expected b while a is running, got %+v", job)
	}
	if _, ok := d.next(); ok {
		t.Fatalf("a must not run twice concurrently")
	}

	d.finish("a")
	job, ok = d.next()
	if !ok || job.SessionID != "a" || job.Type != Reset {
		t.Fatalf("expected queued reset of a, got %+v", job)
	}
	d.finish("a")
	d.finish("b")
	if len(d.queues) != 0 || d.ready.Len() != 0 {
		t.Fatalf("queues not drained: %d sessions, %d ready", len(d.queues), d.ready.Len())
	}
}

func TestDispatcherRoundRobinAcrossSessions(t *testing.T) {
	d := newDispatcher(8)
	d.enqueueJob(Job{SessionID: "a"})
	d.enqueueJob(Job{SessionID: "a"})
	d.enqueueJob(Job{SessionID: "b"})

	first, _ := d.next()
	d.finish(first.SessionID)
	second, _ := d.next()
	if first.SessionID != "a" || second.SessionID != "b" {
		t.Fatalf("expected a then b, got %s then %s", first.SessionID, second.SessionID)
	}
}

func TestDispatcherCancelSession(t *testing.T) {
	d := newDispatcher(8)
	d.enqueueJob(Job{SessionID: "a"})
	d.enqueueJob(Job{SessionID: "a"})
	if dropped := d.CancelSession("a"); len(dropped) != 2 {
		t.Fatalf("expected 2 dropped jobs, got %d", len(dropped))
	}
	if _, ok := d.next(); ok {
		t.Fatalf("cancelled session still scheduled")
	}
}

func TestDispatcherSubmitBusy(t *testing.T) {
	d := newDispatcher(1)
	if err := d.Submit(Job{SessionID: "a"}); err != nil {
		t.Fatalf("first submit: %v", err)
	}
	if err := d.Submit(Job{SessionID: "a"}); !errors.Is(err, ErrDispatcherBusy) {
		t.Fatalf("expected ErrDispatcherBusy, got %v", err)
	}
}

func TestSessionStorePruneIdle(t *testing.T) {
	store := newSessionStore()
	store.put(broker.RestoreSession(models.ChatSession{ID: "old", Language: models.LanguageES}))
	store.put(broker.RestoreSession(models.ChatSession{ID: "new", Language: models.LanguageES}))
	store.sessions["old"].lastSeen = time.Now().Add(-3 * time.Hour)

	if n := store.pruneIdle(time.Hour); n != 1 {
		t.Fatalf("expected 1 pruned session, got %d", n)
	}
	if store.get("old") != nil || store.get("new") == nil || store.len() != 1 {
		t.Fatalf("prune removed the wrong sessions")
	}
}

func TestJobTypeString(t *testing.T) {
	if Turn.String() != "turn" || Stop.String() != "stop" || JobType(42).String() != "job(42)" {
		t.Fatalf("unexpected job type names")
	}
}

func TestPoolStartsMinimumWorkers(t *testing.T) {
	m := newTestManager(t, &stubRemote{}, 2)
	running, idle := m.dispatcher.pool.size()
	if running != 2 {
		t.Fatalf("expected 2 running workers, got %d", running)
	}
	if idle > running {
		t.Fatalf("idle workers exceed running: %d > %d", idle, running)
	}
}
