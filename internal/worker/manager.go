package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"promptcoach/internal/broker"
	"promptcoach/internal/models"
	"promptcoach/internal/redis"
)

const (
	defaultQueueSize   = 64
	defaultSessionIdle = 2 * time.Hour
)

var errSessionCancelled = errors.New("session cancelled")

type JobType int

const (
	Turn JobType = iota
	Reset
	Settings
	Snapshot
	Stop
)

func (t JobType) String() string {
	switch t {
	case Turn:
		return "turn"
	case Reset:
		return "reset"
	case Settings:
		return "settings"
	case Snapshot:
		return "snapshot"
	case Stop:
		return "stop"
	default:
		return fmt.Sprintf("job(%d)", int(t))
	}
}

// Job is one unit of work for a chat session.
type Job struct {
	Type      JobType
	SessionID string
	task      *sessionTask
}

type sessionTask struct {
	req      Request
	resultCh chan workerReturn
}

type workerReturn struct {
	result Result
	err    error
}

// Request addresses a chat session. Fields that do not apply to a job type are ignored.
type Request struct {
	Context   context.Context
	SessionID string
	// Language switches the session language when it is a supported tag.
	Language   string
	Message    string
	ForceImage bool
	UseAPI     *bool
}

// Result carries the reply of a turn and the session state after the job.
type Result struct {
	Reply   *broker.Reply
	Session models.ChatSession
}

type DispatcherConfig struct {
	MinWorkers  int
	MaxWorkers  int
	QueueSize   int
	WorkerIdle  time.Duration
	SessionIdle time.Duration
}

// Manager serialises the jobs of each chat session onto the worker pool and keeps session state.
type Manager struct {
	broker     *broker.Broker
	dispatcher *Dispatcher
	state      *sessionStore
	cache      *stateRedis
	instance   string
	idle       time.Duration
	log        logrus.FieldLogger
	quit       chan struct{}
}

func NewManager(b *broker.Broker, cfg DispatcherConfig, cacheClient *redis.Client) *Manager {
	if cfg.MinWorkers <= 0 {
		cfg.MinWorkers = 1
	}
	if cfg.MaxWorkers < cfg.MinWorkers {
		cfg.MaxWorkers = cfg.MinWorkers
	}
	if cfg.SessionIdle <= 0 {
		cfg.SessionIdle = defaultSessionIdle
	}
	m := &Manager{
		broker:   b,
		state:    newSessionStore(),
		cache:    newStateCache(cacheClient),
		instance: uuid.NewString(),
		idle:     cfg.SessionIdle,
		log:      logrus.WithField("component", "worker"),
		quit:     make(chan struct{}),
	}
	m.dispatcher = NewDispatcher(cfg.MinWorkers, cfg.MaxWorkers, cfg.QueueSize, m, cfg.WorkerIdle)
	m.cache.startListener(m.handleInvalidation)
	go m.pruneLoop()
	return m
}

// Turn runs one broker turn for the session.
func (m *Manager) Turn(req Request) (Result, error) {
	return m.submit(Turn, req)
}

// ResetQuota restores the session quota to the manual reset value.
func (m *Manager) ResetQuota(req Request) (Result, error) {
	return m.submit(Reset, req)
}

// UpdateSettings applies the use_api toggle and language of the request.
func (m *Manager) UpdateSettings(req Request) (Result, error) {
	return m.submit(Settings, req)
}

// Snapshot returns the session state, creating the session when it does not exist yet.
func (m *Manager) Snapshot(req Request) (Result, error) {
	return m.submit(Snapshot, req)
}

// Purge forgets a session everywhere and fails its queued jobs.
func (m *Manager) Purge(sessionID string) {
	for _, job := range m.dispatcher.CancelSession(sessionID) {
		if job.task != nil {
			job.task.resultCh <- workerReturn{err: errSessionCancelled}
		}
	}
	m.state.drop(sessionID)
	m.cache.invalidateSession(sessionID)
	m.cache.publishInvalidation(invalidateMessage{SessionID: sessionID, Origin: m.instance})
}

// Close stops the dispatcher and background loops.
func (m *Manager) Close() {
	select {
	case <-m.quit:
		return
	default:
		close(m.quit)
	}
	m.dispatcher.Stop()
}

func (m *Manager) submit(jobType JobType, req Request) (Result, error) {
	if req.SessionID == "" {
		return Result{}, errors.New("session id required")
	}
	ctx := req.Context
	if ctx == nil {
		ctx = context.Background()
		req.Context = ctx
	}
	resultCh := make(chan workerReturn, 1)
	job := Job{Type: jobType, SessionID: req.SessionID, task: &sessionTask{req: req, resultCh: resultCh}}
	if err := m.dispatcher.Submit(job); err != nil {
		return Result{}, err
	}
	select {
	case ret := <-resultCh:
		return ret.result, ret.err
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

// process runs on a worker goroutine; the dispatcher guarantees no other job of the session runs meanwhile.
func (m *Manager) process(job Job) {
	defer m.dispatcher.finish(job.SessionID)
	task := job.task
	if task == nil {
		return
	}
	req := task.req
	ctx := req.Context
	if ctx == nil {
		ctx = context.Background()
	}
	if err := ctx.Err(); err != nil {
		task.resultCh <- workerReturn{err: err}
		return
	}

	sess := m.loadSession(ctx, req)
	var res Result
	switch job.Type {
	case Turn:
		// the caller may have gone away while the session was being loaded
		if err := ctx.Err(); err != nil {
			m.state.put(sess)
			task.resultCh <- workerReturn{err: err}
			return
		}
		sess.SetLanguage(req.Language)
		reply := m.broker.HandleTurn(ctx, sess, broker.TurnRequest{Message: req.Message, ForceImage: req.ForceImage})
		res.Reply = &reply
	case Reset:
		m.broker.ResetQuota(sess)
	case Settings:
		sess.SetLanguage(req.Language)
		if req.UseAPI != nil {
			sess.Quota().SetEnabled(*req.UseAPI)
		}
	case Snapshot:
	}

	snap := sess.Snapshot()
	m.state.put(sess)
	if job.Type != Snapshot {
		m.cache.saveSession(snap)
		m.cache.publishInvalidation(invalidateMessage{SessionID: sess.ID, Origin: m.instance})
	}
	debugLog("[manager] %s done for session %s, remaining=%d", job.Type, sess.ID, snap.Remaining)
	res.Session = snap
	task.resultCh <- workerReturn{result: res}
}

// loadSession looks in memory, then redis, and finally starts a new broker session.
func (m *Manager) loadSession(ctx context.Context, req Request) *broker.Session {
	if sess := m.state.get(req.SessionID); sess != nil {
		return sess
	}
	if snap, ok := m.cache.loadSession(req.SessionID); ok {
		return broker.RestoreSession(snap)
	}
	lang, _ := models.ParseLanguage(req.Language)
	sess := m.broker.NewSession(ctx, req.SessionID, lang)
	m.log.WithFields(logrus.Fields{"session": sess.ID, "remote": sess.RemoteAvailable()}).Info("chat session started")
	return sess
}

func (m *Manager) handleInvalidation(msg invalidateMessage) {
	if msg.Origin == m.instance {
		return
	}
	m.state.drop(msg.SessionID)
}

func (m *Manager) pruneLoop() {
	interval := m.idle / 2
	if interval < time.Minute {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if n := m.state.pruneIdle(m.idle); n > 0 {
				m.log.WithField("sessions", n).Info("pruned idle chat sessions")
			}
		case <-m.quit:
			return
		}
	}
}
