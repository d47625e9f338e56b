package worker

import (
	"container/list"
	"errors"
	"sync"
	"time"
)

// ErrDispatcherBusy is returned when the inbound job queue is full.
var ErrDispatcherBusy = errors.New("dispatcher busy")

type sessionQueue struct {
	jobs     []Job
	enqueued bool // is in the ready list
	running  bool // one job of this session is on a worker
}

// Dispatcher hands jobs to pooled workers, one in-flight job per chat session.
// Sessions with pending jobs take turns in LRU order so a busy session cannot starve others.
type Dispatcher struct {
	pool     *jobChannelPool
	JobQueue chan Job // interface for outer jobs get in the dispatcher

	mu        sync.Mutex
	queues    map[string]*sessionQueue
	ready     *list.List // LRU queue storing session IDs
	positions map[string]*list.Element

	wake chan struct{}
	quit chan struct{}
	once sync.Once
}

func NewDispatcher(minWorkers, maxWorkers, queueSize int, manager *Manager, idleTimeout time.Duration) *Dispatcher {
	d := newDispatcher(queueSize)
	d.pool = newJobChannelPool(minWorkers, maxWorkers, idleTimeout, manager)

	for i := 0; i < minWorkers; i++ {
		d.pool.spawnWorker()
	}

	go d.run()
	return d
}

func newDispatcher(queueSize int) *Dispatcher {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	return &Dispatcher{
		JobQueue:  make(chan Job, queueSize),
		queues:    make(map[string]*sessionQueue),
		ready:     list.New(),
		positions: make(map[string]*list.Element),
		wake:      make(chan struct{}, 1),
		quit:      make(chan struct{}),
	}
}

// Submit queues a job without blocking.
func (d *Dispatcher) Submit(job Job) error {
	select {
	case d.JobQueue <- job:
		return nil
	default:
		return ErrDispatcherBusy
	}
}

// Stop ends the run loop and the pool janitor. Queued jobs are dropped.
func (d *Dispatcher) Stop() {
	d.once.Do(func() {
		close(d.quit)
		if d.pool != nil {
			d.pool.stop()
		}
	})
}

func (d *Dispatcher) run() {
	for {
		if !d.dispatchOne() {
			select {
			case job := <-d.JobQueue: // force congestion
				d.enqueueJob(job)
			case <-d.wake:
			case <-d.quit:
				return
			}
			continue
		}
		select {
		case job := <-d.JobQueue: // non-congestion
			d.enqueueJob(job)
		case <-d.quit:
			return
		default:
		}
	}
}

// CancelSession drops the jobs of a session that have not started yet.
func (d *Dispatcher) CancelSession(sessionID string) []Job {
	d.mu.Lock()
	defer d.mu.Unlock()

	q := d.queues[sessionID]
	if q == nil {
		return nil
	}
	dropped := q.jobs
	q.jobs = nil
	if elem, ok := d.positions[sessionID]; ok {
		d.ready.Remove(elem)
		delete(d.positions, sessionID)
	}
	q.enqueued = false
	if !q.running {
		delete(d.queues, sessionID)
	}
	return dropped
}

func (d *Dispatcher) enqueueJob(job Job) {
	sessionID := job.SessionID

	d.mu.Lock()
	defer d.mu.Unlock()

	q := d.queues[sessionID]
	if q == nil {
		q = &sessionQueue{}
		d.queues[sessionID] = q
	}
	q.jobs = append(q.jobs, job)
	if q.enqueued || q.running {
		// finish puts a running session back in line
		return
	}
	d.pushReadyLocked(sessionID, q)
}

func (d *Dispatcher) pushReadyLocked(sessionID string, q *sessionQueue) {
	q.enqueued = true
	d.positions[sessionID] = d.ready.PushBack(sessionID)
}

// next pops the first job of the least recently served session and marks the session running.
func (d *Dispatcher) next() (Job, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	elem := d.ready.Front()
	if elem == nil {
		return Job{}, false
	}
	sessionID := elem.Value.(string)
	d.ready.Remove(elem)
	delete(d.positions, sessionID)

	q := d.queues[sessionID]
	q.enqueued = false
	job := q.jobs[0]
	q.jobs = q.jobs[1:]
	q.running = true
	return job, true
}

// finish is called by the worker once a job of the session completed.
func (d *Dispatcher) finish(sessionID string) {
	d.mu.Lock()
	q := d.queues[sessionID]
	if q != nil {
		q.running = false
		if len(q.jobs) > 0 {
			d.pushReadyLocked(sessionID, q)
		} else {
			delete(d.queues, sessionID)
		}
	}
	d.mu.Unlock()

	select {
	case d.wake <- struct{}{}:
	default:
	}
}

// dispatchOne get first session in LRU and dispatch its job
func (d *Dispatcher) dispatchOne() bool {
	job, ok := d.next()
	if !ok {
		return false
	}
	workerChan := d.pool.acquire()
	debugLog("[dispatcher] assign job %s for session %s to worker-%d", job.Type, job.SessionID, d.pool.workerID(workerChan))
	workerChan <- job
	return true
}
