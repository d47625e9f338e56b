package worker

type Worker struct {
	id         int
	manager    *Manager
	pool       *jobChannelPool
	jobChannel chan Job
}

func NewWorker(id int, pool *jobChannelPool, manager *Manager) *Worker {
	return &Worker{
		id:         id,
		manager:    manager,
		pool:       pool,
		jobChannel: make(chan Job),
	}
}

func (w *Worker) Start() {
	go func() {
		for job := range w.jobChannel {
			if job.Type == Stop {
				debugLog("[worker-%d] stop", w.id)
				w.pool.retire(w.jobChannel)
				return
			}
			w.manager.process(job)
			w.pool.Release(w.jobChannel)
		}
	}()
}
