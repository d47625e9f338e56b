package broker

// Quota counts the remote dispatches a session may still perform.
// A reservation only checks the gate; the slot is spent by Commit after a successful dispatch.
type Quota struct {
	remaining int
	enabled   bool
}

func NewQuota(remaining int) *Quota {
	if remaining < 0 {
		remaining = 0
	}
	return &Quota{remaining: remaining, enabled: true}
}

// TryReserve reports whether a remote dispatch may be attempted.
func (q *Quota) TryReserve() bool {
	return q.enabled && q.remaining > 0
}

// Commit spends one slot. It never goes below zero.
func (q *Quota) Commit() {
	if q.remaining > 0 {
		q.remaining--
	}
}

func (q *Quota) Reset(value int) {
	if value < 0 {
		value = 0
	}
	q.remaining = value
}

func (q *Quota) Remaining() int {
	return q.remaining
}

func (q *Quota) Enabled() bool {
	return q.enabled
}

func (q *Quota) SetEnabled(enabled bool) {
	q.enabled = enabled
}
