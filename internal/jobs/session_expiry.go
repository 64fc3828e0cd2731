package jobs

import (
	"context"
	"log"
	"time"
)

// StaleSessionReaper abandons sessions that outlived their maximum age
type StaleSessionReaper interface {
	AbandonStale(ctx context.Context, maxAge time.Duration) int
}

// SessionExpiryJob moves interview sessions that were started too long ago
// into the abandoned state. Abandoned sessions stay readable and can still
// be finished; the session store evicts them later on idle expiry.
type SessionExpiryJob struct {
	reaper   StaleSessionReaper
	maxAge   time.Duration
	schedule string
}

// NewSessionExpiryJob creates a new session expiry job
func NewSessionExpiryJob(reaper StaleSessionReaper, maxAge time.Duration, schedule string) *SessionExpiryJob {
	return &SessionExpiryJob{
		reaper:   reaper,
		maxAge:   maxAge,
		schedule: schedule,
	}
}

// Schedule returns the cron expression of the job
func (j *SessionExpiryJob) Schedule() string {
	return j.schedule
}

// Run abandons stale sessions
func (j *SessionExpiryJob) Run(ctx context.Context) error {
	if j.maxAge <= 0 {
		log.Println("[SESSION-EXPIRY] Disabled (no maximum session age configured)")
		return nil
	}

	abandoned := j.reaper.AbandonStale(ctx, j.maxAge)
	if abandoned > 0 {
		log.Printf("[SESSION-EXPIRY] Abandoned %d sessions older than %v", abandoned, j.maxAge)
	}
	return ctx.Err()
}
