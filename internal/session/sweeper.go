package session

import (
	"log"
	"time"

	"accidentbot/internal/metrics"

	"github.com/robfig/cron/v3"
)

// Sweep evicts sessions idle for longer than ttl. ttl <= 0 is a no-op.
func (m *Manager) Sweep(ttl time.Duration) int {
	if ttl <= 0 {
		return 0
	}
	return m.Evict(m.now().Add(-ttl))
}

// StartSweeper runs Sweep on the given cron schedule. It returns nil when
// eviction is disabled; otherwise the caller stops the returned scheduler.
func StartSweeper(m *Manager, schedule string, ttl time.Duration, loc *time.Location, met *metrics.Metrics) (*cron.Cron, error) {
	if ttl <= 0 {
		log.Println("Session sweeper disabled (session_ttl_minutes = 0)")
		return nil, nil
	}
	if loc == nil {
		loc = time.UTC
	}
	c := cron.New(cron.WithLocation(loc))
	_, err := c.AddFunc(schedule, func() {
		n := m.Sweep(ttl)
		met.RecordEvictions(n)
		if n > 0 {
			log.Printf("session sweep evicted=%d remaining=%d ttl=%s", n, m.Len(), ttl)
		}
	})
	if err != nil {
		return nil, err
	}
	c.Start()
	log.Printf("Session sweeper scheduled (cron: %s, ttl: %s)", schedule, ttl)
	return c, nil
}
