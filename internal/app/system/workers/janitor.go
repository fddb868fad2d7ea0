package workers

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// Sweeper drops entries idle for longer than the given duration and reports
// how many it removed. ratelimit.Limiter implements it.
type Sweeper interface {
	Sweep(idle time.Duration) int
}

// Janitor periodically sweeps in-memory rate limit buckets so keys that
// stopped sending (closed connections, one-off login emails) do not
// accumulate.
type Janitor struct {
	sweepers map[string]Sweeper
	log      *zap.Logger
	interval time.Duration
	idle     time.Duration
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewJanitor creates a janitor that runs every interval and removes entries
// unused for idle.
func NewJanitor(sweepers map[string]Sweeper, logger *zap.Logger, interval, idle time.Duration) *Janitor {
	return &Janitor{
		sweepers: sweepers,
		log:      logger,
		interval: interval,
		idle:     idle,
		stopCh:   make(chan struct{}),
	}
}

// Start begins the background loop.
func (j *Janitor) Start() {
	j.wg.Add(1)
	go j.run()
	j.log.Info("janitor started",
		zap.Duration("interval", j.interval),
		zap.Duration("idle", j.idle))
}

// Stop signals the loop to exit and waits for it. Safe to call more than once.
func (j *Janitor) Stop() {
	j.stopOnce.Do(func() { close(j.stopCh) })
	j.wg.Wait()
	j.log.Info("janitor stopped")
}

func (j *Janitor) run() {
	defer j.wg.Done()

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-j.stopCh:
			return
		case <-ticker.C:
			j.Sweep()
		}
	}
}

// Sweep runs one pass over every sweeper and returns the total removed.
func (j *Janitor) Sweep() int {
	total := 0
	for name, s := range j.sweepers {
		if n := s.Sweep(j.idle); n > 0 {
			j.log.Debug("swept idle entries", zap.String("sweeper", name), zap.Int("count", n))
			total += n
		}
	}
	return total
}
