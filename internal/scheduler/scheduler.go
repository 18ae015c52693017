package scheduler

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/fentz26/cbclipper/internal/store"
	"github.com/robfig/cron/v3"
)

// Handler receives a fired alarm. It reports whether the token belonged to
// the current run.
type Handler func(ctx context.Context, token string) (bool, error)

// Scheduler keeps one pending alarm. The alarm row in the store is the
// source of truth so a pending alarm survives a daemon restart; an
// in-memory timer fires it on time and a cron sweep catches anything the
// timer missed.
type Scheduler struct {
	store   *store.Store
	config  *Config
	handler Handler
	cron    *cron.Cron

	mu      sync.Mutex
	timer   *time.Timer
	stopped bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	now func() time.Time
}

// New creates a new scheduler.
func New(s *store.Store, cfg *Config) *Scheduler {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		store:  s,
		config: cfg,
		cron:   cron.New(),
		ctx:    ctx,
		cancel: cancel,
		now:    time.Now,
	}
}

// Start reloads any pending alarm and begins the backstop sweep. Alarms that
// came due while the daemon was down fire on the first sweep.
func (sch *Scheduler) Start(h Handler) error {
	sch.handler = h

	pending, err := sch.store.GetAlarm(sch.ctx, sch.config.AlarmName)
	if err != nil {
		return fmt.Errorf("reload alarm: %w", err)
	}
	if pending != nil {
		log.Printf("Reloaded alarm %s due %s", pending.Token, pending.FireAt.Format(time.RFC3339))
		sch.schedule(pending.FireAt, pending.Token)
	}

	if _, err := sch.cron.AddFunc(sch.config.sweepSpec(), sch.Sweep); err != nil {
		return fmt.Errorf("add sweep: %w", err)
	}
	sch.cron.Start()
	log.Println("Scheduler started")
	return nil
}

// Stop halts the sweep and the in-memory timer. The pending alarm row is
// kept for the next start.
func (sch *Scheduler) Stop() {
	sch.cancel()
	<-sch.cron.Stop().Done()

	sch.mu.Lock()
	sch.stopped = true
	if sch.timer != nil {
		sch.timer.Stop()
		sch.timer = nil
	}
	sch.mu.Unlock()

	sch.wg.Wait()
	log.Println("Scheduler stopped")
}

// Arm schedules the completion for fireAt, replacing any pending alarm.
func (sch *Scheduler) Arm(ctx context.Context, fireAt time.Time, token string) error {
	if err := sch.store.ArmAlarm(ctx, sch.config.AlarmName, token, fireAt); err != nil {
		return err
	}
	sch.schedule(fireAt, token)
	return nil
}

// Cancel clears the pending alarm. Cancelling with nothing pending is a no-op.
func (sch *Scheduler) Cancel(ctx context.Context) error {
	sch.mu.Lock()
	if sch.timer != nil {
		sch.timer.Stop()
		sch.timer = nil
	}
	sch.mu.Unlock()

	return sch.store.ClearAlarm(ctx, sch.config.AlarmName)
}

// Pending returns the pending alarm, or nil.
func (sch *Scheduler) Pending(ctx context.Context) (*store.Alarm, error) {
	return sch.store.GetAlarm(ctx, sch.config.AlarmName)
}

// Sweep fires every alarm that is already due.
func (sch *Scheduler) Sweep() {
	due, err := sch.store.DueAlarms(sch.ctx, sch.now())
	if err != nil {
		log.Printf("Error sweeping alarms: %v", err)
		return
	}
	for _, a := range due {
		if a.Name != sch.config.AlarmName {
			continue
		}
		sch.fire(a.Token)
	}
}

func (sch *Scheduler) schedule(fireAt time.Time, token string) {
	delay := fireAt.Sub(sch.now())
	if delay < 0 {
		delay = 0
	}

	sch.mu.Lock()
	defer sch.mu.Unlock()
	if sch.timer != nil {
		sch.timer.Stop()
	}
	sch.timer = time.AfterFunc(delay, func() {
		sch.fire(token)
	})
}

// fire claims the alarm row and hands the token to the handler. Claiming
// deletes the row only if it still carries token, so the timer and the sweep
// cannot both deliver one arming. A delivery the handler could not apply is
// put back as due so the next sweep retries it.
func (sch *Scheduler) fire(token string) {
	sch.mu.Lock()
	if sch.stopped || sch.ctx.Err() != nil || sch.handler == nil {
		sch.mu.Unlock()
		return
	}
	sch.wg.Add(1)
	sch.mu.Unlock()
	defer sch.wg.Done()

	claimed, err := sch.store.ClaimAlarm(sch.ctx, sch.config.AlarmName, token)
	if err != nil {
		log.Printf("Error claiming alarm %s: %v", token, err)
		return
	}
	if !claimed {
		return
	}

	current, err := sch.handler(sch.ctx, token)
	if err != nil {
		log.Printf("Error completing timer: %v", err)
		if !current {
			sch.requeue(token)
		}
		return
	}
	if current {
		log.Printf("Alarm %s fired", token)
	}
}

func (sch *Scheduler) requeue(token string) {
	if sch.ctx.Err() != nil {
		return
	}
	restored, err := sch.store.RestoreAlarm(sch.ctx, sch.config.AlarmName, token, sch.now())
	if err != nil {
		log.Printf("Error requeueing alarm %s: %v", token, err)
		return
	}
	if restored {
		log.Printf("Alarm %s requeued for the next sweep", token)
	}
}
