package support

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/miyannishar/creators-nepal-v2/internal/storage"
	"github.com/miyannishar/creators-nepal-v2/internal/system"
	"github.com/miyannishar/creators-nepal-v2/pkg/logger"
)

var _ system.Service = (*Rollup)(nil)

// Rollup periodically expires lapsed subscriptions and reconciles each
// creator's earnings counter against the sum of their completed
// transactions. The counter is adjusted incrementally on settlement; the
// rollup heals any drift.
type Rollup struct {
	store    storage.SupportStore
	creators storage.CreatorStore
	log      *logger.Logger
	schedule cron.Schedule

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

// NewRollup creates a lifecycle-managed rollup runner. spec is a cron
// expression; an empty or invalid one falls back to hourly.
func NewRollup(store storage.SupportStore, creators storage.CreatorStore, spec string, log *logger.Logger) *Rollup {
	if log == nil {
		log = logger.NewDefault("support-rollup")
	}
	if spec == "" {
		spec = "@hourly"
	}
	schedule, err := cron.ParseStandard(spec)
	if err != nil {
		log.WithError(err).WithField("spec", spec).Warn("invalid rollup schedule, using hourly")
		schedule, _ = cron.ParseStandard("@hourly")
	}
	return &Rollup{
		store:    store,
		creators: creators,
		log:      log,
		schedule: schedule,
	}
}

func (r *Rollup) Name() string { return "support-rollup" }

func (r *Rollup) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return nil
	}
	runCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.running = true
	r.mu.Unlock()

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		for {
			next := r.schedule.Next(time.Now())
			timer := time.NewTimer(time.Until(next))
			select {
			case <-runCtx.Done():
				timer.Stop()
				return
			case <-timer.C:
				r.tick(runCtx)
			}
		}
	}()

	r.log.Info("support rollup started")
	return nil
}

func (r *Rollup) Stop(ctx context.Context) error {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return nil
	}
	cancel := r.cancel
	r.running = false
	r.cancel = nil
	r.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		r.wg.Wait()
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	r.log.Info("support rollup stopped")
	return nil
}

func (r *Rollup) tick(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()

	expired, err := r.store.ExpireLapsed(ctx, time.Now().UTC())
	if err != nil {
		r.log.WithError(err).Warn("expire lapsed subscriptions failed")
	} else if expired > 0 {
		r.log.WithField("count", expired).Info("subscriptions expired")
	}

	r.reconcile(ctx)
}

// Reconcile recomputes every earning counter from completed transactions.
// Exposed so the cleanup tooling and tests can trigger a pass directly.
func (r *Rollup) Reconcile(ctx context.Context) {
	r.reconcile(ctx)
}

func (r *Rollup) reconcile(ctx context.Context) {
	creatorIDs, err := r.store.ListCreatorIDsWithCompleted(ctx)
	if err != nil {
		r.log.WithError(err).Warn("list creators for rollup failed")
		return
	}

	for _, creatorID := range creatorIDs {
		monthly, err := r.store.SumCompletedByCreator(ctx, creatorID, time.Time{})
		if err != nil {
			r.log.WithError(err).
				WithField("creator_id", creatorID).
				Warn("sum completed transactions failed")
			continue
		}
		var total int64
		for _, amount := range monthly {
			total += amount
		}
		if err := r.creators.SetEarnings(ctx, creatorID, total); err != nil {
			r.log.WithError(err).
				WithField("creator_id", creatorID).
				Warn("set earnings failed")
		}
	}
}
