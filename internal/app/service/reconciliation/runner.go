package reconciliation

import (
	"context"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/austa/payments/pkg/config"
)

// Runner drives reconciliation on its configured cadence, decoupled from
// request handling.
type Runner struct {
	cfg *config.Config
	log *zap.SugaredLogger
	svc *Service

	stop chan struct{}
	done chan struct{}
}

func NewRunner(lc fx.Lifecycle, cfg *config.Config, log *zap.SugaredLogger, svc *Service) *Runner {
	r := &Runner{
		cfg:  cfg,
		log:  log,
		svc:  svc,
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go r.run()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			close(r.stop)
			select {
			case <-r.done:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		},
	})
	return r
}

func (r *Runner) run() {
	defer close(r.done)
	interval := r.cfg.Payments.ReconciliationInterval()
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-r.stop:
			return
		case <-ticker.C:
			if _, err := r.svc.Run(context.Background(), time.Now()); err != nil {
				r.log.Errorw("reconciliation_run_failed", "err", err)
			}
		}
	}
}
