package payment

import (
	"context"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/austa/payments/internal/models"
	"github.com/austa/payments/pkg/config"
	"github.com/austa/payments/pkg/metrics"
	"github.com/austa/payments/pkg/types"
)

// Sweeper demotes PENDING PIX and boleto payments whose artifact expired.
// Each demotion re-reads the status under the row lock, so a settlement
// webhook racing the sweep wins cleanly.
type Sweeper struct {
	cfg     *config.Config
	log     *zap.SugaredLogger
	db      *gorm.DB
	svc     *Service
	metrics *metrics.Domain

	stop chan struct{}
	done chan struct{}
}

func NewSweeper(lc fx.Lifecycle, cfg *config.Config, log *zap.SugaredLogger, db *gorm.DB, svc *Service, m *metrics.Domain) *Sweeper {
	s := &Sweeper{
		cfg:     cfg,
		log:     log,
		db:      db,
		svc:     svc,
		metrics: m,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go s.run()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			close(s.stop)
			select {
			case <-s.done:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		},
	})
	return s
}

func (s *Sweeper) run() {
	defer close(s.done)
	interval := s.cfg.Payments.ExpirySweepInterval()
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.Sweep(context.Background(), time.Now())
		}
	}
}

// Sweep runs one pass and returns how many payments it expired.
func (s *Sweeper) Sweep(ctx context.Context, now time.Time) int {
	var ids []string
	err := s.db.WithContext(ctx).Model(&models.Payment{}).
		Where("status = ?", types.PaymentStatusPending).
		Where(
			s.db.Where("method = ? AND pix_expiration < ?", types.PaymentMethodPix, now).
				Or("method = ? AND boleto_due_date < ?", types.PaymentMethodBoleto, now),
		).
		Pluck("id", &ids).Error
	if err != nil {
		s.log.Errorw("expiry_sweep_query_failed", "err", err)
		return 0
	}

	expired := 0
	for _, id := range ids {
		_, changed, err := s.svc.ApplyEvent(ctx, id, Event{Type: EventExpired, Source: "sweeper"})
		if err != nil {
			s.log.Errorw("expiry_sweep_apply_failed", "payment_id", id, "err", err)
			continue
		}
		if changed {
			expired++
			s.metrics.ExpiredPayments.Inc()
		}
	}
	if expired > 0 {
		s.log.Infow("expiry_sweep_done", "candidates", len(ids), "expired", expired)
	}
	return expired
}
