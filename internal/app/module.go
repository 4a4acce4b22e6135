package app

import (
	"time"

	"go.uber.org/fx"

	"github.com/austa/payments/internal/app/api/server"
	paymentsvc "github.com/austa/payments/internal/app/service/payment"
	reconsvc "github.com/austa/payments/internal/app/service/reconciliation"
	refundsvc "github.com/austa/payments/internal/app/service/refund"
	webhooksvc "github.com/austa/payments/internal/app/service/webhook"
	"github.com/austa/payments/internal/gateway"
	"github.com/austa/payments/internal/platform/db"
	"github.com/austa/payments/pkg/config"
	"github.com/austa/payments/pkg/logger"
	"github.com/austa/payments/pkg/metrics"
)

const (
	DefaultStartTimeout = 15 * time.Second
	DefaultStopTimeout  = 10 * time.Second
)

var Module = fx.Options(
	logger.Module,
	config.Module,
	db.Module,
	metrics.Module,
	gateway.Module,
	server.Module,
	paymentsvc.Module,
	refundsvc.Module,
	webhooksvc.Module,
	reconsvc.Module,
	// Nothing injects the background loops; force their construction.
	fx.Invoke(func(*paymentsvc.Sweeper) {}),
	fx.Invoke(func(*reconsvc.Runner) {}),
)
