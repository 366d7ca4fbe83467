package credit

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/warp/solar-credits/calendar"
	"github.com/warp/solar-credits/metrics"
)

// Option configures Periods, Engine and Finalizer.
type Option func(*deps)

// WithAuthorizer replaces the default AllowAll.
func WithAuthorizer(a Authorizer) Option {
	return func(d *deps) {
		if a != nil {
			d.authz = a
		}
	}
}

// WithClock sets the clock used for claim dates.
func WithClock(c calendar.Clock) Option {
	return func(d *deps) {
		if c != nil {
			d.clock = c
		}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(d *deps) {
		if l != nil {
			d.logger = l
		}
	}
}

// deps is shared by the three services.
type deps struct {
	authz  Authorizer
	clock  calendar.Clock
	logger *zap.Logger
}

func newDeps(opts []Option) deps {
	d := deps{
		authz:  AllowAll{},
		clock:  calendar.SystemClock{},
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(&d)
	}
	return d
}

func (d deps) authorize(ctx context.Context, caller Caller, action Action, period PeriodID, owner OwnerID) error {
	return d.authz.Authorize(ctx, caller, action, period, owner)
}

// done records the outcome of op and logs rejections at debug level.
func (d deps) done(op string, start time.Time, err error, fields ...zap.Field) {
	metrics.ObserveOperation(op, resultLabel(err), start)
	if err != nil {
		d.logger.Debug(op+" rejected", append(fields, zap.Error(err))...)
	}
}
