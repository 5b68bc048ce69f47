package telemetry

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"vitalbridge.dev/telemetry-service/pkg/common"
	"vitalbridge.dev/telemetry-service/pkg/db"
	"vitalbridge.dev/telemetry-service/pkg/models"
	"vitalbridge.dev/telemetry-service/pkg/registry"
)

// IEvaluator runs threshold evaluation for a persisted reading.
type IEvaluator interface {
	Evaluate(ctx context.Context, device *models.Device, reading *models.Reading) ([]models.Alert, error)
}

// IForwarder mirrors readings to the external interchange sink. Enqueue never
// blocks.
type IForwarder interface {
	EnqueueReading(r *models.Reading)
}

// IPublisher fans readings out to live observers.
type IPublisher interface {
	PublishReading(r *models.Reading)
}

// Core is the ingestion pipeline aggregate. Evaluation, fan-out, and
// forwarding are invoked as detached tasks whose errors feed a logging-only
// channel, never the ingest caller.
type Core struct {
	Db       *db.DB
	Registry *registry.Registry

	// TenantID, when set, is the tenant every ingested reading's device must
	// belong to.
	TenantID string

	Evaluator IEvaluator
	Forwarder IForwarder
	Publisher IPublisher

	errs     chan error
	inflight sync.WaitGroup
	closed   chan struct{}
	rejected atomicCounter
}

type ServiceOpts struct {
	Evaluator IEvaluator
	Forwarder IForwarder
	Publisher IPublisher
}

func NewCore(database *db.DB, reg *registry.Registry) *Core {
	c := &Core{
		Db:       database,
		Registry: reg,
		errs:     make(chan error, 32),
		closed:   make(chan struct{}),
	}
	go c.drainErrors()
	return c
}

func (c *Core) WithServices(opts ServiceOpts) *Core {
	if opts.Evaluator != nil {
		c.Evaluator = opts.Evaluator
	}
	if opts.Forwarder != nil {
		c.Forwarder = opts.Forwarder
	}
	if opts.Publisher != nil {
		c.Publisher = opts.Publisher
	}
	return c
}

// spawn runs fn detached from the caller; a returned error only feeds the
// logging drain.
func (c *Core) spawn(fn func() error) {
	c.inflight.Add(1)
	go func() {
		defer c.inflight.Done()
		if err := fn(); err != nil {
			select {
			case c.errs <- err:
			default:
				// error channel saturated; drop rather than block
			}
		}
	}()
}

// Drain waits for all in-flight detached tasks. Used by graceful shutdown and
// by tests that need evaluation to have completed.
func (c *Core) Drain() {
	c.inflight.Wait()
}

func (c *Core) Close() {
	c.inflight.Wait()
	close(c.closed)
}

// RejectedCount reports how many readings were rejected for unknown devices.
func (c *Core) RejectedCount() uint64 {
	return c.rejected.Load()
}

func (c *Core) drainErrors() {
	logger := common.GetLoggerWith(
		common.LoggerNameTelemetryCore,
		zap.String(common.LoggerFieldCategory, common.LoggerCategoryBackground),
	)
	for {
		select {
		case err := <-c.errs:
			logger.Warn("Background task failed", zap.Error(err))
		case <-c.closed:
			return
		}
	}
}
