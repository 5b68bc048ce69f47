package interchange

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
	"vitalbridge.dev/telemetry-service/pkg/common"
	"vitalbridge.dev/telemetry-service/pkg/models"
)

const queueDepth = 256

type jobKind int

const (
	jobReading jobKind = iota
	jobAlert
)

type job struct {
	kind    jobKind
	reading *models.Reading
	alert   *models.Alert
}

// Forwarder mirrors readings and alerts to the external clinical-interchange
// sink. Delivery is at-most-once and fully decoupled from ingestion: enqueue
// never blocks, and a failing sink only produces log lines.
type Forwarder struct {
	client  *resty.Client
	baseURL string

	queue   chan job
	dropped atomic.Uint64
	wg      sync.WaitGroup
	once    sync.Once
}

func New(baseURL, apiKey string) *Forwarder {
	client := resty.New().
		SetTimeout(15 * time.Second).
		SetHeader("Content-Type", "application/json")
	if apiKey != "" {
		client.SetAuthToken(apiKey)
	}

	f := &Forwarder{
		client:  client,
		baseURL: baseURL,
		queue:   make(chan job, queueDepth),
	}
	f.wg.Add(1)
	go f.worker()
	return f
}

func (f *Forwarder) EnqueueReading(r *models.Reading) {
	f.enqueue(job{kind: jobReading, reading: r})
}

func (f *Forwarder) EnqueueAlert(a *models.Alert) {
	f.enqueue(job{kind: jobAlert, alert: a})
}

func (f *Forwarder) enqueue(j job) {
	select {
	case f.queue <- j:
	default:
		n := f.dropped.Add(1)
		f.logger().Warn("Interchange queue full, dropping",
			zap.Uint64("dropped_total", n))
	}
}

// Dropped reports how many items were lost to a full queue.
func (f *Forwarder) Dropped() uint64 { return f.dropped.Load() }

// Close stops the worker after the queued items are attempted.
func (f *Forwarder) Close() {
	f.once.Do(func() { close(f.queue) })
	f.wg.Wait()
}

func (f *Forwarder) logger() *zap.Logger {
	return common.GetLoggerWith(
		common.LoggerNameInterchange,
		zap.String(common.LoggerFieldCategory, common.LoggerCategoryForward),
	)
}

func (f *Forwarder) worker() {
	defer f.wg.Done()
	logger := f.logger()

	for j := range f.queue {
		var err error
		switch j.kind {
		case jobReading:
			err = f.postResource("/Observation", ObservationResource(j.reading))
		case jobAlert:
			err = f.postResource("/Flag", FlagResource(j.alert))
		}
		if err != nil {
			logger.Warn("Interchange delivery failed",
				zap.Error(common.NewExternalServiceError("interchange", err)))
		}
	}
}

func (f *Forwarder) postResource(path string, body any) error {
	resp, err := f.client.R().SetBody(body).Post(f.baseURL + path)
	if err != nil {
		return err
	}
	if resp.IsError() {
		return common.NewExternalServiceError("interchange",
			&statusError{code: resp.StatusCode()})
	}
	return nil
}

type statusError struct {
	code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("interchange sink returned status %d", e.code)
}
