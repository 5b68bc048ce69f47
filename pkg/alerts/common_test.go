package alerts

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
	"vitalbridge.dev/telemetry-service/pkg/db"
	"vitalbridge.dev/telemetry-service/pkg/models"
)

func newTestEngine(t *testing.T) *Engine {
	dbInstance, err := db.New(db.UseMemorySqliteDialector())
	require.NoError(t, err)
	return New(dbInstance)
}

// fakeNotifier records dispatched alerts and can be told to fail.
type fakeNotifier struct {
	sent []string
	err  error
}

func (n *fakeNotifier) SendCriticalAlert(ctx context.Context, a *models.Alert) ([]string, error) {
	if n.err != nil {
		return nil, n.err
	}
	n.sent = append(n.sent, a.ID)
	return []string{"sms", "push"}, nil
}

// fakePublisher records fanned-out alerts.
type fakePublisher struct {
	published []*models.Alert
}

func (p *fakePublisher) PublishAlert(a *models.Alert) {
	p.published = append(p.published, a)
}

// fakeForwarder records enqueued alerts.
type fakeForwarder struct {
	enqueued []*models.Alert
}

func (f *fakeForwarder) EnqueueAlert(a *models.Alert) {
	f.enqueued = append(f.enqueued, a)
}

func ParseLogs(r io.Reader) []any {
	scanner := bufio.NewScanner(r)
	var logs []any

	for scanner.Scan() {
		line := scanner.Text()
		var j any
		if err := json.Unmarshal([]byte(line), &j); err == nil {
			logs = append(logs, j)
		}
	}
	return logs
}
