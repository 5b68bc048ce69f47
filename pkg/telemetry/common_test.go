package telemetry

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"vitalbridge.dev/telemetry-service/pkg/db"
	"vitalbridge.dev/telemetry-service/pkg/registry"
	"vitalbridge.dev/telemetry-service/pkg/telemetry/mocks"
)

func GetMockCoreWithMemorySqliteDialector(t *testing.T, useMockEvaluator, useMockForwarder, useMockPublisher bool) (
	*gomock.Controller,
	*Core,
	*mocks.MockIEvaluator,
	*mocks.MockIForwarder,
	*mocks.MockIPublisher,
) {
	ctrl := gomock.NewController(t)

	mockEvaluator := mocks.NewMockIEvaluator(ctrl)
	mockForwarder := mocks.NewMockIForwarder(ctrl)
	mockPublisher := mocks.NewMockIPublisher(ctrl)

	dbInstance, err := db.New(db.UseMemorySqliteDialector())
	require.NoError(t, err)
	core := NewCore(dbInstance, registry.New(dbInstance))
	t.Cleanup(core.Close)

	opts := ServiceOpts{}
	if useMockEvaluator {
		opts.Evaluator = mockEvaluator
	}
	if useMockForwarder {
		opts.Forwarder = mockForwarder
	}
	if useMockPublisher {
		opts.Publisher = mockPublisher
	}
	core.WithServices(opts)

	return ctrl, core, mockEvaluator, mockForwarder, mockPublisher
}
