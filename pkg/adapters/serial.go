package adapters

import (
	"bufio"
	"context"
	"io"
	"sync/atomic"

	"go.uber.org/zap"
	"vitalbridge.dev/telemetry-service/pkg/common"
	"vitalbridge.dev/telemetry-service/pkg/models"
)

// FrameDecoder turns one raw serial frame into a canonical reading.
// Byte-level frame formats are device-specific and supplied by the caller.
type FrameDecoder func(deviceID string, frame []byte) (*models.Reading, error)

// PortOpener opens the underlying serial port. Injected so the adapter can be
// driven by any stream in tests and any driver in production.
type PortOpener func() (io.ReadWriteCloser, error)

// SerialAdapter reads newline-delimited frames from a serial port on behalf
// of one device.
type SerialAdapter struct {
	DeviceID string
	Open     PortOpener
	Decode   FrameDecoder

	sink           Sink
	port           io.ReadWriteCloser
	decodeFailures atomic.Uint64
}

func NewSerialAdapter(deviceID string, open PortOpener, decode FrameDecoder, sink Sink) *SerialAdapter {
	return &SerialAdapter{
		DeviceID: deviceID,
		Open:     open,
		Decode:   decode,
		sink:     sink,
	}
}

func (a *SerialAdapter) Name() string { return "serial:" + a.DeviceID }

func (a *SerialAdapter) DecodeFailures() uint64 { return a.decodeFailures.Load() }

func (a *SerialAdapter) Connect(ctx context.Context) error {
	port, err := a.Open()
	if err != nil {
		return err
	}
	a.port = port
	return nil
}

func (a *SerialAdapter) Serve(ctx context.Context) error {
	logger := common.GetLoggerWith(
		common.LoggerNameAdapter,
		zap.String("adapter", a.Name()),
		zap.String(common.LoggerFieldCategory, common.LoggerCategoryDecode),
	)

	// Closing the port on cancellation unblocks the scanner read.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			if a.port != nil {
				a.port.Close()
			}
		case <-done:
		}
	}()

	scanner := bufio.NewScanner(a.port)
	for scanner.Scan() {
		frame := scanner.Bytes()
		if len(frame) == 0 {
			continue
		}
		reading, err := a.Decode(a.DeviceID, frame)
		if err != nil {
			a.decodeFailures.Add(1)
			logger.Warn("Frame decode failed",
				zap.String("device_id", a.DeviceID),
				zap.Uint64("decode_failures", a.decodeFailures.Load()),
				zap.Error(err))
			continue
		}
		if _, err := a.sink.Ingest(context.Background(), reading); err != nil {
			logger.Warn("Serial reading rejected",
				zap.String("device_id", a.DeviceID),
				zap.Error(err))
		}
	}

	if ctx.Err() != nil {
		return nil
	}
	return scanner.Err()
}

func (a *SerialAdapter) Disconnect() error {
	if a.port != nil {
		err := a.port.Close()
		a.port = nil
		return err
	}
	return nil
}
