package droidmedia

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
)

// run is the pump goroutine. It exits when the recorder stops or a read fails.
func (r *Recorder) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	r.log.Debug("pump started")
	err := r.pump(ctx)
	if err != nil && !r.running.Load() && errors.Is(err, context.Canceled) {
		// Read aborted by Stop.
		err = nil
	}
	r.setErr(err)
	r.state.Store(int32(RecorderStateStopped))

	if err != nil {
		r.log.WithError(err).Debug("pump ended on error")
	} else {
		r.log.Debug("pump stopped")
	}
}

func (r *Recorder) pump(ctx context.Context) error {
	for r.running.Load() {
		if err := r.tick(ctx); err != nil {
			return err
		}
	}
	return nil
}

// tick reads one buffer and, if there is one, delivers it and releases it.
// The buffer is released after the callback returns, including when the
// callback panics.
func (r *Recorder) tick(ctx context.Context) (err error) {
	buf, err := r.codec.Read(ctx)
	if buf == nil {
		if err == nil {
			r.counters.emptyReads.Add(1)
		}
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("%w: %v", ErrCallbackPanic, p)
		}
	}()
	defer buf.Release()

	data, hasTimestamp := ExtractCodecData(buf)
	if !hasTimestamp {
		r.counters.missingTimestamps.Add(1)
		r.log.Error("buffer without timestamp")
	}

	if !r.outputChecked && len(data.Data) > 0 {
		r.outputChecked = true
		r.checkOutputCodec(data.Data)
	}

	r.counters.buffers.Add(1)
	r.counters.bytes.Add(uint64(len(data.Data)))
	if data.Sync {
		r.counters.syncFrames.Add(1)
	}
	if data.CodecConfig {
		r.counters.codecConfigs.Add(1)
	}

	if b := r.callbacks.Load(); b != nil && b.cb.DataAvailable != nil {
		b.cb.DataAvailable(b.userData, &data)
	}

	return err
}

// checkOutputCodec warns when the first buffer of a run looks like a
// different codec than the one configured.
func (r *Recorder) checkOutputCodec(data []byte) {
	got := DetectVideoCodec(data)
	if got == VideoCodecUnknown || got == r.config.Codec {
		return
	}
	r.log.WithFields(logrus.Fields{
		"configured": r.config.Codec,
		"detected":   got,
	}).Warn("encoder output does not match configured codec")
}
