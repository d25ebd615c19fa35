package droidmedia

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

// mockBuffer poisons its data on release so use-after-release shows up as
// corrupted payloads.
type mockBuffer struct {
	data     []byte
	meta     *MetaData
	releases atomic.Int32
}

func newMockBuffer(data []byte, meta *MetaData) *mockBuffer {
	return &mockBuffer{data: data, meta: meta}
}

func (b *mockBuffer) Data() []byte { return b.data }

func (b *mockBuffer) MetaData() MetaReader {
	if b.meta == nil {
		return nil
	}
	return b.meta
}

func (b *mockBuffer) Release() {
	b.releases.Add(1)
	for i := range b.data {
		b.data[i] = poisonByte
	}
}

// readResult is one scripted Read outcome.
type readResult struct {
	buf *mockBuffer
	err error
}

// mockEncoder replays scripted reads. Once the script is exhausted Read
// blocks until the context is cancelled.
type mockEncoder struct {
	mu     sync.Mutex
	script []readResult
	reads  int

	startErr error
	stopErr  error
	closeErr error

	starts atomic.Int32
	stops  atomic.Int32
	closes atomic.Int32

	// readGate, when set, is received from before every read.
	readGate chan struct{}
}

func (e *mockEncoder) Start() error {
	e.starts.Add(1)
	return e.startErr
}

func (e *mockEncoder) Stop() error {
	e.stops.Add(1)
	return e.stopErr
}

func (e *mockEncoder) Close() error {
	e.closes.Add(1)
	return e.closeErr
}

func (e *mockEncoder) Read(ctx context.Context) (MediaBuffer, error) {
	if e.readGate != nil {
		select {
		case <-e.readGate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	e.mu.Lock()
	if e.reads < len(e.script) {
		r := e.script[e.reads]
		e.reads++
		e.mu.Unlock()
		if r.buf == nil {
			return nil, r.err
		}
		return r.buf, r.err
	}
	e.mu.Unlock()

	<-ctx.Done()
	return nil, ctx.Err()
}

func (e *mockEncoder) readCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.reads
}

type mockVideoSource struct {
	format   *MetaData
	closeErr error
	closes   atomic.Int32
}

func (s *mockVideoSource) Format() MetaReader {
	if s.format == nil {
		return nil
	}
	return s.format
}

func (s *mockVideoSource) Close() error {
	s.closes.Add(1)
	return s.closeErr
}

var errMockRead = errors.New("mock read failure")

// timedBuffer builds a buffer with a presentation time in microseconds and
// an optional sync flag.
func timedBuffer(payload []byte, us int64, sync bool) *mockBuffer {
	meta := NewMetaData().SetInt64(KeyTime, us)
	if sync {
		meta.SetInt32(KeyIsSyncFrame, 1)
	}
	return newMockBuffer(payload, meta)
}
