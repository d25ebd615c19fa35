package droidmedia

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// PatternConfig configures the synthetic pattern backend.
type PatternConfig struct {
	// Realtime paces buffers at the configured frame rate. When false,
	// buffers are produced as fast as they are read.
	Realtime bool

	// ColorFormat is reported by the video source. ColorFormatUnknown makes
	// the source report no format at all.
	ColorFormat ColorFormat

	// MaxFrames ends the stream with StatusEndOfStream after this many
	// access units (0 = unlimited).
	MaxFrames int
}

// DefaultPatternConfig returns a realtime configuration reporting NV12.
func DefaultPatternConfig() PatternConfig {
	return PatternConfig{
		Realtime:    true,
		ColorFormat: ColorFormatYUV420SemiPlanar,
	}
}

// NewPatternBackend returns a backend producing synthetic H.264-like access
// units: one codec config buffer followed by sync and delta frames.
func NewPatternBackend(config PatternConfig) Backend {
	return Backend{
		Sources: VideoSourceFactoryFunc(func(camera CameraHandle, params CaptureParams) (VideoSource, error) {
			return newPatternVideoSource(config, params), nil
		}),
		Encoders: EncoderFactoryFunc(func(enc EncoderConfig, source VideoSource) (MediaSource, error) {
			return NewPatternEncoder(enc, config), nil
		}),
	}
}

type patternVideoSource struct {
	format *MetaData
	closed atomic.Bool
}

func newPatternVideoSource(config PatternConfig, params CaptureParams) *patternVideoSource {
	s := &patternVideoSource{}
	if config.ColorFormat != ColorFormatUnknown {
		s.format = NewMetaData().
			SetInt32(KeyColorFormat, int32(config.ColorFormat)).
			SetInt32(KeyWidth, int32(params.Width)).
			SetInt32(KeyHeight, int32(params.Height)).
			SetInt32(KeyFrameRate, int32(params.FPS))
	}
	return s
}

func (s *patternVideoSource) Format() MetaReader {
	if s.format == nil {
		return nil
	}
	return s.format
}

func (s *patternVideoSource) Close() error {
	s.closed.Store(true)
	return nil
}

// poisonByte overwrites released buffer memory.
const poisonByte = 0xDE

type patternBuffer struct {
	data     []byte
	meta     *MetaData
	enc      *PatternEncoder
	released atomic.Bool
}

func (b *patternBuffer) Data() []byte         { return b.data }
func (b *patternBuffer) MetaData() MetaReader { return b.meta }

func (b *patternBuffer) Release() {
	if b.released.Swap(true) {
		return
	}
	for i := range b.data {
		b.data[i] = poisonByte
	}
	b.enc.outstanding.Add(-1)
	b.enc.pool.Put(b)
}

// PatternEncoder is a MediaSource emitting synthetic encoded buffers.
type PatternEncoder struct {
	config  EncoderConfig
	pattern PatternConfig

	frameDuration time.Duration
	frameSize     int
	gop           int

	running     atomic.Bool
	sentConfig  bool
	frameCount  uint64
	startTime   time.Time
	outstanding atomic.Int64
	pool        sync.Pool

	mu sync.Mutex
}

// NewPatternEncoder creates a pattern encoder for the given configuration.
func NewPatternEncoder(config EncoderConfig, pattern PatternConfig) *PatternEncoder {
	fps := config.FPS
	if fps <= 0 {
		fps = 30
	}
	gop := config.KeyframeInterval
	if gop <= 0 {
		gop = fps
	}
	frameSize := 1024
	if config.BitrateBps > 0 {
		frameSize = config.BitrateBps / 8 / fps
	}
	if frameSize < 16 {
		frameSize = 16
	}

	e := &PatternEncoder{
		config:        config,
		pattern:       pattern,
		frameDuration: time.Second / time.Duration(fps),
		frameSize:     frameSize,
		gop:           gop,
	}
	e.pool.New = func() any {
		return &patternBuffer{meta: NewMetaData(), enc: e}
	}
	return e
}

// Start starts producing buffers from frame zero.
func (e *PatternEncoder) Start() error {
	if !e.running.CompareAndSwap(false, true) {
		return StatusInvalidOp.Err()
	}
	e.mu.Lock()
	e.sentConfig = false
	e.frameCount = 0
	e.startTime = time.Now()
	e.mu.Unlock()
	return nil
}

// Stop stops producing buffers.
func (e *PatternEncoder) Stop() error {
	if !e.running.Swap(false) {
		return StatusInvalidOp.Err()
	}
	return nil
}

// Close stops the encoder.
func (e *PatternEncoder) Close() error {
	e.running.Store(false)
	return nil
}

// Outstanding returns the number of buffers read but not yet released.
func (e *PatternEncoder) Outstanding() int64 {
	return e.outstanding.Load()
}

// Read returns the next buffer, pacing output when Realtime is set.
func (e *PatternEncoder) Read(ctx context.Context) (MediaBuffer, error) {
	if !e.running.Load() {
		return nil, StatusNoInit.Err()
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.sentConfig {
		e.sentConfig = true
		return e.buffer(codecConfigPayload(), 0, true, true), nil
	}

	if e.pattern.MaxFrames > 0 && e.frameCount >= uint64(e.pattern.MaxFrames) {
		return nil, StatusEndOfStream.Err()
	}

	pts := time.Duration(e.frameCount) * e.frameDuration
	if e.pattern.Realtime {
		wait := time.Until(e.startTime.Add(pts))
		if wait > 0 {
			t := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				t.Stop()
				return nil, ctx.Err()
			case <-t.C:
			}
		}
	}

	key := e.frameCount%uint64(e.gop) == 0
	e.frameCount++
	return e.buffer(e.framePayload(key), pts, key, false), nil
}

func (e *PatternEncoder) buffer(payload []byte, pts time.Duration, sync, config bool) *patternBuffer {
	b := e.pool.Get().(*patternBuffer)
	b.released.Store(false)
	b.data = append(b.data[:0], payload...)
	b.meta.Clear()
	if config {
		b.meta.SetInt32(KeyIsCodecConfig, 1)
	}
	b.meta.SetInt64(KeyTime, pts.Microseconds())
	b.meta.SetInt64(KeyDecodingTime, pts.Microseconds())
	if sync {
		b.meta.SetInt32(KeyIsSyncFrame, 1)
	}
	e.outstanding.Add(1)
	return b
}

// codecConfigPayload returns a baseline SPS and PPS in Annex-B form.
func codecConfigPayload() []byte {
	return []byte{
		0x00, 0x00, 0x00, 0x01, 0x67, 0x42, 0xc0, 0x1f, 0xda, 0x01, 0x40, 0x16, 0xe8,
		0x00, 0x00, 0x00, 0x01, 0x68, 0xce, 0x3c, 0x80,
	}
}

func (e *PatternEncoder) framePayload(key bool) []byte {
	p := make([]byte, 5+e.frameSize)
	p[3] = 0x01
	if key {
		p[4] = 0x65 // IDR slice, nal_ref_idc 3
	} else {
		p[4] = 0x41 // non-IDR slice, nal_ref_idc 2
	}
	// Avoid emulating start codes inside the payload.
	seed := byte(e.frameCount)
	for i := 5; i < len(p); i++ {
		p[i] = 0x80 | (seed + byte(i))
	}
	return p
}

func init() {
	RegisterBackend(BackendPattern, NewPatternBackend(DefaultPatternConfig()))
}
