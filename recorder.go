package droidmedia

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"
)

// RecorderState represents the state of the buffer pump.
type RecorderState int32

const (
	RecorderStateIdle    RecorderState = iota // Not started
	RecorderStateRunning                      // Pumping buffers
	RecorderStateStopped                      // Pump ended (stop or read error)
	RecorderStateClosed                       // Resources released
)

func (s RecorderState) String() string {
	switch s {
	case RecorderStateIdle:
		return "idle"
	case RecorderStateRunning:
		return "running"
	case RecorderStateStopped:
		return "stopped"
	case RecorderStateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// DataCallbacks receives encoded buffers.
//
// DataAvailable runs synchronously on the recorder's pump goroutine, once per
// buffer and in source order. data and data.Data are only valid until it
// returns. It must not call Stop or Close on the same recorder.
type DataCallbacks struct {
	DataAvailable func(userData any, data *CodecData)
}

// FanOut returns DataCallbacks that invoke each of cbs in order with the same
// buffer. Entries without DataAvailable are skipped.
func FanOut(cbs ...DataCallbacks) DataCallbacks {
	var fns []func(any, *CodecData)
	for _, cb := range cbs {
		if cb.DataAvailable != nil {
			fns = append(fns, cb.DataAvailable)
		}
	}
	if len(fns) == 0 {
		return DataCallbacks{}
	}
	return DataCallbacks{
		DataAvailable: func(userData any, data *CodecData) {
			for _, fn := range fns {
				fn(userData, data)
			}
		},
	}
}

type callbackBinding struct {
	cb       DataCallbacks
	userData any
}

// RecorderStats provides pump statistics.
type RecorderStats struct {
	BuffersDelivered   uint64
	BytesDelivered     uint64
	SyncFrames         uint64
	CodecConfigBuffers uint64
	EmptyReads         uint64
	MissingTimestamps  uint64
}

type recorderCounters struct {
	buffers           atomic.Uint64
	bytes             atomic.Uint64
	syncFrames        atomic.Uint64
	codecConfigs      atomic.Uint64
	emptyReads        atomic.Uint64
	missingTimestamps atomic.Uint64
}

// Recorder binds a camera to an encoder and pumps encoded buffers to a
// callback on a dedicated goroutine between Start and Stop.
type Recorder struct {
	id     uuid.UUID
	camera CameraHandle
	config EncoderConfig
	source VideoSource
	codec  MediaSource
	log    logrus.FieldLogger

	callbacks atomic.Pointer[callbackBinding]

	running atomic.Bool
	state   atomic.Int32
	cancel  context.CancelFunc
	done    chan struct{}

	errMu   sync.Mutex
	pumpErr error

	// outputChecked is owned by the pump goroutine once started.
	outputChecked bool

	counters recorderCounters

	closed bool
	mu     sync.Mutex // serializes Start, Stop and Close
}

// NewRecorder builds a video source bound to camera and an encoder reading
// from it. config.ColorFormat is overwritten with the format negotiated by
// the video source; if the source cannot report one the caller's value is
// kept.
func NewRecorder(camera CameraHandle, config *EncoderConfig, opts ...RecorderOption) (*Recorder, error) {
	if config == nil {
		return nil, &CreateError{Reason: CreateInvalidConfig}
	}
	if err := config.Validate(); err != nil {
		return nil, &CreateError{Reason: CreateInvalidConfig, Err: err}
	}

	o, err := buildOptions(opts)
	if err != nil {
		return nil, &CreateError{Reason: CreateBackendMissing, Err: err}
	}

	id := uuid.New()
	log := o.logger.WithField("recorder", id.String())

	params := config.CaptureParams(o.version)
	src, err := o.sources.NewVideoSource(camera, params)
	if err == nil && src == nil {
		err = errors.New("factory returned no video source")
	}
	if err != nil {
		log.WithError(err).Error("cannot create video source")
		return nil, &CreateError{Reason: CreateCameraBindFailed, Err: err}
	}

	if cf, ok := negotiatedColorFormat(src); ok {
		config.ColorFormat = cf
	} else {
		log.WithField("color_format", config.ColorFormat).Debug("video source reports no color format, keeping configured value")
	}

	codec, err := o.encoders.NewEncoder(*config, src)
	if err == nil && codec == nil {
		err = errors.New("factory returned no encoder")
	}
	if err != nil {
		log.WithError(err).Error("cannot create encoder")
		if cerr := src.Close(); cerr != nil {
			log.WithError(cerr).Warn("cannot release video source")
		}
		return nil, &CreateError{Reason: CreateEncoderFailed, Err: err}
	}

	r := &Recorder{
		id:     id,
		camera: camera,
		config: *config,
		source: src,
		codec:  codec,
		log:    log,
	}
	r.state.Store(int32(RecorderStateIdle))

	log.WithFields(logrus.Fields{
		"codec":        config.Codec,
		"width":        config.Width,
		"height":       config.Height,
		"fps":          config.FPS,
		"color_format": config.ColorFormat,
		"platform":     o.version,
	}).Debug("recorder created")

	return r, nil
}

func negotiatedColorFormat(src VideoSource) (ColorFormat, bool) {
	format := src.Format()
	if format == nil {
		return 0, false
	}
	cf, ok := format.FindInt32(KeyColorFormat)
	return ColorFormat(cf), ok
}

// ID returns the recorder's unique id.
func (r *Recorder) ID() uuid.UUID { return r.id }

// Camera returns the camera handle the recorder is bound to.
func (r *Recorder) Camera() CameraHandle { return r.camera }

// Config returns the encoder configuration, including the negotiated color format.
func (r *Recorder) Config() EncoderConfig { return r.config }

// SetDataCallbacks replaces the callback and its user data.
// The swap is atomic; a pump iteration already in flight finishes with the
// previous callback.
func (r *Recorder) SetDataCallbacks(cb DataCallbacks, userData any) {
	r.callbacks.Store(&callbackBinding{cb: cb, userData: userData})
}

// Start starts the encoder and the pump goroutine.
// On failure the recorder stays stopped and Start may be called again.
func (r *Recorder) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrClosed
	}
	if !r.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}

	if err := r.codec.Start(); err != nil {
		r.running.Store(false)
		status := StatusOf(err)
		r.log.WithError(err).WithField("status", status.String()).Error("error starting codec")
		return &StartError{Status: status, Err: err}
	}

	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	r.done = make(chan struct{})
	r.setErr(nil)
	r.outputChecked = false
	r.state.Store(int32(RecorderStateRunning))

	go r.run(ctx, r.done)

	return nil
}

// Stop ends the pump, waits for it to exit and stops the encoder.
// It blocks while a read or callback is in flight. Encoder stop failures are
// logged, never returned.
func (r *Recorder) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopLocked()
}

func (r *Recorder) stopLocked() {
	if !r.running.Swap(false) {
		return
	}

	r.cancel()
	<-r.done

	if err := r.codec.Stop(); err != nil {
		r.log.WithError(err).WithField("status", StatusOf(err).String()).Error("error stopping codec")
	}
	r.state.Store(int32(RecorderStateStopped))
}

// Close stops the recorder if needed and releases the encoder and the
// video source.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.stopLocked()
	r.closed = true

	var result error
	if err := r.codec.Close(); err != nil {
		result = multierror.Append(result, fmt.Errorf("release encoder: %w", err))
	}
	if err := r.source.Close(); err != nil {
		result = multierror.Append(result, fmt.Errorf("release video source: %w", err))
	}
	r.codec = nil
	r.source = nil
	r.state.Store(int32(RecorderStateClosed))

	return result
}

// Running reports whether the recorder has been started and not stopped.
// It stays true after the pump ended on a read error until Stop is called.
func (r *Recorder) Running() bool {
	return r.running.Load()
}

// State returns the current pump state.
func (r *Recorder) State() RecorderState {
	return RecorderState(r.state.Load())
}

// Err returns the error that ended the pump, or nil.
func (r *Recorder) Err() error {
	r.errMu.Lock()
	defer r.errMu.Unlock()
	return r.pumpErr
}

func (r *Recorder) setErr(err error) {
	r.errMu.Lock()
	r.pumpErr = err
	r.errMu.Unlock()
}

// Stats returns pump statistics.
func (r *Recorder) Stats() RecorderStats {
	return RecorderStats{
		BuffersDelivered:   r.counters.buffers.Load(),
		BytesDelivered:     r.counters.bytes.Load(),
		SyncFrames:         r.counters.syncFrames.Load(),
		CodecConfigBuffers: r.counters.codecConfigs.Load(),
		EmptyReads:         r.counters.emptyReads.Load(),
		MissingTimestamps:  r.counters.missingTimestamps.Load(),
	}
}
