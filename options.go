package droidmedia

import "github.com/sirupsen/logrus"

type recorderOptions struct {
	backend  string
	sources  VideoSourceFactory
	encoders EncoderFactory
	version  PlatformVersion
	logger   logrus.FieldLogger
}

// RecorderOption configures NewRecorder.
type RecorderOption func(*recorderOptions)

// WithBackend selects a registered backend by name (default: native).
func WithBackend(name string) RecorderOption {
	return func(o *recorderOptions) { o.backend = name }
}

// WithVideoSourceFactory overrides the backend's video source factory.
func WithVideoSourceFactory(f VideoSourceFactory) RecorderOption {
	return func(o *recorderOptions) { o.sources = f }
}

// WithEncoderFactory overrides the backend's encoder factory.
func WithEncoderFactory(f EncoderFactory) RecorderOption {
	return func(o *recorderOptions) { o.encoders = f }
}

// WithPlatformVersion sets the target platform release.
func WithPlatformVersion(v PlatformVersion) RecorderOption {
	return func(o *recorderOptions) { o.version = v }
}

// WithLogger sets the logger; each recorder adds its id as a field.
func WithLogger(l logrus.FieldLogger) RecorderOption {
	return func(o *recorderOptions) { o.logger = l }
}

func buildOptions(opts []RecorderOption) (recorderOptions, error) {
	o := recorderOptions{
		backend: BackendNative,
		version: DefaultPlatformVersion,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = defaultLogger()
	}
	if o.sources != nil && o.encoders != nil {
		return o, nil
	}

	b, err := LookupBackend(o.backend)
	if err != nil {
		return o, err
	}
	if o.sources == nil {
		o.sources = b.Sources
	}
	if o.encoders == nil {
		o.encoders = b.Encoders
	}
	if o.sources == nil || o.encoders == nil {
		return o, ErrBackendNotFound
	}
	return o, nil
}
