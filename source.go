package droidmedia

import (
	"fmt"
	"io"
	"sort"
	"sync"
)

// CameraHandle is an opaque handle to a camera opened elsewhere.
// Only backends interpret it.
type CameraHandle uintptr

// CaptureParams describes how a video source should capture from a camera.
type CaptureParams struct {
	Width  int
	Height int
	FPS    int

	StoreMetaDataInVideoBuffers bool

	// Version is the target platform release; Identity holds the client
	// fields that release expects.
	Version  PlatformVersion
	Identity ClientIdentity
}

// VideoSource produces camera frames for an encoder.
type VideoSource interface {
	io.Closer

	// Format returns the negotiated output format. It may be nil or lack
	// entries when the platform cannot report them.
	Format() MetaReader
}

// VideoSourceFactory binds a video source to an open camera.
// Platform-specific construction details stay behind this interface.
type VideoSourceFactory interface {
	NewVideoSource(camera CameraHandle, params CaptureParams) (VideoSource, error)
}

// VideoSourceFactoryFunc adapts a function to VideoSourceFactory.
type VideoSourceFactoryFunc func(camera CameraHandle, params CaptureParams) (VideoSource, error)

// NewVideoSource calls f.
func (f VideoSourceFactoryFunc) NewVideoSource(camera CameraHandle, params CaptureParams) (VideoSource, error) {
	return f(camera, params)
}

// Backend pairs the factories a recorder needs.
type Backend struct {
	Sources  VideoSourceFactory
	Encoders EncoderFactory
}

// backendRegistry holds registered backends.
type backendRegistry struct {
	backends map[string]Backend
	mu       sync.RWMutex
}

var globalBackendRegistry = &backendRegistry{
	backends: make(map[string]Backend),
}

// Backend names registered by this package.
const (
	BackendNative  = "native"
	BackendPattern = "pattern"
)

// RegisterBackend registers a backend under name, replacing any previous one.
func RegisterBackend(name string, b Backend) {
	globalBackendRegistry.mu.Lock()
	defer globalBackendRegistry.mu.Unlock()
	globalBackendRegistry.backends[name] = b
}

// LookupBackend returns the backend registered under name.
func LookupBackend(name string) (Backend, error) {
	globalBackendRegistry.mu.RLock()
	b, ok := globalBackendRegistry.backends[name]
	globalBackendRegistry.mu.RUnlock()

	if !ok {
		return Backend{}, fmt.Errorf("%w: %q", ErrBackendNotFound, name)
	}
	return b, nil
}

// IsBackendAvailable checks if a backend is registered.
func IsBackendAvailable(name string) bool {
	globalBackendRegistry.mu.RLock()
	defer globalBackendRegistry.mu.RUnlock()
	_, ok := globalBackendRegistry.backends[name]
	return ok
}

// AvailableBackends returns the registered backend names, sorted.
func AvailableBackends() []string {
	globalBackendRegistry.mu.RLock()
	defer globalBackendRegistry.mu.RUnlock()

	names := make([]string, 0, len(globalBackendRegistry.backends))
	for name := range globalBackendRegistry.backends {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
