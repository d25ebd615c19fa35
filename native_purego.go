//go:build linux && !nonative

package droidmedia

import (
	"context"
	"fmt"
	"sync"
	"unsafe"

	"github.com/ebitengine/purego"
)

// NativeLibrary is the platform shim wrapping the camera source and encoder
// objects behind a flat C ABI.
const NativeLibrary = "libdroidmedia_shim.so"

var (
	nativeOnce    sync.Once
	nativeHandle  uintptr
	nativeInitErr error
	nativeLoaded  bool
)

// Shim function pointers
var (
	dmrCameraSourceCreate      func(camera uintptr, width, height, fps int32, clientName string, uid, pid, flags int32) uintptr
	dmrCameraSourceColorFormat func(src uintptr, out *int32) int32
	dmrCameraSourceRelease     func(src uintptr)
	dmrEncoderCreate           func(src uintptr, mime string, width, height, fps, bitrate, stride, sliceHeight, colorFormat, iFrameInterval, flags int32) uintptr
	dmrEncoderStart            func(enc uintptr) int32
	dmrEncoderStop             func(enc uintptr) int32
	dmrEncoderRead             func(enc uintptr, buf *uintptr) int32
	dmrEncoderRelease          func(enc uintptr)
	dmrBufferData              func(buf uintptr) uintptr
	dmrBufferRangeOffset       func(buf uintptr) uint64
	dmrBufferRangeLength       func(buf uintptr) uint64
	dmrBufferFindInt32         func(buf uintptr, key uint32, out *int32) bool
	dmrBufferFindInt64         func(buf uintptr, key uint32, out *int64) bool
	dmrBufferRelease           func(buf uintptr)
	dmrGetError                func() uintptr
)

// dmr_camera_source_create flags
const (
	sourceFlagHasIdentity = 1 << iota
	sourceFlagHasPID
	sourceFlagStoreMetaData
)

// dmr_encoder_create flags
const (
	encoderFlagMetaData = 1 << iota
	encoderFlagLooper
)

func initNative() {
	nativeOnce.Do(func() {
		libPath := findLibrary(NativeLibrary)
		if libPath == "" {
			libPath = NativeLibrary
		}

		var err error
		nativeHandle, err = purego.Dlopen(libPath, purego.RTLD_NOW|purego.RTLD_GLOBAL)
		if err != nil {
			nativeInitErr = fmt.Errorf("failed to load %s: %w", libPath, err)
			return
		}

		purego.RegisterLibFunc(&dmrCameraSourceCreate, nativeHandle, "dmr_camera_source_create")
		purego.RegisterLibFunc(&dmrCameraSourceColorFormat, nativeHandle, "dmr_camera_source_color_format")
		purego.RegisterLibFunc(&dmrCameraSourceRelease, nativeHandle, "dmr_camera_source_release")
		purego.RegisterLibFunc(&dmrEncoderCreate, nativeHandle, "dmr_encoder_create")
		purego.RegisterLibFunc(&dmrEncoderStart, nativeHandle, "dmr_encoder_start")
		purego.RegisterLibFunc(&dmrEncoderStop, nativeHandle, "dmr_encoder_stop")
		purego.RegisterLibFunc(&dmrEncoderRead, nativeHandle, "dmr_encoder_read")
		purego.RegisterLibFunc(&dmrEncoderRelease, nativeHandle, "dmr_encoder_release")
		purego.RegisterLibFunc(&dmrBufferData, nativeHandle, "dmr_buffer_data")
		purego.RegisterLibFunc(&dmrBufferRangeOffset, nativeHandle, "dmr_buffer_range_offset")
		purego.RegisterLibFunc(&dmrBufferRangeLength, nativeHandle, "dmr_buffer_range_length")
		purego.RegisterLibFunc(&dmrBufferFindInt32, nativeHandle, "dmr_buffer_find_int32")
		purego.RegisterLibFunc(&dmrBufferFindInt64, nativeHandle, "dmr_buffer_find_int64")
		purego.RegisterLibFunc(&dmrBufferRelease, nativeHandle, "dmr_buffer_release")
		purego.RegisterLibFunc(&dmrGetError, nativeHandle, "dmr_get_error")

		nativeLoaded = true
	})
}

// IsNativeAvailable returns true if the native shim library is loaded.
func IsNativeAvailable() bool {
	initNative()
	return nativeLoaded
}

func nativeError(what string) error {
	if msg := goStringFromPtr(dmrGetError()); msg != "" {
		return fmt.Errorf("%s: %s", what, msg)
	}
	return fmt.Errorf("%s", what)
}

// nativeVideoSource wraps a platform camera source.
type nativeVideoSource struct {
	handle  uintptr
	version PlatformVersion
	once    sync.Once
}

func newNativeVideoSource(camera CameraHandle, params CaptureParams) (VideoSource, error) {
	initNative()
	if !nativeLoaded {
		return nil, nativeInitErr
	}
	if camera == 0 {
		return nil, fmt.Errorf("nil camera handle")
	}

	var flags int32
	id := params.Identity
	if id.HasUID {
		flags |= sourceFlagHasIdentity
	}
	if id.HasPID {
		flags |= sourceFlagHasPID
	}
	if params.StoreMetaDataInVideoBuffers {
		flags |= sourceFlagStoreMetaData
	}

	h := dmrCameraSourceCreate(uintptr(camera),
		int32(params.Width), int32(params.Height), int32(params.FPS),
		id.Name, int32(id.UID), int32(id.PID), flags)
	if h == 0 {
		return nil, nativeError("camera source create failed")
	}
	return &nativeVideoSource{handle: h, version: params.Version}, nil
}

// Format reports the negotiated color format, or nil if the camera does not
// support the requested parameters.
func (s *nativeVideoSource) Format() MetaReader {
	var cf int32
	if Status(dmrCameraSourceColorFormat(s.handle, &cf)) != StatusOK {
		return nil
	}
	return NewMetaData().SetInt32(KeyColorFormat, cf)
}

func (s *nativeVideoSource) Close() error {
	s.once.Do(func() { dmrCameraSourceRelease(s.handle) })
	return nil
}

// nativeEncoder wraps a platform media source reading from a camera source.
type nativeEncoder struct {
	handle uintptr
	once   sync.Once
}

func newNativeEncoder(config EncoderConfig, source VideoSource) (MediaSource, error) {
	src, ok := source.(*nativeVideoSource)
	if !ok {
		return nil, fmt.Errorf("native encoder needs a native video source, got %T", source)
	}

	var flags int32
	if config.StoreMetaDataInVideoBuffers {
		flags |= encoderFlagMetaData
	}
	if src.version.NeedsLooper() {
		flags |= encoderFlagLooper
	}
	iFrameInterval := 1
	if config.KeyframeInterval > 0 && config.FPS > 0 {
		iFrameInterval = max(1, config.KeyframeInterval/config.FPS)
	}

	h := dmrEncoderCreate(src.handle, config.Codec.MimeType(),
		int32(config.Width), int32(config.Height), int32(config.FPS),
		int32(config.BitrateBps), int32(config.Stride), int32(config.SliceHeight),
		int32(config.ColorFormat), int32(iFrameInterval), flags)
	if h == 0 {
		return nil, nativeError("encoder create failed")
	}
	return &nativeEncoder{handle: h}, nil
}

func (e *nativeEncoder) Start() error { return Status(dmrEncoderStart(e.handle)).Err() }
func (e *nativeEncoder) Stop() error  { return Status(dmrEncoderStop(e.handle)).Err() }

// Read blocks inside the platform encoder; ctx cannot abort it.
func (e *nativeEncoder) Read(ctx context.Context) (MediaBuffer, error) {
	var buf uintptr
	err := Status(dmrEncoderRead(e.handle, &buf)).Err()
	if buf == 0 {
		return nil, err
	}
	return &nativeBuffer{handle: buf}, err
}

func (e *nativeEncoder) Close() error {
	e.once.Do(func() { dmrEncoderRelease(e.handle) })
	return nil
}

// nativeBuffer is a platform media buffer; its data lives in native memory.
type nativeBuffer struct {
	handle uintptr
}

func (b *nativeBuffer) Data() []byte {
	length := dmrBufferRangeLength(b.handle)
	if length == 0 {
		return nil
	}
	base := dmrBufferData(b.handle) + uintptr(dmrBufferRangeOffset(b.handle))
	return unsafe.Slice((*byte)(unsafe.Pointer(base)), int(length))
}

func (b *nativeBuffer) MetaData() MetaReader { return b }

func (b *nativeBuffer) FindInt32(key MetaKey) (int32, bool) {
	var v int32
	ok := dmrBufferFindInt32(b.handle, uint32(key), &v)
	return v, ok
}

func (b *nativeBuffer) FindInt64(key MetaKey) (int64, bool) {
	var v int64
	ok := dmrBufferFindInt64(b.handle, uint32(key), &v)
	return v, ok
}

func (b *nativeBuffer) Release() { dmrBufferRelease(b.handle) }

// NewNativeBackend returns the backend built on the native shim. The target
// platform release travels in CaptureParams.
func NewNativeBackend() Backend {
	return Backend{
		Sources:  VideoSourceFactoryFunc(newNativeVideoSource),
		Encoders: EncoderFactoryFunc(newNativeEncoder),
	}
}

func init() {
	RegisterBackend(BackendNative, NewNativeBackend())
}
