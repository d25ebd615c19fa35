//go:build !linux || nonative

package droidmedia

// IsNativeAvailable returns false: the native backend only exists on Linux
// and Android builds.
func IsNativeAvailable() bool { return false }

// NewNativeBackend returns a backend whose factories always fail.
func NewNativeBackend() Backend {
	return Backend{
		Sources: VideoSourceFactoryFunc(func(CameraHandle, CaptureParams) (VideoSource, error) {
			return nil, ErrNotSupported
		}),
		Encoders: EncoderFactoryFunc(func(EncoderConfig, VideoSource) (MediaSource, error) {
			return nil, ErrNotSupported
		}),
	}
}
