package droidmedia

import (
	"context"
	"fmt"
	"io"
)

// EncoderConfig configures the encoder a recorder builds on top of the
// camera. ColorFormat is an out-parameter: NewRecorder overwrites it with the
// format negotiated by the video source when that format is known.
type EncoderConfig struct {
	Codec VideoCodec // Output codec

	Width  int // Capture and encode width
	Height int // Capture and encode height
	FPS    int // Capture frame rate

	BitrateBps       int         // Target bitrate in bits per second
	KeyframeInterval int         // Sync frame interval in frames (0 = encoder default)
	Stride           int         // Input stride (0 = Width)
	SliceHeight      int         // Input slice height (0 = Height)
	ColorFormat      ColorFormat // Negotiated input color format

	// StoreMetaDataInVideoBuffers asks the camera to pass buffer handles
	// instead of pixel data to the encoder.
	StoreMetaDataInVideoBuffers bool
}

// DefaultEncoderConfig returns a default encoder configuration.
func DefaultEncoderConfig(codec VideoCodec, width, height int) EncoderConfig {
	return EncoderConfig{
		Codec:            codec,
		Width:            width,
		Height:           height,
		FPS:              30,
		BitrateBps:       2000000,
		KeyframeInterval: 30,
	}
}

// Validate checks the capture geometry.
func (c *EncoderConfig) Validate() error {
	if c.Width <= 0 || c.Height <= 0 {
		return fmt.Errorf("invalid capture size %dx%d", c.Width, c.Height)
	}
	if c.FPS <= 0 {
		return fmt.Errorf("invalid frame rate %d", c.FPS)
	}
	if c.Codec.MimeType() == "" {
		return fmt.Errorf("%w: %s", ErrNotSupported, c.Codec)
	}
	return nil
}

// CaptureParams returns the capture parameters for a video source.
func (c *EncoderConfig) CaptureParams(version PlatformVersion) CaptureParams {
	return CaptureParams{
		Width:                       c.Width,
		Height:                      c.Height,
		FPS:                         c.FPS,
		StoreMetaDataInVideoBuffers: c.StoreMetaDataInVideoBuffers,
		Version:                     version,
		Identity:                    ClientIdentityFor(version),
	}
}

// MediaSource is a pull-based encoder output.
//
// Read may block until the next buffer is ready. It returns (nil, nil) when
// no buffer is available yet; any error ends the recording. The context is
// cancelled when the recorder stops; sources that cannot abort a read may
// ignore it.
type MediaSource interface {
	io.Closer

	// Start starts encoding. The returned error carries the native status.
	Start() error

	// Stop stops encoding.
	Stop() error

	// Read returns the next encoded buffer.
	Read(ctx context.Context) (MediaBuffer, error)
}

// EncoderFactory builds an encoder reading from a video source.
type EncoderFactory interface {
	NewEncoder(config EncoderConfig, source VideoSource) (MediaSource, error)
}

// EncoderFactoryFunc adapts a function to EncoderFactory.
type EncoderFactoryFunc func(config EncoderConfig, source VideoSource) (MediaSource, error)

// NewEncoder calls f.
func (f EncoderFactoryFunc) NewEncoder(config EncoderConfig, source VideoSource) (MediaSource, error) {
	return f(config, source)
}
