package droidmedia

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "droidrec.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, BackendNative, cfg.Backend)
	assert.Equal(t, DefaultPlatformVersion, cfg.Platform)

	enc, err := cfg.EncoderConfig()
	require.NoError(t, err)
	assert.Equal(t, VideoCodecH264, enc.Codec)
	assert.Equal(t, 1280, enc.Width)
	assert.Equal(t, 720, enc.Height)
	assert.Equal(t, 30, enc.FPS)
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
backend: pattern
platform: 4.4
log_level: debug
log_format: json
encoder:
  codec: video/avc
  width: 640
  height: 480
  fps: 15
  bitrate: 500000
  color_format: 21
  meta_data_in_buffers: true
rtp:
  address: 127.0.0.1:5004
  payload_type: 96
  mtu: 1000
rtmp:
  url: rtmp://127.0.0.1/live/cam0
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, BackendPattern, cfg.Backend)
	assert.Equal(t, PlatformVersion{Major: 4, Minor: 4}, cfg.Platform)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, LogFormatJSON, cfg.LogFormat)
	assert.Equal(t, "127.0.0.1:5004", cfg.RTP.Address)
	assert.EqualValues(t, 96, cfg.RTP.PayloadType)
	assert.Equal(t, 1000, cfg.RTP.MTU)
	assert.Equal(t, "rtmp://127.0.0.1/live/cam0", cfg.RTMP.URL)

	enc, err := cfg.EncoderConfig()
	require.NoError(t, err)
	assert.Equal(t, 640, enc.Width)
	assert.Equal(t, 15, enc.FPS)
	assert.Equal(t, 500000, enc.BitrateBps)
	assert.Equal(t, 30, enc.KeyframeInterval, "unset keys keep defaults")
	assert.Equal(t, ColorFormatYUV420SemiPlanar, enc.ColorFormat)
	assert.True(t, enc.StoreMetaDataInVideoBuffers)
}

func TestLoadConfig_QuotedPlatform(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, "platform: \"10\"\n"))
	require.NoError(t, err)
	assert.Equal(t, PlatformVersion{Major: 10}, cfg.Platform)
}

func TestLoadConfig_Errors(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"bad yaml", "encoder: [\n"},
		{"bad platform", "platform: android\n"},
		{"bad codec", "encoder:\n  codec: theora\n"},
		{"bad size", "encoder:\n  width: 0\n"},
		{"bad rtmp url", "rtmp:\n  url: http://host/live/cam0\n"},
		{"rtmp needs h264", "encoder:\n  codec: vp8\nrtmp:\n  url: rtmp://host/live/cam0\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}

	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestConfig_RecorderOptions(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Backend = "no-such-backend"
	cfg.Platform = PlatformVersion{Major: 5, Minor: 0}

	o, err := buildOptions(cfg.RecorderOptions())
	assert.ErrorIs(t, err, ErrBackendNotFound)
	assert.Equal(t, "no-such-backend", o.backend)
	assert.Equal(t, PlatformVersion{Major: 5}, o.version)

	cfg.Backend = BackendPattern
	o, err = buildOptions(cfg.RecorderOptions())
	require.NoError(t, err)
	assert.NotNil(t, o.sources)
	assert.NotNil(t, o.encoders)
	assert.NotNil(t, o.logger)
}

func TestRecorder_FromConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Backend = BackendPattern
	enc, err := cfg.EncoderConfig()
	require.NoError(t, err)

	rec, err := NewRecorder(0, &enc, cfg.RecorderOptions()...)
	require.NoError(t, err)
	assert.Equal(t, ColorFormatYUV420SemiPlanar, enc.ColorFormat)
	require.NoError(t, rec.Close())
}
