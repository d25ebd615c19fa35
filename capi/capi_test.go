//go:build cgo

package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thesyncim/droidmedia"
)

const waitTimeout = 2 * time.Second

func patternMeta() encoderMeta {
	return encoderMeta{Type: "video/avc", Width: 320, Height: 240, FPS: 30, Bitrate: 64000}
}

func TestRecorderCreate(t *testing.T) {
	t.Setenv("DROIDMEDIA_BACKEND", droidmedia.BackendPattern)

	h, colorFormat := createFromMeta(patternMeta())
	require.NotZero(t, h)
	defer droid_media_recorder_destroy(h)

	assert.EqualValues(t, droidmedia.ColorFormatYUV420SemiPlanar, colorFormat, "negotiated color format is written back")
	r := recorderFromHandle(h)
	require.NotNil(t, r)
	assert.Equal(t, droidmedia.VideoCodecH264, r.Config().Codec)
	assert.Equal(t, 320, r.Config().Width)
}

func TestRecorderCreate_Failures(t *testing.T) {
	t.Setenv("DROIDMEDIA_BACKEND", droidmedia.BackendPattern)

	tests := []struct {
		name string
		meta encoderMeta
	}{
		{"unknown codec", encoderMeta{Type: "video/theora", Width: 320, Height: 240, FPS: 30}},
		{"zero size", encoderMeta{Type: "video/avc", Height: 240, FPS: 30}},
		{"zero fps", encoderMeta{Type: "video/avc", Width: 320, Height: 240}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, colorFormat := createFromMeta(tt.meta)
			if h != 0 {
				droid_media_recorder_destroy(h)
				t.Fatalf("create returned handle %d, want 0", h)
			}
			assert.Zero(t, colorFormat, "color format untouched on failure")
		})
	}

	if h := droid_media_recorder_create(nil, nil); h != 0 {
		t.Errorf("create(nil meta) = %d, want 0", h)
	}

	t.Run("missing backend", func(t *testing.T) {
		t.Setenv("DROIDMEDIA_BACKEND", "no-such-backend")
		h, _ := createFromMeta(patternMeta())
		assert.Zero(t, h)
	})

	t.Run("bad platform release", func(t *testing.T) {
		t.Setenv("DROIDMEDIA_PLATFORM", "android")
		h, _ := createFromMeta(patternMeta())
		assert.Zero(t, h)
	})
}

func TestRecorderStartStop(t *testing.T) {
	t.Setenv("DROIDMEDIA_BACKEND", droidmedia.BackendPattern)
	resetDeliveryLog()

	h, _ := createFromMeta(patternMeta())
	require.NotZero(t, h)
	defer droid_media_recorder_destroy(h)

	setLoggingCallbacks(h)
	require.True(t, bool(droid_media_recorder_start(h)))
	assert.False(t, bool(droid_media_recorder_start(h)), "second start fails")

	require.Eventually(t, func() bool { return len(deliveryLog()) >= 3 }, waitTimeout, 5*time.Millisecond)
	droid_media_recorder_stop(h)
	droid_media_recorder_stop(h)

	log := deliveryLog()
	cfg := log[0]
	assert.True(t, cfg.CodecConfig)
	assert.Zero(t, cfg.TimestampNs)
	assert.Equal(t, [5]byte{0, 0, 0, 1, 0x67}, cfg.Head)
	assert.True(t, cfg.OwnUser)

	idr := log[1]
	assert.False(t, idr.CodecConfig)
	assert.True(t, idr.Sync)
	assert.Equal(t, [5]byte{0, 0, 0, 1, 0x65}, idr.Head)
	assert.Equal(t, 5+64000/8/30, idr.Size)

	next := log[2]
	assert.False(t, next.Sync)
	assert.EqualValues(t, 33_333_000, next.TimestampNs)
	assert.EqualValues(t, 33_333_000, next.DecodingTimestampNs)
	assert.Equal(t, [5]byte{0, 0, 0, 1, 0x41}, next.Head)

	// Stopped recorders start again.
	require.True(t, bool(droid_media_recorder_start(h)))
	droid_media_recorder_stop(h)
}

func TestRecorderNilCallbacks(t *testing.T) {
	t.Setenv("DROIDMEDIA_BACKEND", droidmedia.BackendPattern)
	resetDeliveryLog()

	h, _ := createFromMeta(patternMeta())
	require.NotZero(t, h)
	defer droid_media_recorder_destroy(h)

	setLoggingCallbacks(h)
	droid_media_recorder_set_data_callbacks(h, nil, nil)

	r := recorderFromHandle(h)
	require.True(t, bool(droid_media_recorder_start(h)))
	require.Eventually(t, func() bool { return r.Stats().BuffersDelivered >= 3 }, waitTimeout, 5*time.Millisecond)
	droid_media_recorder_stop(h)

	assert.Empty(t, deliveryLog(), "buffers go nowhere without a callback table")
}

func TestZeroHandle(t *testing.T) {
	assert.Nil(t, recorderFromHandle(0))
	assert.False(t, bool(droid_media_recorder_start(0)))
	droid_media_recorder_stop(0)
	droid_media_recorder_set_data_callbacks(0, nil, nil)
	droid_media_recorder_destroy(0)
}

func TestDeliverRecord(t *testing.T) {
	resetDeliveryLog()

	deliver(loggingBinding(), &droidmedia.CodecData{
		Data:                []byte{0, 0, 0, 1, 0x65, 0x88, 0x84},
		TimestampNs:         1_000_000,
		DecodingTimestampNs: 900_000,
		Sync:                true,
	})
	deliver(loggingBinding(), &droidmedia.CodecData{TimestampNs: 2_000_000, CodecConfig: true})
	deliver("not a binding", &droidmedia.CodecData{TimestampNs: 3_000_000})

	log := deliveryLog()
	require.Len(t, log, 2)

	want := loggedDelivery{
		TimestampNs:         1_000_000,
		DecodingTimestampNs: 900_000,
		Sync:                true,
		Size:                7,
		Head:                [5]byte{0, 0, 0, 1, 0x65},
		OwnUser:             true,
	}
	assert.Equal(t, want, log[0])

	empty := log[1]
	assert.Zero(t, empty.Size)
	assert.True(t, empty.CodecConfig)
	assert.EqualValues(t, 2_000_000, empty.TimestampNs)
}

func TestPlatformVersion(t *testing.T) {
	saved := platformRelease
	defer func() { platformRelease = saved }()

	tests := []struct {
		linked  string
		env     string
		want    droidmedia.PlatformVersion
		wantSet bool
		wantErr bool
	}{
		{"", "", droidmedia.PlatformVersion{}, false, false},
		{"4.4", "", droidmedia.PlatformVersion{Major: 4, Minor: 4}, true, false},
		{"4.4", "10", droidmedia.PlatformVersion{Major: 10}, true, false},
		{"", "5.1", droidmedia.PlatformVersion{Major: 5, Minor: 1}, true, false},
		{"x", "", droidmedia.PlatformVersion{}, false, true},
	}
	for _, tt := range tests {
		platformRelease = tt.linked
		t.Setenv("DROIDMEDIA_PLATFORM", tt.env)

		got, set, err := platformVersion()
		if (err != nil) != tt.wantErr {
			t.Errorf("platformVersion(%q, %q) error = %v, wantErr %v", tt.linked, tt.env, err, tt.wantErr)
			continue
		}
		if got != tt.want || set != tt.wantSet {
			t.Errorf("platformVersion(%q, %q) = %v, %v, want %v, %v", tt.linked, tt.env, got, set, tt.want, tt.wantSet)
		}
	}
}
