package droidmedia

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yutopp/go-rtmp"
	rtmpmsg "github.com/yutopp/go-rtmp/message"
)

type capturedTag struct {
	ts   uint32
	body []byte
}

type mockTagWriter struct {
	tags []capturedTag
	err  error
}

func (w *mockTagWriter) WriteVideoTag(ts uint32, body []byte) error {
	if w.err != nil {
		return w.err
	}
	w.tags = append(w.tags, capturedTag{ts: ts, body: bytes.Clone(body)})
	return nil
}

func TestParseRTMPURL(t *testing.T) {
	tests := []struct {
		url      string
		wantAddr string
		wantApp  string
		wantName string
		wantErr  bool
	}{
		{"rtmp://localhost/live/cam0", "localhost:1935", "live", "cam0", false},
		{"rtmp://10.0.0.2:19350/app/stream", "10.0.0.2:19350", "app", "stream", false},
		{"rtmp://[::1]/live/cam0", "[::1]:1935", "live", "cam0", false},
		{"rtmp://localhost/live/", "", "", "", true},
		{"rtmp://localhost/live", "", "", "", true},
		{"rtmp:///live/cam0", "", "", "", true},
		{"http://localhost/live/cam0", "", "", "", true},
		{"://bad", "", "", "", true},
	}

	for _, tt := range tests {
		addr, app, name, err := ParseRTMPURL(tt.url)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseRTMPURL(%q) error = %v, wantErr %v", tt.url, err, tt.wantErr)
			continue
		}
		if addr != tt.wantAddr || app != tt.wantApp || name != tt.wantName {
			t.Errorf("ParseRTMPURL(%q) = %q, %q, %q, want %q, %q, %q",
				tt.url, addr, app, name, tt.wantAddr, tt.wantApp, tt.wantName)
		}
	}
}

func TestAVCDecoderConfigurationRecord(t *testing.T) {
	record, err := avcDecoderConfigurationRecord(testConfigAU)
	require.NoError(t, err)

	want := []byte{
		1, 0x42, 0xc0, 0x1f, 0xFF, 0xE1,
		0, 4, 0x67, 0x42, 0xc0, 0x1f,
		1,
		0, 4, 0x68, 0xce, 0x3c, 0x80,
	}
	assert.Equal(t, want, record)

	_, err = avcDecoderConfigurationRecord(testIDRAU)
	assert.Error(t, err)

	_, err = avcDecoderConfigurationRecord([]byte{0, 0, 0, 1, 0x67, 0x42})
	assert.Error(t, err, "truncated SPS")
}

func TestAppendVideoTagHeader(t *testing.T) {
	tests := []struct {
		frameType  byte
		packetType byte
		cts        int32
		want       []byte
	}{
		{flvFrameKey, flvAVCSeqHeader, 0, []byte{0x17, 0, 0, 0, 0}},
		{flvFrameKey, flvAVCNALU, 33, []byte{0x17, 1, 0, 0, 33}},
		{flvFrameInter, flvAVCNALU, 0x012345, []byte{0x27, 1, 0x01, 0x23, 0x45}},
		{flvFrameInter, flvAVCNALU, -1, []byte{0x27, 1, 0xff, 0xff, 0xff}},
	}

	for _, tt := range tests {
		got := appendVideoTagHeader(nil, tt.frameType, tt.packetType, tt.cts)
		if !bytes.Equal(got, tt.want) {
			t.Errorf("appendVideoTagHeader(%d, %d, %d) = %x, want %x", tt.frameType, tt.packetType, tt.cts, got, tt.want)
		}
		if len(got) != flvVideoHeaderSize {
			t.Errorf("header length = %d, want %d", len(got), flvVideoHeaderSize)
		}
	}
}

func TestAppendAVCC(t *testing.T) {
	got := appendAVCC([]byte{0xAA}, [][]byte{{0x65, 0x01}, nil, {0x41}})
	assert.Equal(t, []byte{0xAA, 0, 0, 0, 2, 0x65, 0x01, 0, 0, 0, 1, 0x41}, got)
}

func TestRTMPSink_SequenceHeaderFirst(t *testing.T) {
	w := &mockTagWriter{}
	sink := NewRTMPSink(w, nil)

	require.NoError(t, sink.WriteCodecData(&CodecData{Data: testSliceAU, TimestampNs: 900_000_000}))
	assert.Empty(t, w.tags, "frames before the sequence header are dropped")

	require.NoError(t, sink.WriteCodecData(&CodecData{Data: testConfigAU, TimestampNs: 1_000_000_000, CodecConfig: true}))
	require.NoError(t, sink.WriteCodecData(&CodecData{Data: testIDRAU, TimestampNs: 1_000_000_000, Sync: true}))
	require.NoError(t, sink.WriteCodecData(&CodecData{Data: testSliceAU, TimestampNs: 1_033_333_333}))

	require.Len(t, w.tags, 3)

	header := w.tags[0]
	assert.Zero(t, header.ts)
	assert.Equal(t, []byte{0x17, flvAVCSeqHeader, 0, 0, 0}, header.body[:flvVideoHeaderSize])
	assert.EqualValues(t, 1, header.body[flvVideoHeaderSize], "configurationVersion")

	idr := w.tags[1]
	assert.Zero(t, idr.ts)
	assert.Equal(t, []byte{0x17, flvAVCNALU, 0, 0, 0, 0, 0, 0, 4, 0x65, 0x88, 0x84, 0x21}, idr.body)

	slice := w.tags[2]
	assert.EqualValues(t, 33, slice.ts)
	assert.Equal(t, []byte{0x27, flvAVCNALU, 0, 0, 0, 0, 0, 0, 3, 0x41, 0x9a, 0x02}, slice.body)

	st := sink.Stats()
	assert.EqualValues(t, 1, st.SequenceHeaders)
	assert.EqualValues(t, 3, st.TagsSent)
	assert.EqualValues(t, 1, st.DroppedNoHeader)
}

func TestRTMPSink_FrameTypeAndCompositionTime(t *testing.T) {
	w := &mockTagWriter{}
	sink := NewRTMPSink(w, nil)

	require.NoError(t, sink.WriteCodecData(&CodecData{Data: testConfigAU, CodecConfig: true}))
	// IDR without the sync flag is still a keyframe.
	require.NoError(t, sink.WriteCodecData(&CodecData{
		Data:                testIDRAU,
		TimestampNs:         1_066_000_000,
		DecodingTimestampNs: 1_000_000_000,
	}))

	require.NoError(t, sink.WriteCodecData(&CodecData{
		Data:                testSliceAU,
		TimestampNs:         1_100_000_000,
		DecodingTimestampNs: 1_033_000_000,
	}))

	require.Len(t, w.tags, 3)
	tag := w.tags[1]
	assert.Zero(t, tag.ts)
	assert.Equal(t, []byte{0x17, flvAVCNALU, 0, 0, 66}, tag.body[:flvVideoHeaderSize])

	tag = w.tags[2]
	assert.EqualValues(t, 33, tag.ts, "tag time follows decode time")
	assert.Equal(t, []byte{0x27, flvAVCNALU, 0, 0, 67}, tag.body[:flvVideoHeaderSize])
}

func TestRTMPSink_TimestampBeforeBaseClamps(t *testing.T) {
	w := &mockTagWriter{}
	sink := NewRTMPSink(w, nil)

	require.NoError(t, sink.WriteCodecData(&CodecData{Data: testConfigAU, CodecConfig: true}))
	require.NoError(t, sink.WriteCodecData(&CodecData{Data: testIDRAU, TimestampNs: 2_000_000_000, Sync: true}))
	require.NoError(t, sink.WriteCodecData(&CodecData{Data: testSliceAU, TimestampNs: 1_000_000_000}))

	require.Len(t, w.tags, 3)
	assert.Zero(t, w.tags[2].ts)
}

func TestRTMPSink_BaseFromFirstFrame(t *testing.T) {
	w := &mockTagWriter{}
	sink := NewRTMPSink(w, nil)

	// Platform config buffers have no timestamp; frames carry boot-clock time.
	const uptime = int64(72 * time.Hour)
	require.NoError(t, sink.WriteCodecData(&CodecData{Data: testConfigAU, CodecConfig: true}))
	require.NoError(t, sink.WriteCodecData(&CodecData{Data: testIDRAU, TimestampNs: uptime, Sync: true}))
	require.NoError(t, sink.WriteCodecData(&CodecData{Data: testSliceAU, TimestampNs: uptime + 33_333_333}))
	require.NoError(t, sink.WriteCodecData(&CodecData{Data: testConfigAU, CodecConfig: true}))
	require.NoError(t, sink.WriteCodecData(&CodecData{Data: testIDRAU, TimestampNs: uptime + 66_666_666, Sync: true}))

	got := make([]uint32, len(w.tags))
	for i, tag := range w.tags {
		got[i] = tag.ts
	}
	assert.Equal(t, []uint32{0, 0, 33, 33, 66}, got)
	assert.EqualValues(t, 2, sink.Stats().SequenceHeaders)
}

func TestRTMPSink_Errors(t *testing.T) {
	t.Run("config without parameter sets", func(t *testing.T) {
		w := &mockTagWriter{}
		sink := NewRTMPSink(w, nil)
		assert.Error(t, sink.WriteCodecData(&CodecData{Data: testIDRAU, CodecConfig: true}))
		assert.Empty(t, w.tags)
		assert.EqualValues(t, 1, sink.Stats().DroppedMalformed)
	})

	t.Run("frame without start code", func(t *testing.T) {
		w := &mockTagWriter{}
		sink := NewRTMPSink(w, nil)
		require.NoError(t, sink.WriteCodecData(&CodecData{Data: testConfigAU, CodecConfig: true}))
		assert.Error(t, sink.WriteCodecData(&CodecData{Data: []byte{0x65, 0x88}}))
		assert.Len(t, w.tags, 1)
		assert.EqualValues(t, 1, sink.Stats().DroppedMalformed)
	})

	t.Run("empty buffer", func(t *testing.T) {
		w := &mockTagWriter{}
		sink := NewRTMPSink(w, nil)
		assert.NoError(t, sink.WriteCodecData(&CodecData{}))
		assert.Empty(t, w.tags)
	})

	t.Run("write failure", func(t *testing.T) {
		logger, hook := test.NewNullLogger()
		w := &mockTagWriter{err: errors.New("broken pipe")}
		sink := NewRTMPSink(w, logger)

		sink.Callbacks().DataAvailable(nil, &CodecData{Data: testConfigAU, CodecConfig: true})

		st := sink.Stats()
		assert.EqualValues(t, 1, st.WriteErrors)
		assert.Zero(t, st.SequenceHeaders)
		assert.Equal(t, 1, countMessages(hook, logrus.WarnLevel, "rtmp write failed"))

		// The header was never sent, so frames keep being dropped.
		w.err = nil
		require.NoError(t, sink.WriteCodecData(&CodecData{Data: testIDRAU, Sync: true}))
		assert.Empty(t, w.tags)
		assert.EqualValues(t, 1, sink.Stats().DroppedNoHeader)
	})
}

type rtmpCaptureHandler struct {
	rtmp.DefaultHandler

	mu        sync.Mutex
	published []string
	tags      []capturedTag
}

func (h *rtmpCaptureHandler) OnPublish(_ *rtmp.StreamContext, _ uint32, cmd *rtmpmsg.NetStreamPublish) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.published = append(h.published, cmd.PublishingName)
	return nil
}

func (h *rtmpCaptureHandler) OnVideo(timestamp uint32, payload io.Reader) error {
	body, err := io.ReadAll(payload)
	if err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.tags = append(h.tags, capturedTag{ts: timestamp, body: body})
	return nil
}

func (h *rtmpCaptureHandler) snapshot() ([]string, []capturedTag) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.published...), append([]capturedTag(nil), h.tags...)
}

func startRTMPServer(t *testing.T, h *rtmpCaptureHandler) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	logger, _ := test.NewNullLogger()
	srv := rtmp.NewServer(&rtmp.ServerConfig{
		OnConnect: func(conn net.Conn) (io.ReadWriteCloser, *rtmp.ConnConfig) {
			return conn, &rtmp.ConnConfig{
				Handler: h,
				ControlState: rtmp.StreamControlStateConfig{
					DefaultBandwidthWindowSize: 6 * 1024 * 1024,
				},
				Logger: logger,
			}
		},
	})
	go srv.Serve(ln)

	return ln.Addr().String()
}

func TestRTMPPublisher_PatternRecording(t *testing.T) {
	h := &rtmpCaptureHandler{}
	addr := startRTMPServer(t, h)

	logger, hook := test.NewNullLogger()
	pub, err := DialRTMP(fmt.Sprintf("rtmp://%s/live/cam0", addr), logger)
	require.NoError(t, err)
	defer pub.Close()

	backend := NewPatternBackend(PatternConfig{MaxFrames: 10, ColorFormat: ColorFormatYUV420SemiPlanar})
	config := DefaultEncoderConfig(VideoCodecH264, 320, 240)
	config.KeyframeInterval = 5
	config.BitrateBps = 64000
	rec, err := NewRecorder(0, &config,
		WithVideoSourceFactory(backend.Sources),
		WithEncoderFactory(backend.Encoders),
		WithLogger(logger),
	)
	require.NoError(t, err)
	defer rec.Close()

	sink := NewRTMPSink(pub, logger)
	rec.SetDataCallbacks(sink.Callbacks(), nil)
	require.NoError(t, rec.Start())
	waitStopped(t, rec)

	require.Eventually(t, func() bool {
		_, tags := h.snapshot()
		return len(tags) == 11
	}, 5*time.Second, 10*time.Millisecond)

	published, tags := h.snapshot()
	assert.Equal(t, []string{"cam0"}, published)

	assert.Equal(t, []byte{0x17, flvAVCSeqHeader}, tags[0].body[:2])
	var keys int
	for i, tag := range tags[1:] {
		require.Greater(t, len(tag.body), flvVideoHeaderSize+4)
		assert.EqualValues(t, flvAVCNALU, tag.body[1])
		if tag.body[0] == 0x17 {
			keys++
		}
		if i > 0 {
			assert.GreaterOrEqual(t, tag.ts, tags[i].ts, "timestamps are monotonic")
		}
	}
	assert.Equal(t, 2, keys)
	assert.EqualValues(t, 299, tags[len(tags)-1].ts)

	st := sink.Stats()
	assert.EqualValues(t, 11, st.TagsSent)
	assert.Zero(t, st.WriteErrors)
	assert.Zero(t, countMessages(hook, logrus.WarnLevel, "rtmp write failed"))
}

func TestDialRTMP_InvalidURL(t *testing.T) {
	_, err := DialRTMP("http://localhost/live/cam0", nil)
	assert.Error(t, err)
}
