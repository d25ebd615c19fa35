package droidmedia

import (
	"strings"
	"sync"
	"sync/atomic"

	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
)

type trackBinding struct {
	id          string
	ssrc        webrtc.SSRC
	payloadType webrtc.PayloadType
	writer      webrtc.TrackLocalWriter
}

// LocalTrack implements pion's webrtc.TrackLocal for recorder output.
// It is an RTPWriter, so an RTPSink can publish a recording to every peer
// connection the track is added to. SSRC and payload type are rewritten per
// binding.
type LocalTrack struct {
	id       string
	streamID string
	rid      string
	codec    webrtc.RTPCodecCapability

	ended    atomic.Bool
	bindMu   sync.RWMutex
	bindings []trackBinding
}

// NewLocalTrack creates a video track for codec.
func NewLocalTrack(codec VideoCodec, id, streamID string) *LocalTrack {
	return &LocalTrack{
		id:       id,
		streamID: streamID,
		codec: webrtc.RTPCodecCapability{
			MimeType:  codec.RTPMimeType(),
			ClockRate: codec.ClockRate(),
		},
	}
}

func (t *LocalTrack) ID() string                { return t.id }
func (t *LocalTrack) StreamID() string          { return t.streamID }
func (t *LocalTrack) RID() string               { return t.rid }
func (t *LocalTrack) Kind() webrtc.RTPCodecType { return webrtc.RTPCodecTypeVideo }

// Codec returns the codec capability.
func (t *LocalTrack) Codec() webrtc.RTPCodecCapability {
	return t.codec
}

// Bind implements webrtc.TrackLocal.
func (t *LocalTrack) Bind(ctx webrtc.TrackLocalContext) (webrtc.RTPCodecParameters, error) {
	for _, p := range ctx.CodecParameters() {
		if strings.EqualFold(p.MimeType, t.codec.MimeType) {
			t.bindMu.Lock()
			t.bindings = append(t.bindings, trackBinding{
				id:          ctx.ID(),
				ssrc:        ctx.SSRC(),
				payloadType: p.PayloadType,
				writer:      ctx.WriteStream(),
			})
			t.bindMu.Unlock()
			return p, nil
		}
	}
	return webrtc.RTPCodecParameters{}, webrtc.ErrUnsupportedCodec
}

// Unbind implements webrtc.TrackLocal.
func (t *LocalTrack) Unbind(ctx webrtc.TrackLocalContext) error {
	t.bindMu.Lock()
	defer t.bindMu.Unlock()

	for i, b := range t.bindings {
		if b.id == ctx.ID() {
			t.bindings = append(t.bindings[:i], t.bindings[i+1:]...)
			break
		}
	}
	return nil
}

// Bindings returns the number of active bindings.
func (t *LocalTrack) Bindings() int {
	t.bindMu.RLock()
	defer t.bindMu.RUnlock()
	return len(t.bindings)
}

// WriteRTP writes an RTP packet to all bound contexts.
func (t *LocalTrack) WriteRTP(p *rtp.Packet) error {
	if t.ended.Load() {
		return nil
	}

	t.bindMu.RLock()
	defer t.bindMu.RUnlock()

	for _, b := range t.bindings {
		h := p.Header
		h.SSRC = uint32(b.ssrc)
		h.PayloadType = uint8(b.payloadType)
		if _, err := b.writer.WriteRTP(&h, p.Payload); err != nil {
			return err
		}
	}
	return nil
}

// WriteRTPBytes writes raw RTP bytes to all bound contexts.
func (t *LocalTrack) WriteRTPBytes(b []byte) error {
	var p rtp.Packet
	if err := p.Unmarshal(b); err != nil {
		return err
	}
	return t.WriteRTP(&p)
}

// Close ends the track; later writes are dropped.
func (t *LocalTrack) Close() error {
	t.ended.Store(true)
	return nil
}

var (
	_ webrtc.TrackLocal = (*LocalTrack)(nil)
	_ RTPWriter         = (*LocalTrack)(nil)
)
