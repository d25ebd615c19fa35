package droidmedia

import (
	"encoding/binary"
	"fmt"
	"io"
	"sync"

	"github.com/google/uuid"
	"github.com/pion/rtp"
	"github.com/sirupsen/logrus"
)

// RTPPacket is an alias to pion's rtp.Packet.
type RTPPacket = rtp.Packet

// RTPWriter is an interface for writing RTP packets.
type RTPWriter interface {
	// WriteRTP writes an RTP packet.
	WriteRTP(packet *RTPPacket) error

	// WriteRTPBytes writes raw RTP packet bytes.
	WriteRTPBytes(data []byte) error
}

// StreamRTPWriter marshals packets onto an io.Writer, one Write per packet.
// Use it with datagram connections such as *net.UDPConn.
type StreamRTPWriter struct {
	w   io.Writer
	buf []byte
	mu  sync.Mutex
}

// NewStreamRTPWriter wraps w.
func NewStreamRTPWriter(w io.Writer) *StreamRTPWriter {
	return &StreamRTPWriter{w: w, buf: make([]byte, 1500)}
}

// WriteRTP marshals and writes packet.
func (s *StreamRTPWriter) WriteRTP(packet *RTPPacket) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	size := packet.MarshalSize()
	if cap(s.buf) < size {
		s.buf = make([]byte, size)
	}
	n, err := packet.MarshalTo(s.buf[:size])
	if err != nil {
		return err
	}
	_, err = s.w.Write(s.buf[:n])
	return err
}

// WriteRTPBytes writes an already marshaled packet.
func (s *StreamRTPWriter) WriteRTPBytes(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.w.Write(data)
	return err
}

// RTPSinkConfig configures an RTPSink.
type RTPSinkConfig struct {
	Codec       VideoCodec // Only H264 is supported
	Writer      RTPWriter  // Destination
	SSRC        uint32     // 0 = random
	PayloadType uint8      // 0 = codec default
	MTU         int        // 0 = 1200

	Logger logrus.FieldLogger
}

// RTPSinkStats provides sink statistics.
type RTPSinkStats struct {
	AccessUnits  uint64
	ConfigsSeen  uint64
	PacketsSent  uint64
	BytesSent    uint64
	WriteErrors  uint64
	DroppedEmpty uint64
}

// RTPSink packetizes recorder output and writes it as RTP.
// Codec config buffers are cached and sent in front of every sync frame so
// receivers can join at any keyframe.
type RTPSink struct {
	packetizer *H264Packetizer
	writer     RTPWriter
	clockRate  uint32
	log        logrus.FieldLogger

	config []byte
	stats  RTPSinkStats
	mu     sync.Mutex
}

// NewRTPSink creates a sink for the configured codec.
func NewRTPSink(config RTPSinkConfig) (*RTPSink, error) {
	if config.Codec != VideoCodecH264 {
		return nil, fmt.Errorf("%w: RTP output for %s", ErrNotSupported, config.Codec)
	}
	if config.Writer == nil {
		return nil, fmt.Errorf("writer is required")
	}
	ssrc := config.SSRC
	if ssrc == 0 {
		id := uuid.New()
		ssrc = binary.BigEndian.Uint32(id[:4])
	}
	pt := config.PayloadType
	if pt == 0 {
		pt = config.Codec.DefaultPayloadType()
	}
	log := config.Logger
	if log == nil {
		log = defaultLogger()
	}

	return &RTPSink{
		packetizer: NewH264Packetizer(ssrc, pt, config.MTU),
		writer:     config.Writer,
		clockRate:  config.Codec.ClockRate(),
		log:        log.WithField("ssrc", ssrc),
	}, nil
}

// SSRC returns the stream's SSRC.
func (s *RTPSink) SSRC() uint32 { return s.packetizer.SSRC() }

// Callbacks returns DataCallbacks that feed this sink. Write errors are
// logged and counted; they never stop the recorder.
func (s *RTPSink) Callbacks() DataCallbacks {
	return DataCallbacks{
		DataAvailable: func(_ any, data *CodecData) {
			if err := s.WriteCodecData(data); err != nil {
				s.log.WithError(err).Warn("rtp write failed")
			}
		},
	}
}

// RTPTimestamp converts a nanosecond timestamp to the sink's RTP clock,
// wrapping modulo 2^32. Negative timestamps map to 0.
func (s *RTPSink) RTPTimestamp(ns int64) uint32 {
	if ns <= 0 {
		return 0
	}
	clock := uint64(s.clockRate)
	sec, frac := uint64(ns)/1e9, uint64(ns)%1e9
	return uint32(sec*clock + frac*clock/1e9)
}

// WriteCodecData packetizes one delivered buffer. It copies what it keeps,
// so it is safe to call from DataAvailable.
func (s *RTPSink) WriteCodecData(data *CodecData) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(data.Data) == 0 {
		s.stats.DroppedEmpty++
		return nil
	}

	if data.CodecConfig {
		s.config = append(s.config[:0], data.Data...)
		s.stats.ConfigsSeen++
		return nil
	}

	ts := s.RTPTimestamp(data.TimestampNs)
	key := data.Sync
	if !key {
		if t, ok := firstNALType(data.Data); ok && t == nalTypeIDR {
			key = true
		}
	}

	var packets []*rtp.Packet
	if key && len(s.config) > 0 {
		cfg, err := s.packetizer.Packetize(s.config, ts, false)
		if err != nil {
			return err
		}
		packets = append(packets, cfg...)
	}
	au, err := s.packetizer.Packetize(data.Data, ts, true)
	if err != nil {
		return err
	}
	packets = append(packets, au...)

	s.stats.AccessUnits++
	for _, pkt := range packets {
		if err := s.writer.WriteRTP(pkt); err != nil {
			s.stats.WriteErrors++
			return err
		}
		s.stats.PacketsSent++
		s.stats.BytesSent += uint64(pkt.MarshalSize())
	}
	return nil
}

// Stats returns sink statistics.
func (s *RTPSink) Stats() RTPSinkStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}
