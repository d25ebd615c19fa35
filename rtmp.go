package droidmedia

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"net"
	"net/url"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/yutopp/go-rtmp"
	rtmpmsg "github.com/yutopp/go-rtmp/message"
)

// FLV video tag constants
const (
	flvCodecAVC        = 7
	flvFrameKey        = 1
	flvFrameInter      = 2
	flvAVCSeqHeader    = 0
	flvAVCNALU         = 1
	flvVideoHeaderSize = 5
)

const (
	rtmpDefaultPort  = "1935"
	rtmpChunkSize    = 128
	rtmpVideoChunkID = 6
)

// VideoTagWriter publishes FLV video tag bodies with millisecond timestamps.
type VideoTagWriter interface {
	WriteVideoTag(timestampMs uint32, body []byte) error
}

// RTMPPublisher is a live RTMP publish session.
type RTMPPublisher struct {
	client *rtmp.ClientConn
	stream *rtmp.Stream
	mu     sync.Mutex
}

// ParseRTMPURL splits rtmp://host[:port]/app/name into a dial address, the
// application and the stream name.
func ParseRTMPURL(rawURL string) (addr, app, name string, err error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", "", "", err
	}
	if u.Scheme != "rtmp" {
		return "", "", "", fmt.Errorf("unsupported RTMP scheme %q", u.Scheme)
	}
	host, port := u.Hostname(), u.Port()
	if host == "" {
		return "", "", "", fmt.Errorf("RTMP URL %q has no host", rawURL)
	}
	if port == "" {
		port = rtmpDefaultPort
	}
	addr = net.JoinHostPort(host, port)
	app, name, _ = strings.Cut(strings.TrimPrefix(u.Path, "/"), "/")
	if app == "" || name == "" {
		return "", "", "", fmt.Errorf("RTMP URL %q needs /app/stream", rawURL)
	}
	return addr, app, name, nil
}

// DialRTMP connects to an RTMP server and starts publishing a live stream.
func DialRTMP(rawURL string, log logrus.FieldLogger) (*RTMPPublisher, error) {
	addr, app, name, err := ParseRTMPURL(rawURL)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = defaultLogger()
	}

	client, err := rtmp.Dial("rtmp", addr, &rtmp.ConnConfig{Logger: log})
	if err != nil {
		return nil, fmt.Errorf("rtmp dial %s: %w", addr, err)
	}

	tcURL := strings.TrimSuffix(rawURL, "/"+name)
	if err := client.Connect(&rtmpmsg.NetConnectionConnect{
		Command: rtmpmsg.NetConnectionConnectCommand{
			App:      app,
			Type:     "nonprivate",
			FlashVer: "droidmedia",
			TCURL:    tcURL,
		},
	}); err != nil {
		client.Close()
		return nil, fmt.Errorf("rtmp connect: %w", err)
	}

	stream, err := client.CreateStream(nil, rtmpChunkSize)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("rtmp create stream: %w", err)
	}

	if err := stream.Publish(&rtmpmsg.NetStreamPublish{
		PublishingName: name,
		PublishingType: "live",
	}); err != nil {
		stream.Close()
		client.Close()
		return nil, fmt.Errorf("rtmp publish %s: %w", name, err)
	}

	return &RTMPPublisher{client: client, stream: stream}, nil
}

// WriteVideoTag sends one video message. body is copied.
func (p *RTMPPublisher) WriteVideoTag(timestampMs uint32, body []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stream.Write(rtmpVideoChunkID, timestampMs, &rtmpmsg.VideoMessage{
		Payload: bytes.NewReader(bytes.Clone(body)),
	})
}

// Close ends the stream and the connection.
func (p *RTMPPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stream.Close()
	return p.client.Close()
}

// RTMPSinkStats provides sink statistics.
type RTMPSinkStats struct {
	SequenceHeaders  uint64
	TagsSent         uint64
	BytesSent        uint64
	DroppedNoHeader  uint64
	DroppedMalformed uint64
	WriteErrors      uint64
}

// RTMPSink converts recorder output to FLV AVC video tags.
// Frames are dropped until a codec config buffer has produced the AVC
// sequence header.
type RTMPSink struct {
	writer VideoTagWriter
	log    logrus.FieldLogger

	haveHeader bool
	baseNs     int64
	haveBase   bool
	lastMs     uint32
	tag        []byte
	stats      RTMPSinkStats
	mu         sync.Mutex
}

// NewRTMPSink creates a sink writing tags to w.
func NewRTMPSink(w VideoTagWriter, log logrus.FieldLogger) *RTMPSink {
	if log == nil {
		log = defaultLogger()
	}
	return &RTMPSink{writer: w, log: log}
}

// Callbacks returns DataCallbacks that feed this sink. Write errors are
// logged and counted.
func (s *RTMPSink) Callbacks() DataCallbacks {
	return DataCallbacks{
		DataAvailable: func(_ any, data *CodecData) {
			if err := s.WriteCodecData(data); err != nil {
				s.log.WithError(err).Warn("rtmp write failed")
			}
		},
	}
}

// WriteCodecData converts one delivered buffer. It copies what it keeps.
func (s *RTMPSink) WriteCodecData(data *CodecData) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(data.Data) == 0 {
		return nil
	}

	if data.CodecConfig {
		record, err := avcDecoderConfigurationRecord(data.Data)
		if err != nil {
			s.stats.DroppedMalformed++
			return err
		}
		s.tag = appendVideoTagHeader(s.tag[:0], flvFrameKey, flvAVCSeqHeader, 0)
		s.tag = append(s.tag, record...)
		if err := s.send(s.headerTimestampMs(), s.tag); err != nil {
			return err
		}
		s.haveHeader = true
		s.stats.SequenceHeaders++
		return nil
	}

	if !s.haveHeader {
		s.stats.DroppedNoHeader++
		return nil
	}

	frameType := byte(flvFrameInter)
	if data.Sync {
		frameType = flvFrameKey
	} else if t, ok := firstNALType(data.Data); ok && t == nalTypeIDR {
		frameType = flvFrameKey
	}

	var cts int32
	if data.DecodingTimestampNs != 0 {
		cts = int32((data.TimestampNs - data.DecodingTimestampNs) / 1e6)
	}

	s.tag = appendVideoTagHeader(s.tag[:0], frameType, flvAVCNALU, cts)
	s.tag = appendAVCC(s.tag, parseAnnexBNALUnits(data.Data))
	if len(s.tag) == flvVideoHeaderSize {
		s.stats.DroppedMalformed++
		return fmt.Errorf("no NAL units found in access unit")
	}
	return s.send(s.timestampMs(data), s.tag)
}

// headerTimestampMs returns the time of the last frame tag, or 0 before the
// first frame. Codec config buffers usually carry no timestamp.
func (s *RTMPSink) headerTimestampMs() uint32 {
	return s.lastMs
}

// timestampMs returns the tag timestamp relative to the first frame.
// Decode time is used when the encoder reports it.
func (s *RTMPSink) timestampMs(data *CodecData) uint32 {
	ts := data.TimestampNs
	if data.DecodingTimestampNs != 0 {
		ts = data.DecodingTimestampNs
	}
	if !s.haveBase {
		s.baseNs = ts
		s.haveBase = true
	}
	if ts < s.baseNs {
		s.lastMs = 0
	} else {
		s.lastMs = uint32((ts - s.baseNs) / 1e6)
	}
	return s.lastMs
}

func (s *RTMPSink) send(ts uint32, body []byte) error {
	if err := s.writer.WriteVideoTag(ts, body); err != nil {
		s.stats.WriteErrors++
		return err
	}
	s.stats.TagsSent++
	s.stats.BytesSent += uint64(len(body))
	return nil
}

// Stats returns sink statistics.
func (s *RTMPSink) Stats() RTMPSinkStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// appendVideoTagHeader appends the 5-byte AVC video tag header.
// cts is the composition time offset in milliseconds (signed 24-bit).
func appendVideoTagHeader(b []byte, frameType, packetType byte, cts int32) []byte {
	return append(b,
		frameType<<4|flvCodecAVC,
		packetType,
		byte(cts>>16), byte(cts>>8), byte(cts),
	)
}

// appendAVCC appends NAL units with 4-byte big-endian length prefixes.
func appendAVCC(b []byte, nalus [][]byte) []byte {
	for _, nalu := range nalus {
		if len(nalu) == 0 {
			continue
		}
		b = binary.BigEndian.AppendUint32(b, uint32(len(nalu)))
		b = append(b, nalu...)
	}
	return b
}

// avcDecoderConfigurationRecord builds the ISO/IEC 14496-15 record from an
// Annex-B buffer holding SPS and PPS.
func avcDecoderConfigurationRecord(annexB []byte) ([]byte, error) {
	var sps, pps []byte
	for _, nalu := range parseAnnexBNALUnits(annexB) {
		if len(nalu) == 0 {
			continue
		}
		switch nalu[0] & 0x1F {
		case nalTypeSPS:
			if sps == nil {
				sps = nalu
			}
		case nalTypePPS:
			if pps == nil {
				pps = nalu
			}
		}
	}
	if len(sps) < 4 || len(pps) == 0 {
		return nil, fmt.Errorf("codec config without SPS and PPS")
	}

	record := make([]byte, 0, 11+len(sps)+len(pps))
	record = append(record,
		1,      // configurationVersion
		sps[1], // AVCProfileIndication
		sps[2], // profile_compatibility
		sps[3], // AVCLevelIndication
		0xFF,   // lengthSizeMinusOne = 3
		0xE1,   // one SPS
	)
	record = binary.BigEndian.AppendUint16(record, uint16(len(sps)))
	record = append(record, sps...)
	record = append(record, 1) // one PPS
	record = binary.BigEndian.AppendUint16(record, uint16(len(pps)))
	record = append(record, pps...)
	return record, nil
}

var _ VideoTagWriter = (*RTMPPublisher)(nil)
