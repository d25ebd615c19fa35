package droidmedia

import (
	"fmt"
	"sync"

	"github.com/pion/rtp"
)

// H264 NAL unit types
const (
	nalTypeSlice = 1
	nalTypeIDR   = 5
	nalTypeSEI   = 6
	nalTypeSPS   = 7
	nalTypePPS   = 8
	nalTypeFUA   = 28 // Fragmentation Unit A
)

const rtpHeaderSize = 12

// H264Packetizer splits Annex-B access units into RTP packets
// (single NAL unit mode plus FU-A fragmentation).
type H264Packetizer struct {
	ssrc        uint32
	payloadType uint8
	mtu         int
	sequencer   rtp.Sequencer
	mu          sync.Mutex
}

// NewH264Packetizer creates a new H.264 RTP packetizer.
func NewH264Packetizer(ssrc uint32, payloadType uint8, mtu int) *H264Packetizer {
	if mtu <= 0 {
		mtu = 1200
	}
	return &H264Packetizer{
		ssrc:        ssrc,
		payloadType: payloadType,
		mtu:         mtu,
		sequencer:   rtp.NewRandomSequencer(),
	}
}

// Packetize converts an Annex-B access unit into RTP packets sharing
// timestamp. When marker is set the last packet carries the marker bit.
func (p *H264Packetizer) Packetize(data []byte, timestamp uint32, marker bool) ([]*rtp.Packet, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(data) == 0 {
		return nil, nil
	}

	nalUnits := parseAnnexBNALUnits(data)
	if len(nalUnits) == 0 {
		return nil, fmt.Errorf("no NAL units found in access unit")
	}

	var packets []*rtp.Packet
	for i, nalu := range nalUnits {
		last := marker && i == len(nalUnits)-1

		if len(nalu) <= p.mtu-rtpHeaderSize {
			packets = append(packets, p.packet(nalu, timestamp, last))
			continue
		}
		packets = append(packets, p.fragmentNALUnit(nalu, timestamp, last)...)
	}

	return packets, nil
}

func (p *H264Packetizer) packet(payload []byte, timestamp uint32, marker bool) *rtp.Packet {
	return &rtp.Packet{
		Header: rtp.Header{
			Version:        2,
			Marker:         marker,
			PayloadType:    p.payloadType,
			SequenceNumber: p.sequencer.NextSequenceNumber(),
			Timestamp:      timestamp,
			SSRC:           p.ssrc,
		},
		Payload: payload,
	}
}

// fragmentNALUnit fragments a large NAL unit into FU-A packets.
func (p *H264Packetizer) fragmentNALUnit(nalu []byte, timestamp uint32, markLast bool) []*rtp.Packet {
	nalHeader := nalu[0]
	nalType := nalHeader & 0x1F
	nri := nalHeader & 0x60

	payload := nalu[1:]
	maxPayload := p.mtu - rtpHeaderSize - 2 // FU indicator + FU header

	var packets []*rtp.Packet
	for offset := 0; offset < len(payload); {
		end := min(offset+maxPayload, len(payload))

		fuHeader := nalType
		if offset == 0 {
			fuHeader |= 0x80 // S
		}
		if end == len(payload) {
			fuHeader |= 0x40 // E
		}

		pktPayload := make([]byte, 2+end-offset)
		pktPayload[0] = nri | nalTypeFUA
		pktPayload[1] = fuHeader
		copy(pktPayload[2:], payload[offset:end])

		packets = append(packets, p.packet(pktPayload, timestamp, markLast && end == len(payload)))
		offset = end
	}

	return packets
}

func (p *H264Packetizer) SSRC() uint32       { p.mu.Lock(); defer p.mu.Unlock(); return p.ssrc }
func (p *H264Packetizer) PayloadType() uint8 { p.mu.Lock(); defer p.mu.Unlock(); return p.payloadType }
func (p *H264Packetizer) MTU() int           { p.mu.Lock(); defer p.mu.Unlock(); return p.mtu }

// parseAnnexBNALUnits splits Annex-B data on 3- and 4-byte start codes.
func parseAnnexBNALUnits(data []byte) [][]byte {
	var nalUnits [][]byte
	start := -1

	for i := 0; i < len(data); i++ {
		codeLen := 0
		switch {
		case i+3 < len(data) && data[i] == 0 && data[i+1] == 0 && data[i+2] == 0 && data[i+3] == 1:
			codeLen = 4
		case i+2 < len(data) && data[i] == 0 && data[i+1] == 0 && data[i+2] == 1:
			codeLen = 3
		default:
			continue
		}
		if start >= 0 && i > start {
			nalUnits = append(nalUnits, data[start:i])
		}
		start = i + codeLen
		i += codeLen - 1
	}

	if start >= 0 && start < len(data) {
		nalUnits = append(nalUnits, data[start:])
	}

	return nalUnits
}

// firstNALType returns the type of the first NAL unit in an Annex-B buffer.
func firstNALType(data []byte) (uint8, bool) {
	nalus := parseAnnexBNALUnits(data)
	if len(nalus) == 0 || len(nalus[0]) == 0 {
		return 0, false
	}
	return nalus[0][0] & 0x1F, true
}
