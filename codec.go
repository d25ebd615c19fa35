package droidmedia

import "fmt"

// VideoCodec identifies the encoder's output format.
type VideoCodec int

const (
	VideoCodecUnknown VideoCodec = iota
	VideoCodecH264
	VideoCodecH265
	VideoCodecVP8
	VideoCodecVP9
	VideoCodecMPEG4
	VideoCodecH263
)

func (c VideoCodec) String() string {
	switch c {
	case VideoCodecH264:
		return "H264"
	case VideoCodecH265:
		return "H265"
	case VideoCodecVP8:
		return "VP8"
	case VideoCodecVP9:
		return "VP9"
	case VideoCodecMPEG4:
		return "MPEG4"
	case VideoCodecH263:
		return "H263"
	default:
		return "Unknown"
	}
}

// MimeType returns the platform MIME type used to select an encoder.
func (c VideoCodec) MimeType() string {
	switch c {
	case VideoCodecH264:
		return "video/avc"
	case VideoCodecH265:
		return "video/hevc"
	case VideoCodecVP8:
		return "video/x-vnd.on2.vp8"
	case VideoCodecVP9:
		return "video/x-vnd.on2.vp9"
	case VideoCodecMPEG4:
		return "video/mp4v-es"
	case VideoCodecH263:
		return "video/3gpp"
	default:
		return ""
	}
}

// RTPMimeType returns the MIME type used in SDP negotiation.
func (c VideoCodec) RTPMimeType() string {
	switch c {
	case VideoCodecH264:
		return "video/H264"
	case VideoCodecH265:
		return "video/H265"
	case VideoCodecVP8:
		return "video/VP8"
	case VideoCodecVP9:
		return "video/VP9"
	default:
		return ""
	}
}

// ClockRate returns the RTP clock rate for this codec.
func (c VideoCodec) ClockRate() uint32 {
	return 90000
}

// DefaultPayloadType returns a typical payload type for this codec.
// The actual payload type is negotiated via SDP.
func (c VideoCodec) DefaultPayloadType() uint8 {
	switch c {
	case VideoCodecVP8:
		return 96
	case VideoCodecVP9:
		return 98
	case VideoCodecH264:
		return 102
	case VideoCodecH265:
		return 104
	default:
		return 96
	}
}

// ParseVideoCodec parses a codec name or platform MIME type.
func ParseVideoCodec(s string) (VideoCodec, error) {
	for c := VideoCodecH264; c <= VideoCodecH263; c++ {
		if s == c.String() || s == c.MimeType() || s == c.RTPMimeType() {
			return c, nil
		}
	}
	switch s {
	case "h264", "avc":
		return VideoCodecH264, nil
	case "h265", "hevc":
		return VideoCodecH265, nil
	case "vp8":
		return VideoCodecVP8, nil
	case "vp9":
		return VideoCodecVP9, nil
	}
	return VideoCodecUnknown, fmt.Errorf("unknown video codec %q", s)
}

// ColorFormat is an OMX color format negotiated between camera and encoder.
type ColorFormat int32

const (
	ColorFormatUnknown              ColorFormat = 0
	ColorFormatYUV420Planar         ColorFormat = 19
	ColorFormatYUV420SemiPlanar     ColorFormat = 21
	ColorFormatAndroidOpaque        ColorFormat = 0x7F000789
	ColorFormatQCOMYUV420SemiPlanar ColorFormat = 0x7FA30C00
)

func (f ColorFormat) String() string {
	switch f {
	case ColorFormatUnknown:
		return "Unknown"
	case ColorFormatYUV420Planar:
		return "YUV420Planar"
	case ColorFormatYUV420SemiPlanar:
		return "YUV420SemiPlanar"
	case ColorFormatAndroidOpaque:
		return "AndroidOpaque"
	case ColorFormatQCOMYUV420SemiPlanar:
		return "QCOMYUV420SemiPlanar"
	default:
		return fmt.Sprintf("ColorFormat(0x%x)", int32(f))
	}
}
