package droidmedia

// DetectVideoCodec guesses the codec of an encoded buffer from its first
// bytes. It recognizes:
//   - H.264 and H.265 in Annex-B form (H.265 only from its parameter sets)
//   - VP8 keyframes and VP9 frames
//   - MPEG-4 Part 2 and H.263 start codes
//
// Returns VideoCodecUnknown if the codec cannot be determined.
func DetectVideoCodec(data []byte) VideoCodec {
	if len(data) < 4 {
		return VideoCodecUnknown
	}

	if isAnnexBStartCode(data) {
		nal := nalUnitAt(data)
		if len(nal) == 0 {
			return VideoCodecUnknown
		}
		switch {
		case nal[0] >= 0xB0:
			// Visual object sequence, VOP and friends; never a valid NAL header.
			return VideoCodecMPEG4
		case isH265ParameterSet(nal):
			return VideoCodecH265
		case isH264NALType(nal[0] & 0x1F):
			return VideoCodecH264
		}
		return VideoCodecUnknown
	}

	// H.263 picture start code: 22 bits 0000 0000 0000 0000 1000 00
	if data[0] == 0 && data[1] == 0 && data[2]&0xFC == 0x80 {
		return VideoCodecH263
	}

	if isVP8Keyframe(data) {
		return VideoCodecVP8
	}
	if isVP9Frame(data) {
		return VideoCodecVP9
	}

	return VideoCodecUnknown
}

// isAnnexBStartCode checks for a 3- or 4-byte start code at the beginning
// of data.
func isAnnexBStartCode(data []byte) bool {
	if len(data) < 4 {
		return false
	}
	if data[0] == 0 && data[1] == 0 && data[2] == 0 && data[3] == 1 {
		return true
	}
	return data[0] == 0 && data[1] == 0 && data[2] == 1
}

// nalUnitAt returns data after the leading start code.
func nalUnitAt(data []byte) []byte {
	if data[2] == 0 {
		return data[4:]
	}
	return data[3:]
}

// isH264NALType checks if nalType is a valid H.264 NAL unit type
// (ITU-T H.264 Table 7-1).
func isH264NALType(nalType byte) bool {
	return (nalType >= 1 && nalType <= 12) || (nalType >= 19 && nalType <= 21)
}

// isH265ParameterSet reports whether nal starts with the two-byte header of
// a base layer H.265 VPS, SPS or PPS (types 32-34, temporal id 0).
func isH265ParameterSet(nal []byte) bool {
	if len(nal) < 2 || nal[1] != 0x01 {
		return false
	}
	switch nal[0] {
	case 0x40, 0x42, 0x44:
		return true
	}
	return false
}

// isVP8Keyframe checks for the VP8 keyframe start code (RFC 6386 9.1).
func isVP8Keyframe(data []byte) bool {
	if len(data) < 10 {
		return false
	}
	if data[0]&0x01 != 0 {
		return false
	}
	return data[3] == 0x9D && data[4] == 0x01 && data[5] == 0x2A
}

// isVP9Frame checks for the VP9 frame marker 0b10 in the top bits.
func isVP9Frame(data []byte) bool {
	if len(data) < 3 {
		return false
	}
	return (data[0]>>6)&0x03 == 0x02
}
