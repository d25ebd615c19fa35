package droidmedia

// FrameType classifies an encoded access unit.
type FrameType int

const (
	FrameTypeUnknown FrameType = iota
	FrameTypeKey               // Sync frame, decodable on its own
	FrameTypeDelta             // Requires previous frames
	FrameTypeConfig            // Decoder initialization data (SPS/PPS, VOS, ...)
)

func (f FrameType) String() string {
	switch f {
	case FrameTypeKey:
		return "Key"
	case FrameTypeDelta:
		return "Delta"
	case FrameTypeConfig:
		return "Config"
	default:
		return "Unknown"
	}
}

// MediaBuffer is one encoded buffer owned by its MediaSource.
// The recorder borrows it for the duration of a single callback and then
// calls Release exactly once. Data must not be used after Release.
type MediaBuffer interface {
	// Data returns the valid range of the buffer (offset + length applied).
	Data() []byte

	// MetaData returns the metadata attached to this buffer.
	MetaData() MetaReader

	// Release hands the buffer back to its source.
	Release()
}

// CodecData is the normalized record handed to DataCallbacks.
// Data points into the source's buffer and is only valid until the
// callback returns; use Clone to keep it.
type CodecData struct {
	Data                []byte
	TimestampNs         int64 // Presentation timestamp in nanoseconds (0 if unknown)
	DecodingTimestampNs int64 // Decode timestamp in nanoseconds (0 if unknown)
	Sync                bool  // Sync (key) frame
	CodecConfig         bool  // Codec configuration data
}

// FrameType derives the frame classification from the flags.
func (d *CodecData) FrameType() FrameType {
	switch {
	case d.CodecConfig:
		return FrameTypeConfig
	case d.Sync:
		return FrameTypeKey
	default:
		return FrameTypeDelta
	}
}

// Clone creates a deep copy of the record, detaching Data from the source.
func (d *CodecData) Clone() *CodecData {
	clone := *d
	if d.Data != nil {
		clone.Data = make([]byte, len(d.Data))
		copy(clone.Data, d.Data)
	}
	return &clone
}

// ExtractCodecData normalizes a buffer's metadata into a CodecData record.
// Microsecond timestamps are converted to nanoseconds. The second return
// value is false when the buffer carries no presentation timestamp, in which
// case TimestampNs is 0.
func ExtractCodecData(buf MediaBuffer) (CodecData, bool) {
	data := CodecData{Data: buf.Data()}
	meta := buf.MetaData()
	if meta == nil {
		return data, false
	}

	ts, hasTimestamp := meta.FindInt64(KeyTime)
	if hasTimestamp {
		data.TimestampNs = ts * 1000
	}

	if dts, ok := meta.FindInt64(KeyDecodingTime); ok && dts != 0 {
		data.DecodingTimestampNs = dts * 1000
	}

	if sync, ok := meta.FindInt32(KeyIsSyncFrame); ok && sync != 0 {
		data.Sync = true
	}

	if conf, ok := meta.FindInt32(KeyIsCodecConfig); ok && conf != 0 {
		data.CodecConfig = true
	}

	return data, hasTimestamp
}
