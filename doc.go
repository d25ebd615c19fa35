// Package droidmedia records encoded video from an already opened camera.
//
// A Recorder binds a video source to the camera, builds a hardware encoder
// on top of it and, between Start and Stop, pumps encoded buffers to a
// DataCallbacks function on a dedicated goroutine.
//
// Key pieces include:
//   - Recorder: create, start, stop, close and callback registration
//   - ExtractCodecData: buffer metadata to CodecData (µs to ns, sync and
//     codec-config flags)
//   - Backends: the native shim and a synthetic pattern backend
//   - RTPSink and LocalTrack for publishing recordings over RTP and WebRTC
//   - RTMPSink for publishing H.264 recordings to an RTMP server
//
// # Architecture
//
//	Camera -> VideoSource -> MediaSource (encoder) -> pump -> DataCallbacks
//	DataCallbacks -> RTPSink -> H264Packetizer -> RTPWriter (UDP, LocalTrack)
//	DataCallbacks -> RTMPSink -> FLV AVC tags -> RTMPPublisher
//
// # Native Library
//
// The native backend loads libdroidmedia_shim.so with purego, searching
// DROIDMEDIA_LIB_PATH, the executable's directory and the system and hybris
// library directories. Build with the nonative tag to leave it out.
//
// # Buffer Ownership
//
// Each buffer is released after its callback returns. CodecData.Data is only
// valid inside the callback; use Clone to keep it.
package droidmedia
