//go:build cgo

// Command capi builds the recorder as a C shared library:
//
//	go build -buildmode=c-shared -o libdroidmediarecorder.so ./capi
//
// Recorder handles are cgo.Handle values; 0 means no recorder.
//
// The target platform release defaults to the one set at link time with
//
//	-ldflags "-X main.platformRelease=4.4"
//
// and can be overridden with DROIDMEDIA_PLATFORM. DROIDMEDIA_BACKEND selects
// a registered backend other than native.
package main

/*
#include "droidmedia.h"
*/
import "C"

import (
	"os"
	"runtime"
	"runtime/cgo"
	"unsafe"

	"github.com/sirupsen/logrus"

	"github.com/thesyncim/droidmedia"
)

// platformRelease is the target release ("major" or "major.minor").
var platformRelease string

// platformVersion returns the configured target release, if any.
func platformVersion() (droidmedia.PlatformVersion, bool, error) {
	release := platformRelease
	if env := os.Getenv("DROIDMEDIA_PLATFORM"); env != "" {
		release = env
	}
	if release == "" {
		return droidmedia.PlatformVersion{}, false, nil
	}
	v, err := droidmedia.ParsePlatformVersion(release)
	if err != nil {
		return droidmedia.PlatformVersion{}, false, err
	}
	return v, true, nil
}

func recorderOptions() ([]droidmedia.RecorderOption, error) {
	var opts []droidmedia.RecorderOption
	v, ok, err := platformVersion()
	if err != nil {
		return nil, err
	}
	if ok {
		opts = append(opts, droidmedia.WithPlatformVersion(v))
	}
	if backend := os.Getenv("DROIDMEDIA_BACKEND"); backend != "" {
		opts = append(opts, droidmedia.WithBackend(backend))
	}
	return opts, nil
}

// cCallbacks carries the C callback table and user pointer through the
// recorder's user data.
type cCallbacks struct {
	table C.DroidMediaCodecDataCallbacks
	user  unsafe.Pointer
}

func recorderFromHandle(h C.uintptr_t) *droidmedia.Recorder {
	if h == 0 {
		return nil
	}
	r, _ := cgo.Handle(h).Value().(*droidmedia.Recorder)
	return r
}

func encoderConfigFromC(meta *C.DroidMediaCodecEncoderMetaData) (droidmedia.EncoderConfig, error) {
	codec := droidmedia.VideoCodecH264
	if meta.parent._type != nil {
		var err error
		if codec, err = droidmedia.ParseVideoCodec(C.GoString(meta.parent._type)); err != nil {
			return droidmedia.EncoderConfig{}, err
		}
	}
	return droidmedia.EncoderConfig{
		Codec:                       codec,
		Width:                       int(meta.parent.width),
		Height:                      int(meta.parent.height),
		FPS:                         int(meta.parent.fps),
		BitrateBps:                  int(meta.bitrate),
		KeyframeInterval:            int(meta.max_key_frame_interval),
		Stride:                      int(meta.stride),
		SliceHeight:                 int(meta.slice_height),
		ColorFormat:                 droidmedia.ColorFormat(meta.color_format),
		StoreMetaDataInVideoBuffers: bool(meta.meta_data),
	}, nil
}

//export droid_media_recorder_create
func droid_media_recorder_create(camera unsafe.Pointer, meta *C.DroidMediaCodecEncoderMetaData) C.uintptr_t {
	if meta == nil {
		logrus.Error("droid_media_recorder_create: nil encoder metadata")
		return 0
	}
	cfg, err := encoderConfigFromC(meta)
	if err != nil {
		logrus.WithError(err).Error("droid_media_recorder_create")
		return 0
	}

	opts, err := recorderOptions()
	if err != nil {
		logrus.WithError(err).Error("droid_media_recorder_create")
		return 0
	}

	r, err := droidmedia.NewRecorder(droidmedia.CameraHandle(uintptr(camera)), &cfg, opts...)
	if err != nil {
		logrus.WithError(err).Error("droid_media_recorder_create")
		return 0
	}
	meta.color_format = C.int32_t(cfg.ColorFormat)

	return C.uintptr_t(cgo.NewHandle(r))
}

//export droid_media_recorder_destroy
func droid_media_recorder_destroy(h C.uintptr_t) {
	r := recorderFromHandle(h)
	if r == nil {
		return
	}
	if err := r.Close(); err != nil {
		logrus.WithError(err).WithField("recorder", r.ID()).Warn("release recorder")
	}
	cgo.Handle(h).Delete()
}

//export droid_media_recorder_start
func droid_media_recorder_start(h C.uintptr_t) C.bool {
	r := recorderFromHandle(h)
	if r == nil {
		return C.bool(false)
	}
	return C.bool(r.Start() == nil)
}

//export droid_media_recorder_stop
func droid_media_recorder_stop(h C.uintptr_t) {
	if r := recorderFromHandle(h); r != nil {
		r.Stop()
	}
}

//export droid_media_recorder_set_data_callbacks
func droid_media_recorder_set_data_callbacks(h C.uintptr_t, cb *C.DroidMediaCodecDataCallbacks, data unsafe.Pointer) {
	r := recorderFromHandle(h)
	if r == nil {
		return
	}
	var table C.DroidMediaCodecDataCallbacks
	if cb != nil {
		table = *cb
	}
	r.SetDataCallbacks(droidmedia.DataCallbacks{DataAvailable: deliver}, &cCallbacks{table: table, user: data})
}

// deliver forwards one buffer to C. Go-owned payloads are pinned for the
// duration of the call.
func deliver(userData any, d *droidmedia.CodecData) {
	cbs, ok := userData.(*cCallbacks)
	if !ok {
		return
	}

	var pinner runtime.Pinner
	defer pinner.Unpin()

	var rec C.DroidMediaCodecData
	if len(d.Data) > 0 {
		pinner.Pin(&d.Data[0])
		rec.data.data = unsafe.Pointer(&d.Data[0])
		rec.data.size = C.ssize_t(len(d.Data))
	}
	rec.ts = C.int64_t(d.TimestampNs)
	rec.decoding_ts = C.int64_t(d.DecodingTimestampNs)
	rec.sync = C.bool(d.Sync)
	rec.codec_config = C.bool(d.CodecConfig)

	C.droid_media_call_data_available(cbs.table, cbs.user, &rec)
}

func main() {}
