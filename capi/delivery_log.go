//go:build cgo

// The delivery log is a C data_available implementation that records what it
// receives, so the exports can be driven the way a C caller sees them.

package main

/*
#include <stdlib.h>
#include <string.h>
#include "droidmedia.h"

#define DELIVERY_LOG_SIZE 16

typedef struct {
	int64_t ts;
	int64_t decoding_ts;
	bool sync;
	bool codec_config;
	ssize_t size;
	uint8_t head[5];
	void *user;
} delivery_entry;

static delivery_entry delivery_log[DELIVERY_LOG_SIZE];
static int delivery_count;
static int delivery_user;

static void log_data_available(void *user, DroidMediaCodecData *encoded) {
	int n = __atomic_load_n(&delivery_count, __ATOMIC_ACQUIRE);
	if (n >= DELIVERY_LOG_SIZE) {
		return;
	}
	delivery_entry *e = &delivery_log[n];
	memset(e, 0, sizeof(*e));
	e->ts = encoded->ts;
	e->decoding_ts = encoded->decoding_ts;
	e->sync = encoded->sync;
	e->codec_config = encoded->codec_config;
	e->size = encoded->data.size;
	if (encoded->data.data != NULL && encoded->data.size > 0) {
		size_t n_head = encoded->data.size < 5 ? (size_t)encoded->data.size : 5;
		memcpy(e->head, encoded->data.data, n_head);
	}
	e->user = user;
	__atomic_store_n(&delivery_count, n + 1, __ATOMIC_RELEASE);
}

static DroidMediaCodecDataCallbacks delivery_log_callbacks(void) {
	DroidMediaCodecDataCallbacks cb = { log_data_available };
	return cb;
}

static void *delivery_log_user(void) { return &delivery_user; }
static int delivery_log_len(void) { return __atomic_load_n(&delivery_count, __ATOMIC_ACQUIRE); }
static void delivery_log_reset(void) { __atomic_store_n(&delivery_count, 0, __ATOMIC_RELEASE); }
static delivery_entry delivery_log_at(int i) { return delivery_log[i]; }
*/
import "C"

import "unsafe"

// loggedDelivery is one record seen by the C callback.
type loggedDelivery struct {
	TimestampNs         int64
	DecodingTimestampNs int64
	Sync                bool
	CodecConfig         bool
	Size                int
	Head                [5]byte
	OwnUser             bool
}

// encoderMeta is the Go form of DroidMediaCodecEncoderMetaData.
type encoderMeta struct {
	Type             string
	Width            int32
	Height           int32
	FPS              int32
	Bitrate          int32
	ColorFormat      int32
	KeyFrameInterval int32
}

// createFromMeta calls droid_media_recorder_create with a struct built from
// m and returns the handle and the color format written back into it.
func createFromMeta(m encoderMeta) (C.uintptr_t, int32) {
	var meta C.DroidMediaCodecEncoderMetaData
	if m.Type != "" {
		ctype := C.CString(m.Type)
		defer C.free(unsafe.Pointer(ctype))
		meta.parent._type = ctype
	}
	meta.parent.width = C.int32_t(m.Width)
	meta.parent.height = C.int32_t(m.Height)
	meta.parent.fps = C.int32_t(m.FPS)
	meta.bitrate = C.int32_t(m.Bitrate)
	meta.color_format = C.int32_t(m.ColorFormat)
	meta.max_key_frame_interval = C.int32_t(m.KeyFrameInterval)

	h := droid_media_recorder_create(nil, &meta)
	return h, int32(meta.color_format)
}

// setLoggingCallbacks installs the C delivery log on h.
func setLoggingCallbacks(h C.uintptr_t) {
	cb := C.delivery_log_callbacks()
	droid_media_recorder_set_data_callbacks(h, &cb, C.delivery_log_user())
}

// loggingBinding returns the binding deliver receives for the C delivery log.
func loggingBinding() *cCallbacks {
	return &cCallbacks{table: C.delivery_log_callbacks(), user: C.delivery_log_user()}
}

func resetDeliveryLog() { C.delivery_log_reset() }

func deliveryLog() []loggedDelivery {
	n := int(C.delivery_log_len())
	out := make([]loggedDelivery, n)
	user := C.delivery_log_user()
	for i := range out {
		e := C.delivery_log_at(C.int(i))
		d := loggedDelivery{
			TimestampNs:         int64(e.ts),
			DecodingTimestampNs: int64(e.decoding_ts),
			Sync:                bool(e.sync),
			CodecConfig:         bool(e.codec_config),
			Size:                int(e.size),
			OwnUser:             e.user == user,
		}
		for j := range d.Head {
			d.Head[j] = byte(e.head[j])
		}
		out[i] = d
	}
	return out
}
