package droidmedia

import (
	"fmt"
	"sync"
)

// MetaKey identifies an entry in a buffer or format metadata map.
// Keys are four-character codes packed big-endian, matching the platform.
type MetaKey uint32

// Well-known metadata keys.
const (
	KeyTime          MetaKey = 't'<<24 | 'i'<<16 | 'm'<<8 | 'e' // int64, presentation time in microseconds
	KeyDecodingTime  MetaKey = 'd'<<24 | 'e'<<16 | 'c'<<8 | 'T' // int64, decode time in microseconds
	KeyIsSyncFrame   MetaKey = 's'<<24 | 'y'<<16 | 'n'<<8 | 'c' // int32, non-zero for sync frames
	KeyIsCodecConfig MetaKey = 'c'<<24 | 'o'<<16 | 'n'<<8 | 'f' // int32, non-zero for codec config buffers
	KeyColorFormat   MetaKey = 'c'<<24 | 'o'<<16 | 'l'<<8 | 'f' // int32, negotiated color format
	KeyWidth         MetaKey = 'w'<<24 | 'i'<<16 | 'd'<<8 | 't' // int32
	KeyHeight        MetaKey = 'h'<<24 | 'e'<<16 | 'i'<<8 | 'g' // int32
	KeyFrameRate     MetaKey = 'f'<<24 | 'r'<<16 | 'm'<<8 | 'R' // int32
)

func (k MetaKey) String() string {
	b := []byte{byte(k >> 24), byte(k >> 16), byte(k >> 8), byte(k)}
	for _, c := range b {
		if c < 0x20 || c > 0x7e {
			return fmt.Sprintf("0x%08x", uint32(k))
		}
	}
	return string(b)
}

// MetaReader looks up typed metadata entries.
// A lookup fails if the key is absent or was stored with a different type.
type MetaReader interface {
	FindInt32(key MetaKey) (int32, bool)
	FindInt64(key MetaKey) (int64, bool)
}

type metaType uint8

const (
	metaTypeInt32 metaType = iota + 1
	metaTypeInt64
)

type metaItem struct {
	typ   metaType
	value int64
}

// MetaData is a typed key/value map attached to buffers and formats.
// It is safe for concurrent use.
type MetaData struct {
	items map[MetaKey]metaItem
	mu    sync.RWMutex
}

// NewMetaData creates an empty metadata map.
func NewMetaData() *MetaData {
	return &MetaData{items: make(map[MetaKey]metaItem)}
}

// SetInt32 stores an int32 entry, replacing any previous value.
func (m *MetaData) SetInt32(key MetaKey, v int32) *MetaData {
	m.set(key, metaItem{typ: metaTypeInt32, value: int64(v)})
	return m
}

// SetInt64 stores an int64 entry, replacing any previous value.
func (m *MetaData) SetInt64(key MetaKey, v int64) *MetaData {
	m.set(key, metaItem{typ: metaTypeInt64, value: v})
	return m
}

func (m *MetaData) set(key MetaKey, item metaItem) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.items == nil {
		m.items = make(map[MetaKey]metaItem)
	}
	m.items[key] = item
}

// FindInt32 returns the int32 entry for key.
func (m *MetaData) FindInt32(key MetaKey) (int32, bool) {
	item, ok := m.find(key, metaTypeInt32)
	return int32(item), ok
}

// FindInt64 returns the int64 entry for key.
func (m *MetaData) FindInt64(key MetaKey) (int64, bool) {
	return m.find(key, metaTypeInt64)
}

func (m *MetaData) find(key MetaKey, typ metaType) (int64, bool) {
	if m == nil {
		return 0, false
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	item, ok := m.items[key]
	if !ok || item.typ != typ {
		return 0, false
	}
	return item.value, true
}

// Remove deletes the entry for key.
func (m *MetaData) Remove(key MetaKey) {
	m.mu.Lock()
	delete(m.items, key)
	m.mu.Unlock()
}

// Clear removes all entries.
func (m *MetaData) Clear() {
	m.mu.Lock()
	clear(m.items)
	m.mu.Unlock()
}

// Len returns the number of entries.
func (m *MetaData) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items)
}
