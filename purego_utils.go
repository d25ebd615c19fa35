//go:build linux && !nonative

// Shared utilities for the purego bindings.

package droidmedia

import (
	"os"
	"path/filepath"
	"unsafe"
)

// LibPathEnv names the directory searched first for native libraries.
const LibPathEnv = "DROIDMEDIA_LIB_PATH"

// goStringFromPtr converts a C string pointer to a Go string.
func goStringFromPtr(ptr uintptr) string {
	if ptr == 0 {
		return ""
	}
	p := unsafe.Pointer(ptr)
	var length int
	for *(*byte)(unsafe.Add(p, length)) != 0 {
		length++
		if length > 1024 { // Safety limit
			break
		}
	}
	if length == 0 {
		return ""
	}
	return string(unsafe.Slice((*byte)(p), length))
}

// findLibrary searches for a library in common locations.
// An empty result lets the dynamic linker search its default paths.
func findLibrary(libName string) string {
	searchPaths := []string{os.Getenv(LibPathEnv)}

	if exe, err := os.Executable(); err == nil {
		searchPaths = append(searchPaths, filepath.Dir(exe))
	}
	searchPaths = append(searchPaths,
		"build",
		"../build",
		"/system/lib64",
		"/system/lib",
		"/vendor/lib64",
		"/vendor/lib",
		"/usr/libexec/droid-hybris/system/lib64",
		"/usr/libexec/droid-hybris/system/lib",
		"/usr/local/lib",
		"/usr/lib",
	)

	for _, p := range searchPaths {
		if p == "" {
			continue
		}
		candidate := filepath.Join(p, libName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}

	return ""
}
