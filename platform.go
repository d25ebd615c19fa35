package droidmedia

import (
	"fmt"
	"strconv"
	"strings"
)

// PlatformVersion is the target OS release a backend builds objects for.
type PlatformVersion struct {
	Major int
	Minor int
}

// DefaultPlatformVersion is used when no version is configured.
var DefaultPlatformVersion = PlatformVersion{Major: 7, Minor: 1}

func (v PlatformVersion) String() string {
	return fmt.Sprintf("%d.%d", v.Major, v.Minor)
}

// AtLeast reports whether v is major.minor or later.
func (v PlatformVersion) AtLeast(major, minor int) bool {
	if v.Major != major {
		return v.Major > major
	}
	return v.Minor >= minor
}

// ParsePlatformVersion parses "major" or "major.minor".
func ParsePlatformVersion(s string) (PlatformVersion, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return PlatformVersion{}, fmt.Errorf("empty platform version")
	}
	majorStr, minorStr, hasMinor := strings.Cut(s, ".")
	major, err := strconv.Atoi(majorStr)
	if err != nil || major < 0 {
		return PlatformVersion{}, fmt.Errorf("invalid platform version %q", s)
	}
	v := PlatformVersion{Major: major}
	if hasMinor {
		minor, err := strconv.Atoi(minorStr)
		if err != nil || minor < 0 {
			return PlatformVersion{}, fmt.Errorf("invalid platform version %q", s)
		}
		v.Minor = minor
	}
	return v, nil
}

// MarshalText implements encoding.TextMarshaler.
func (v PlatformVersion) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (v *PlatformVersion) UnmarshalText(text []byte) error {
	parsed, err := ParsePlatformVersion(string(text))
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// Sentinels understood by the camera service.
const (
	UseCallingUID = -1
	UseCallingPID = -1
)

// ClientIdentity names the camera client on platforms that require it.
type ClientIdentity struct {
	Name   string
	UID    int
	PID    int
	HasUID bool
	HasPID bool
}

// ClientIdentityFor returns the identity fields the given release expects
// when a camera source is built from an already opened camera:
// none before 4.4, name and uid from 4.4, pid as well from 7.0.
func ClientIdentityFor(v PlatformVersion) ClientIdentity {
	var id ClientIdentity
	if !v.AtLeast(4, 4) {
		return id
	}
	id.Name = "droidmedia"
	id.UID = UseCallingUID
	id.HasUID = true
	if v.AtLeast(7, 0) {
		id.PID = UseCallingPID
		id.HasPID = true
	}
	return id
}

// NeedsLooper reports whether encoders on this release run on an explicit
// event loop that must be started and stopped with the recorder.
func (v PlatformVersion) NeedsLooper() bool {
	return v.Major >= 5
}
