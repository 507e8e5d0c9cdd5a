package blobstore

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	objectPrefix = "video_"
	maxExtLen    = 10
)

// ObjectName returns the deterministic stored name for a video id,
// e.g. ObjectName(42, ".MP4") == "video_42.MP4".
func ObjectName(id int64, ext string) string {
	return fmt.Sprintf("%s%d%s", objectPrefix, id, SanitizeExt(ext))
}

// SanitizeExt keeps a client supplied extension as sent, case included.
// Anything that is not a short ASCII alphanumeric suffix is dropped.
func SanitizeExt(ext string) string {
	ext = strings.TrimPrefix(ext, ".")
	if ext == "" || len(ext) > maxExtLen {
		return ""
	}
	for _, c := range ext {
		if (c < 'a' || c > 'z') && (c < 'A' || c > 'Z') && (c < '0' || c > '9') {
			return ""
		}
	}
	return "." + ext
}

// ParseObjectName extracts the video id from a stored name.
func ParseObjectName(name string) (int64, bool) {
	if !strings.HasPrefix(name, objectPrefix) {
		return 0, false
	}
	rest := strings.TrimPrefix(name, objectPrefix)
	if i := strings.IndexByte(rest, '.'); i >= 0 {
		if SanitizeExt(rest[i:]) != rest[i:] {
			return 0, false
		}
		rest = rest[:i]
	}
	id, err := strconv.ParseInt(rest, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
