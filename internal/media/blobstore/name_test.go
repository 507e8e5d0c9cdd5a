package blobstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestObjectName(t *testing.T) {
	tests := []struct {
		id   int64
		ext  string
		want string
	}{
		{42, ".mp4", "video_42.mp4"},
		{42, ".MP4", "video_42.MP4"},
		{42, ".Mov", "video_42.Mov"},
		{7, "mov", "video_7.mov"},
		{7, "", "video_7"},
		{7, ".tar.gz", "video_7"},
		{7, "./../x", "video_7"},
		{7, ".abcdefghijk", "video_7"},
	}

	for _, tt := range tests {
		t.Run(tt.want+"/"+tt.ext, func(t *testing.T) {
			assert.Equal(t, tt.want, ObjectName(tt.id, tt.ext))
		})
	}
}

func TestObjectName_Deterministic(t *testing.T) {
	for i := 0; i < 3; i++ {
		assert.Equal(t, ObjectName(99, ".webm"), ObjectName(99, ".webm"))
	}
}

func TestParseObjectName(t *testing.T) {
	tests := []struct {
		name   string
		wantID int64
		wantOK bool
	}{
		{"video_42.mp4", 42, true},
		{"video_7", 7, true},
		{"video_0.mp4", 0, false},
		{"video_x.mp4", 0, false},
		{"clip_1.mp4", 0, false},
		{"video_3.MP4", 3, true},
		{"video_3.m-4", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, ok := ParseObjectName(tt.name)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantID, id)
		})
	}
}
