// Package thumbnail derives a JPEG thumbnail for an uploaded video, either
// from a caller supplied image or from a frame decoded out of the stored file.
package thumbnail

import "encoding/base64"

// Source tells where a derived thumbnail came from.
type Source string

const (
	SourceSupplied Source = "supplied"
	SourceFrame    Source = "frame"
)

// Reason explains why no thumbnail could be derived.
type Reason string

const (
	ReasonNoSource      Reason = "no_source"
	ReasonEmpty         Reason = "empty_video"
	ReasonTooShort      Reason = "too_short"
	ReasonUnsupported   Reason = "unsupported"
	ReasonDecoderAbsent Reason = "decoder_unavailable"
	ReasonTimeout       Reason = "timeout"
)

// Result is either Derived (JPEG set) or Unavailable (Reason set).
type Result struct {
	JPEG   []byte
	Source Source
	Reason Reason
	Err    error
}

func Derived(jpeg []byte, src Source) Result {
	return Result{JPEG: jpeg, Source: src}
}

func Unavailable(reason Reason, err error) Result {
	return Result{Reason: reason, Err: err}
}

func (r Result) OK() bool { return len(r.JPEG) > 0 }

// Base64 returns the thumbnail as standard base64 text, or nil when unavailable.
func (r Result) Base64() *string {
	if !r.OK() {
		return nil
	}
	s := base64.StdEncoding.EncodeToString(r.JPEG)
	return &s
}
