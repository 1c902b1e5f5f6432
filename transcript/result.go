// Package transcript obtains a text transcript for a YouTube video by
// trying an ordered sequence of extraction strategies: a direct caption
// fetch, language-variant fetches, the auto-generated caption track, a
// metadata-only track listing, and finally a content extract synthesized
// from video metadata. The outcome carries its classification as data;
// nothing downstream re-derives it from the text.
package transcript

import "strings"

// Classification states what kind of text a Result carries. It is set
// once at creation and persisted verbatim.
type Classification string

const (
	// Real is caption text downloaded from an actual caption track.
	Real Classification = "real"
	// ContentExtract is a synthesized substitute built from metadata or
	// a track listing; it is never spoken-word content.
	ContentExtract Classification = "content_extract"
	// Failed means no usable text could be produced at all.
	Failed Classification = "failed"
)

// Method identifies which strategy produced the result.
type Method string

const (
	MethodDirect          Method = "direct"
	MethodLanguageVariant Method = "language-variant"
	MethodAutoCaption     Method = "auto-caption"
	MethodTrackListing    Method = "track-listing"
	MethodMetadata        Method = "metadata"
)

// Result is the outcome of one extraction. The extractor never returns
// an error for a single video; failures are encoded here so the caller
// can do per-video bookkeeping without aborting a run.
type Result struct {
	VideoID        string
	Classification Classification
	Method         Method
	// Text is the cleaned transcript or content extract. Empty when Failed.
	Text string
	// Language is the language code of the caption track, when known.
	Language string
	// Err is the failure reason when Classification is Failed, or the
	// last extraction error when the pipeline fell back to a content
	// extract. Empty on a clean Real result.
	Err string
	// RateLimited is true when caption fetching hit a provider blocking
	// signal, even if the pipeline degraded to a content extract. The
	// circuit breaker keys off this, not off Classification.
	RateLimited bool
	// Attempts records every strategy attempt for diagnostics.
	Attempts []Attempt
}

// Attempt is one strategy attempt and its outcome.
type Attempt struct {
	Method   Method
	Language string
	Err      string
}

// IsReal reports whether the result is a confirmed caption transcript.
func (r *Result) IsReal() bool { return r.Classification == Real }

// Usable reports whether the result carries any text at all.
func (r *Result) Usable() bool { return r.Classification != Failed && r.Text != "" }

// attemptErrors joins attempt errors for a final failure message.
func attemptErrors(attempts []Attempt) string {
	var parts []string
	for _, a := range attempts {
		if a.Err == "" {
			continue
		}
		if a.Language != "" {
			parts = append(parts, string(a.Method)+"("+a.Language+"): "+a.Err)
		} else {
			parts = append(parts, string(a.Method)+": "+a.Err)
		}
	}
	return strings.Join(parts, "; ")
}
