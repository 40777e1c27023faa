// Package translate is the machine-translation collaborator consumed by the
// reading and compose pipelines. The core treats an Engine call as atomic:
// retries, rate limiting, and skip decisions live behind the interface.
package translate

import "context"

// Request is one translation call.
type Request struct {
	// Text is the payload: plain text or Markdown.
	Text string
	// TargetLang is an ISO-639-1 code ("en", "tr", ...).
	TargetLang string
	// SourceLang is an ISO code or "auto".
	SourceLang string
	// CheckIfNeeded asks the engine to first decide whether translation is
	// needed (source already equals target). When it is not, the engine
	// returns a skipped Result instead of burning a model call.
	CheckIfNeeded bool
}

// Result is the tagged outcome of a successful call. Transport and model
// failures are ordinary Go errors from Translate.
type Result struct {
	// Skipped is true when the engine decided no translation is needed.
	Skipped bool
	// SkipReason explains a skip ("same language", "no letters").
	SkipReason string
	// Text is the translated payload. Empty when Skipped.
	Text string
	// SourceLang is the detected or caller-provided source language.
	SourceLang string
	// TargetLang echoes the request.
	TargetLang string
}

// Engine performs machine translation. Implementations must be safe for
// concurrent use and resilient to transient failure on their own.
type Engine interface {
	Translate(ctx context.Context, req Request) (*Result, error)
}
