// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "context"

// ProgressEvent is a coarse-grained pipeline status update for interactive
// callers. Events are advisory: dropping them never changes results.
type ProgressEvent struct {
	// Name identifies the event (e.g. "generation_start").
	Name string `json:"name" yaml:"name"`

	// Message is a human-readable status line.
	Message string `json:"message" yaml:"message"`

	// Progress is the pipeline position in [0,1].
	Progress float64 `json:"progress" yaml:"progress"`

	// Extra carries event-specific flags (e.g. degraded_mode).
	Extra map[string]any `json:"extra,omitempty" yaml:"extra,omitempty"`
}

// ProgressFunc receives progress events. A nil ProgressFunc is valid and
// discards events.
type ProgressFunc func(ctx context.Context, ev ProgressEvent)

// Emit calls f when non-nil.
func (f ProgressFunc) Emit(ctx context.Context, ev ProgressEvent) {
	if f != nil {
		f(ctx, ev)
	}
}
