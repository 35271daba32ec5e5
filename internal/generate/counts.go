// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package generate

import (
	"github.com/pdiddy/hypothesis-engine/pkg/types"
)

// Allocate splits a hypothesis budget across generation strategies.
// Priority: dev isolation forces everything tool-based; with literature
// available the budget splits between tools and debate (tools never
// below one, and a split that would leave debate empty collapses to
// all-tools); without tool calling everything goes to grounded debate;
// without literature everything goes to ungrounded debate in degraded
// mode. The returned counts always sum to the (clamped) total.
func Allocate(total int, available, enableTools, devIsolation bool) types.GenerationCounts {
	if total < 1 {
		total = 1
	}

	switch {
	case devIsolation:
		return types.GenerationCounts{ToolsCount: total, IsDevIsolation: true}

	case available && enableTools:
		tools := total / 2
		if tools < 1 {
			tools = 1
		}
		debateWithLit := total - tools
		if debateWithLit == 0 {
			tools = total
		}
		return types.GenerationCounts{ToolsCount: tools, DebateWithLitCount: debateWithLit}

	case available:
		return types.GenerationCounts{DebateWithLitCount: total}

	default:
		return types.GenerationCounts{DebateOnlyCount: total, IsDegradedMode: true}
	}
}

// literatureAvailable reports whether generation may ground itself in a
// literature digest. All three conditions must hold: a digest exists, it
// is not the failure sentinel, and the tool backend answered its probe.
func literatureAvailable(digest string, mcpAvailable bool) bool {
	return digest != "" && digest != types.ReviewFailedSentinel && mcpAvailable
}
