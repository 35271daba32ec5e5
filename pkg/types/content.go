// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// MaxContentChars caps paper content handed to analysis prompts. Longer
// documents are cut and marked rather than dropped.
const MaxContentChars = 200000

// TruncationNotice is appended to content cut at MaxContentChars.
const TruncationNotice = "\n\n[... truncated for length ...]"

// TruncateContent enforces MaxContentChars on s.
func TruncateContent(s string) string {
	if len(s) <= MaxContentChars {
		return s
	}
	return s[:MaxContentChars] + TruncationNotice
}
