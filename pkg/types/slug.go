// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"crypto/md5"
	"encoding/hex"
)

// ResearchSlug derives the stable pool partition name for a research
// goal. Every phase working on the same goal shares one partition, so
// repeated runs and later pipeline stages reuse previously downloaded
// fulltexts.
func ResearchSlug(goal string) string {
	sum := md5.Sum([]byte(goal))
	return "research_" + hex.EncodeToString(sum[:])[:8]
}
