// Package versions derives content-addressed versions for skill and plugin
// subtrees and orders author-supplied version strings.
package versions

import (
	"strings"

	"github.com/Masterminds/semver/v3"
)

// Compare orders two version strings, returning -1, 0 or 1. Semantic
// versions compare by precedence. If either side is not semver the
// comparison is plain string order.
func Compare(a, b string) int {
	av, errA := semver.NewVersion(a)
	bv, errB := semver.NewVersion(b)
	if errA != nil || errB != nil {
		return strings.Compare(a, b)
	}
	return av.Compare(bv)
}

// Latest returns whichever of current and candidate is newer. An empty
// current always yields candidate, and a tie keeps current.
func Latest(current, candidate string) string {
	if current == "" || Compare(candidate, current) > 0 {
		return candidate
	}
	return current
}
