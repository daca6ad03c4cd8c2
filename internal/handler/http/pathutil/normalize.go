package pathutil

import (
	"regexp"
	"strings"
)

// PathPattern maps concrete paths to a metric label template.
type PathPattern struct {
	Pattern  *regexp.Regexp
	Template string
}

// pathPatterns keeps metric label cardinality bounded.
var pathPatterns = []*PathPattern{
	{Pattern: regexp.MustCompile(`^/deadletters/messages/[^/]+$`), Template: "/deadletters/messages/:id"},
	{Pattern: regexp.MustCompile(`^/deadletters/replay/batch$`), Template: "/deadletters/replay/batch"},
	{Pattern: regexp.MustCompile(`^/deadletters/replay/[^/]+$`), Template: "/deadletters/replay/:id"},
}

// knownPaths are served as-is; everything else collapses to "other".
var knownPaths = map[string]bool{
	"/enrichments":          true,
	"/providers":            true,
	"/deadletters/messages": true,
	"/deadletters/stats":    true,
	"/health":               true,
	"/health/ready":         true,
	"/metrics":              true,
}

// NormalizePath returns the metric label for path.
func NormalizePath(path string) string {
	if idx := strings.IndexByte(path, '?'); idx != -1 {
		path = path[:idx]
	}
	if len(path) > 1 && path[len(path)-1] == '/' {
		path = path[:len(path)-1]
	}

	for _, p := range pathPatterns {
		if p.Pattern.MatchString(path) {
			return p.Template
		}
	}
	if knownPaths[path] {
		return path
	}
	return "other"
}
