// Package matching selects the endpoint rule that serves a request.
// The matcher is a pure function over a rule snapshot; it holds no
// state and is safe for concurrent use.
package matching

import (
	"strings"

	"github.com/mockbird/mockbird/pkg/project"
)

// Match picks exactly one rule for (method, path) or returns nil when
// nothing matches.
//
// Selection order:
//  1. Candidates are the rules whose normalized path equals the
//     normalized request path.
//  2. A rule with the exact request method beats an ANY rule.
//  3. Rules that still tie are resolved to the most recently updated
//     one, so the outcome is deterministic and reproducible. The admin
//     tooling documents this tie-break for its users.
func Match(rules []*project.Endpoint, method, path string) *project.Endpoint {
	method = strings.ToUpper(method)
	path = project.NormalizePath(path)

	var best *project.Endpoint
	var bestExact bool

	for _, rule := range rules {
		if rule == nil || project.NormalizePath(rule.RequestPath) != path {
			continue
		}

		ruleMethod := strings.ToUpper(rule.RequestMethod)
		exact := ruleMethod == method
		if !exact && ruleMethod != project.MethodAny {
			continue
		}

		switch {
		case best == nil:
			best, bestExact = rule, exact
		case exact && !bestExact:
			best, bestExact = rule, true
		case exact == bestExact && rule.UpdatedAt.After(best.UpdatedAt):
			best = rule
		}
	}

	return best
}
