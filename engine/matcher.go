package engine

import (
	"strings"

	"github.com/macnak/simulant/config"
)

// MatchesRequest applies an endpoint's body-match rule to an incoming
// request body. Endpoints without a rule accept everything.
func MatchesRequest(rm *config.RequestMatch, body string) bool {
	if rm == nil {
		return true
	}

	switch rm.BodyMatch {
	case config.BodyMatchAny, config.BodyMatchIgnore, "":
		return true
	case config.BodyMatchExact:
		return rm.Body != nil && *rm.Body == body
	case config.BodyMatchContains:
		return rm.Body != nil && strings.Contains(body, *rm.Body)
	}
	return false
}
