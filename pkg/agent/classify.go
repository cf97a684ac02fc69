package agent

import "strings"

// authMarkers are substrings that mark an agent-run failure as
// authentication-flavored. The agent contract gives us no typed error
// category, so this heuristic is the single place the string matching lives;
// swap it out here without touching the retry state machine.
var authMarkers = []string{
	"401",
	"403",
	"unauthorized",
	"unauthenticated",
	"authentication",
	"invalid_token",
	"token expired",
	"forbidden",
}

// IsAuthError reports whether an agent-run error looks like an upstream
// authentication failure worth a credential refresh and one retry.
func IsAuthError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range authMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
