// Package scope derives tenant partition keys from user/agent identifiers.
//
// Keys are restricted to [A-Za-z0-9_-] so they can be used directly as graph
// partition labels. Sanitization is deterministic and idempotent. Distinct raw
// identifiers can collide after sanitization ("a/b" and "a_b" both map to
// "a_b"); that is an accepted limitation: keys stay human-readable and no
// reversible encoding is applied.
package scope

import "regexp"

var invalidChars = regexp.MustCompile(`[^a-zA-Z0-9_-]`)

func sanitize(id string) string {
	return invalidChars.ReplaceAllString(id, "_")
}

// Key builds the partition key for a user, optionally narrowed to one agent.
// An empty agentID yields the user-wide key.
func Key(userID, agentID string) string {
	uid := sanitize(userID)
	if agentID == "" {
		return uid
	}
	return uid + "_" + sanitize(agentID)
}

// Group returns the partition keys a search should span: the user-wide key,
// plus the agent-specific key when agentID is set. Searching both trades
// recall breadth against precision; the caller decides by passing agentID.
func Group(userID, agentID string) []string {
	keys := []string{Key(userID, "")}
	if agentID != "" {
		keys = append(keys, Key(userID, agentID))
	}
	return keys
}
