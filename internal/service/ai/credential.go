package ai

import (
	"regexp"
	"strings"
)

var embeddedToken = regexp.MustCompile(`[A-Za-z0-9_-]{30,}`)

// SanitizeCredential repairs keys pasted together with a URL by extracting the token-like part.
// It is a convenience for misconfigured environments, not validation.
func SanitizeCredential(raw string) string {
	key := strings.TrimSpace(raw)
	if !strings.HasPrefix(strings.ToLower(key), "http") {
		return key
	}
	if m := embeddedToken.FindString(key); m != "" {
		return m
	}
	return key
}
