// Package fingerprint provides the stable hashes used for job identity:
// a canonicalized URL hash and a content fingerprint.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"
)

var (
	tagPattern        = regexp.MustCompile(`<[^>]*>`)
	whitespacePattern = regexp.MustCompile(`\s+`)
)

// URLHash returns the SHA-256 hex digest of a canonicalized URL: lowercased,
// query string and fragment removed, trailing slashes trimmed. Two URLs that
// differ only in case, tracking parameters, or a trailing slash hash equal.
func URLHash(rawURL string) string {
	u := strings.ToLower(strings.TrimSpace(rawURL))
	if i := strings.IndexAny(u, "?#"); i >= 0 {
		u = u[:i]
	}
	u = strings.TrimRight(u, "/")
	sum := sha256.Sum256([]byte(u))
	return hex.EncodeToString(sum[:])
}

// Content returns the SHA-256 hex digest of a job body: HTML tags removed,
// whitespace collapsed to single spaces, lowercased. Equal fingerprints mean
// the same posting text regardless of markup or source formatting.
func Content(content string) string {
	text := tagPattern.ReplaceAllString(content, " ")
	text = whitespacePattern.ReplaceAllString(text, " ")
	text = strings.ToLower(strings.TrimSpace(text))
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// SyntheticJobID builds a stable surrogate id for platforms that expose no
// posting id. The first 16 bytes of the digest keep ids short while staying
// collision-safe at this scale.
func SyntheticJobID(source, company, title string) string {
	sum := sha256.Sum256([]byte(source + "|" + company + "|" + title))
	return hex.EncodeToString(sum[:16])
}
