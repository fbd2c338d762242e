package keys

import (
	"crypto/sha256"
	"fmt"
	"strings"
)

// RowSep separates the cache key from the tag in a tag row id.
const RowSep = "#"

var rowEscaper = strings.NewReplacer(`\`, `\\`, RowSep, `\`+RowSep)

// RowID returns the tag table id for (cacheKey, tag). '\' and '#' in the key
// are backslash-escaped, so the first unescaped '#' always ends the key and
// distinct pairs never share an id. Keys without either keep the
// "<key>#<tag>" shape.
func RowID(cacheKey, tag string) string { return rowEscaper.Replace(cacheKey) + RowSep + tag }

// Tags returns tags with empties and duplicates removed, first occurrence kept.
func Tags(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if t == "" {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

// Join builds a ':'-separated storage key from non-empty parts.
func Join(parts ...string) string {
	nonEmpty := parts[:0:0]
	for _, p := range parts {
		if p != "" {
			nonEmpty = append(nonEmpty, p)
		}
	}
	return strings.Join(nonEmpty, ":")
}

// Short returns prefix + ":" + the first 16 hex chars of sha256(s).
// Used where a backend limits key length.
func Short(prefix, s string) string {
	sum := sha256.Sum256([]byte(s))
	return fmt.Sprintf("%s:%x", prefix, sum)[:len(prefix)+1+16]
}
