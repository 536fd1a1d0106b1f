// Package keys builds the Redis and hotness keys for selection results.
package keys

import (
	"fmt"
	"sort"
	"strings"
	"unicode"

	"github.com/cespare/xxhash/v2"
)

const prefix = "hexselect:result"

// Params are the request parameters that shape a selection result.
type Params map[string]string

// Canonical renders params as sorted k=v pairs joined by '&'. Values have
// ASCII whitespace collapsed; empty values are dropped.
func (p Params) Canonical() string {
	ks := make([]string, 0, len(p))
	for k, v := range p {
		if strings.TrimSpace(v) == "" {
			continue
		}
		ks = append(ks, k)
	}
	sort.Strings(ks)

	var b strings.Builder
	for i, k := range ks {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(strings.TrimSpace(k))
		b.WriteByte('=')
		b.WriteString(collapseASCIIWhitespace(p[k]))
	}
	return b.String()
}

// ResultKey identifies a cached result. The dataset content hash is part of
// the key, so a changed CSV never serves stale results.
func ResultKey(datasetHash uint64, method string, p Params) string {
	canon := p.Canonical()
	safe := sanitizeForKey(canon)

	const maxParamTextLen = 160
	if len(safe) > maxParamTextLen {
		safe = safe[:maxParamTextLen]
	}

	sum := xxhash.Sum64String(canon)
	return fmt.Sprintf("%s:%016x:%s:%s:p=%016x",
		prefix, datasetHash, sanitizeForKey(strings.TrimSpace(method)), safe, sum)
}

// HotKey is the hotness-model key for a dataset and method.
func HotKey(datasetID, method string) string {
	return strings.TrimSpace(datasetID) + ":" + strings.TrimSpace(method)
}

func sanitizeForKey(s string) string {
	if s == "" {
		return ""
	}
	var b strings.Builder
	b.Grow(len(s))

	var prev rune
	for _, r := range s {
		var out rune
		switch {
		case r == ' ' || r == '\t' || r == '\n' || r == '\r' || r == '\v' || r == '\f':
			out = '_'
		case isAlphaNum(r) || r == ':' || r == '_' || r == '-' || r == '=' || r == '&' || r == '.' || r == ',':
			out = r
		default:
			// non-ASCII included
			out = '-'
		}
		if (out == '_' || out == '-') && out == prev {
			continue
		}
		b.WriteRune(out)
		prev = out
	}
	return b.String()
}

func collapseASCIIWhitespace(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	wasWS := false
	for _, r := range s {
		if r == ' ' || r == '\t' || r == '\n' || r == '\r' || r == '\v' || r == '\f' {
			if !wasWS {
				b.WriteByte(' ')
				wasWS = true
			}
			continue
		}
		b.WriteRune(r)
		wasWS = false
	}
	return strings.TrimSpace(b.String())
}

func isAlphaNum(r rune) bool {
	return (r >= 'a' && r <= 'z') ||
		(r >= 'A' && r <= 'Z') ||
		unicode.IsDigit(r)
}
