// Package mentions rewrites question references found in free text into
// stable global-id tokens, and renders those tokens back into links at
// display time. Stored content never embeds titles or URLs directly, so
// renames and moved components do not break old posts.
package mentions

import (
	"fmt"
	"html"
	"regexp"
	"strconv"
	"strings"
)

// Question is the minimal view of a question a resolver returns.
type Question struct {
	ID    int64
	Title string
	// Path is the canonical URL path of the question, e.g.
	// "/components/12/questions/42".
	Path string
}

// Resolver looks up a question by id. The parse-time resolver only sees
// questions of published components in public spaces; the render-time
// resolver is unscoped.
type Resolver interface {
	Resolve(id int64) (Question, bool)
}

// ResolverFunc adapts a function to the Resolver interface.
type ResolverFunc func(id int64) (Question, bool)

func (f ResolverFunc) Resolve(id int64) (Question, bool) { return f(id) }

// Metadata collects the question ids discovered in one parse pass, in
// first-mention order with duplicates collapsed. Callers fan notification
// events out from it and then drop it.
type Metadata struct {
	MentionedIDs []int64
}

func (m *Metadata) record(id int64) {
	for _, seen := range m.MentionedIDs {
		if seen == id {
			return
		}
	}
	m.MentionedIDs = append(m.MentionedIDs, id)
}

const gidPrefix = "gid://agora/Question/"

var (
	// urlPattern matches links into a questions component. The trailing
	// path segment must be a bare digit run.
	urlPattern = regexp.MustCompile(`https?://[\w.:-]+(?:/[\w.~-]+)*/questions/(\d+)\b`)
	// barePattern matches ~<digits> with no intervening whitespace.
	barePattern = regexp.MustCompile(`~(\d+)`)
	// gidPattern matches the token this package writes. The token contains
	// no tilde and its digits sit inside a structured path, so rewritten
	// content matches neither input pattern and Parse is idempotent.
	gidPattern = regexp.MustCompile(regexp.QuoteMeta(gidPrefix) + `(\d+)`)
)

// GlobalID returns the reference token for a question id.
func GlobalID(id int64) string {
	return gidPrefix + strconv.FormatInt(id, 10)
}

// Parse scans content for question URLs and ~id mentions, replaces each
// resolvable reference with its global-id token and records the id. The
// URL pass runs before the bare pass: a rewritten URL no longer exposes a
// literal digit run for the bare pattern to trip over. Unresolvable
// references are left untouched.
func Parse(content string, resolver Resolver) (string, Metadata) {
	var meta Metadata
	rewrite := func(match string, digits string) string {
		id, err := strconv.ParseInt(digits, 10, 64)
		if err != nil {
			return match
		}
		if _, ok := resolver.Resolve(id); !ok {
			return match
		}
		meta.record(id)
		return GlobalID(id)
	}

	content = urlPattern.ReplaceAllStringFunc(content, func(match string) string {
		return rewrite(match, urlPattern.FindStringSubmatch(match)[1])
	})
	content = barePattern.ReplaceAllStringFunc(content, func(match string) string {
		return rewrite(match, barePattern.FindStringSubmatch(match)[1])
	})
	return content, meta
}

// Render replaces every global-id token with an HTML link to the question,
// using its current title as the escaped link text. Tokens that no longer
// resolve render as the plain-text fallback "~<id>". Render never fails: a
// token whose digits cannot be parsed is kept as raw text.
func Render(content string, resolver Resolver) string {
	return gidPattern.ReplaceAllStringFunc(content, func(match string) string {
		digits := gidPattern.FindStringSubmatch(match)[1]
		id, err := strconv.ParseInt(digits, 10, 64)
		if err != nil {
			return match
		}
		question, ok := resolver.Resolve(id)
		if !ok {
			return "~" + digits
		}
		return fmt.Sprintf(`<a href="%s">%s</a>`, html.EscapeString(question.Path), html.EscapeString(question.Title))
	})
}

// HasMentionMarkers reports whether content contains anything Parse could
// rewrite. Callers use it to skip the resolver round-trip on plain text.
func HasMentionMarkers(content string) bool {
	return strings.Contains(content, "~") || urlPattern.MatchString(content)
}
