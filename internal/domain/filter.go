package domain

import (
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Filter selects bookmarks. All set criteria must hold.
type Filter struct {
	// Text matches a substring of title, URL or description,
	// ignoring case and diacritics. Empty means any.
	Text string

	// Unread and Private restrict the flag when non-nil.
	Unread  *bool
	Private *bool
}

// IsZero reports whether the filter selects everything.
func (f Filter) IsZero() bool {
	return strings.TrimSpace(f.Text) == "" && f.Unread == nil && f.Private == nil
}

// Matcher is a Filter with its text already folded, for matching many
// bookmarks against the same query.
type Matcher struct {
	text    string
	unread  *bool
	private *bool
}

func (f Filter) Matcher() Matcher {
	return Matcher{
		text:    Fold(strings.TrimSpace(f.Text)),
		unread:  f.Unread,
		private: f.Private,
	}
}

// Match reports whether b satisfies f.
func (f Filter) Match(b *Bookmark) bool {
	return f.Matcher().Match(b)
}

func (m Matcher) Match(b *Bookmark) bool {
	if m.unread != nil && b.Unread != *m.unread {
		return false
	}
	if m.private != nil && b.Private != *m.private {
		return false
	}
	if m.text == "" {
		return true
	}
	return strings.Contains(Fold(b.Title), m.text) ||
		strings.Contains(Fold(b.URL), m.text) ||
		strings.Contains(Fold(b.Description), m.text)
}

// Fold lowercases s and strips combining marks, so "Café" and "cafe" compare equal.
func Fold(s string) string {
	if s == "" {
		return s
	}
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	return strings.ToLower(folded)
}

// SortByDate orders bookmarks newest first. Ties fall back to URL so the
// order is stable across backends.
func SortByDate(bs []*Bookmark) {
	sort.SliceStable(bs, func(i, j int) bool {
		if bs[i].Date.Equal(bs[j].Date) {
			return bs[i].URL < bs[j].URL
		}
		return bs[i].Date.After(bs[j].Date)
	})
}

// FilterBookmarks returns the bookmarks matching f, newest first.
func FilterBookmarks(bs []*Bookmark, f Filter) []*Bookmark {
	if f.IsZero() {
		out := append([]*Bookmark(nil), bs...)
		SortByDate(out)
		return out
	}
	m := f.Matcher()
	out := make([]*Bookmark, 0, len(bs))
	for _, b := range bs {
		if m.Match(b) {
			out = append(out, b)
		}
	}
	SortByDate(out)
	return out
}
