package labels

import "strings"

// ManagedBy is the tag that marks VMs created through hvplane.
const ManagedBy = "hvplane"

// TagBuilder collects tags in insertion order, dropping duplicates after
// normalization.
type TagBuilder struct {
	tags []string
	seen map[string]bool
}

// NewTagBuilder creates an empty builder.
func NewTagBuilder() *TagBuilder {
	return &TagBuilder{seen: make(map[string]bool)}
}

// Add appends tags. Empty and duplicate tags are skipped.
func (tb *TagBuilder) Add(tags ...string) *TagBuilder {
	for _, t := range tags {
		n := Normalize(t)
		if n == "" || tb.seen[n] {
			continue
		}
		tb.seen[n] = true
		tb.tags = append(tb.tags, n)
	}
	return tb
}

// WithManagedBy adds the ManagedBy tag.
func (tb *TagBuilder) WithManagedBy() *TagBuilder {
	return tb.Add(ManagedBy)
}

// Build returns a copy of the collected tags, or nil when there are none.
func (tb *TagBuilder) Build() []string {
	if len(tb.tags) == 0 {
		return nil
	}
	out := make([]string, len(tb.tags))
	copy(out, tb.tags)
	return out
}

// Normalize lowercases t and replaces characters outside [a-z0-9_+.-] with
// '-'. Leading punctuation other than '_' is stripped.
func Normalize(t string) string {
	t = strings.ToLower(strings.TrimSpace(t))

	var b strings.Builder
	b.Grow(len(t))
	for _, r := range t {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_', r == '-', r == '+', r == '.':
			b.WriteRune(r)
		default:
			b.WriteByte('-')
		}
	}
	return strings.TrimLeft(b.String(), "-+.")
}
