package search

// Query is an opaque, caller-supplied search expression. Commands pass it to
// backends untouched; only backends interpret it.
type Query interface {
	String() string
}

// StringQuery is a free-text query, optionally bound to a named handler
// (e.g. "title", "author") that a backend may map onto specific fields.
type StringQuery struct {
	Text    string
	Handler string
}

// NewStringQuery creates a query for text against the default handler.
func NewStringQuery(text string) *StringQuery {
	return &StringQuery{Text: text}
}

func (q *StringQuery) String() string {
	return q.Text
}

// MatchAllQuery matches every record a backend holds.
type MatchAllQuery struct{}

func (MatchAllQuery) String() string {
	return "*:*"
}

// IsMatchAll reports whether q matches every record, either explicitly or
// because it is an empty string query.
func IsMatchAll(q Query) bool {
	switch v := q.(type) {
	case nil:
		return true
	case MatchAllQuery, *MatchAllQuery:
		return true
	case *StringQuery:
		return v == nil || v.Text == "" || v.Text == "*:*" || v.Text == "*"
	}
	return false
}
