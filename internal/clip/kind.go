package clip

// Kind is the classification tag attached to an entry. The history core treats
// it as opaque; unknown values round-trip through every backend untouched.
type Kind string

const (
	KindPlain    Kind = "plain"
	KindURL      Kind = "url"
	KindCode     Kind = "code"
	KindHTML     Kind = "html"
	KindMarkdown Kind = "markdown"
)
