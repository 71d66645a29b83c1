package clip

import (
	"net/url"
	"strings"

	"github.com/yuin/goldmark"
	gmast "github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
	"golang.org/x/net/html"
)

// Classify assigns a Kind to raw clipboard content. The checks are ordered
// from most to least specific; anything unrecognized is plain. Classification
// is a capture-side convenience and never affects history semantics.
func Classify(content string) Kind {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return KindPlain
	}
	switch {
	case isURL(trimmed):
		return KindURL
	case isHTML(trimmed):
		return KindHTML
	case isMarkdown(trimmed):
		return KindMarkdown
	case looksLikeCode(trimmed):
		return KindCode
	}
	return KindPlain
}

// isURL accepts a single absolute http(s) URL with nothing around it.
func isURL(s string) bool {
	if strings.ContainsAny(s, " \t\n") {
		return false
	}
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// isHTML tokenizes the content and requires at least one real element tag.
// The tokenizer is lenient, so the leading-'<' check keeps prose like
// "a < b" out.
func isHTML(s string) bool {
	if !strings.HasPrefix(s, "<") || !strings.Contains(s, ">") {
		return false
	}
	z := html.NewTokenizer(strings.NewReader(s))
	for {
		switch z.Next() {
		case html.ErrorToken:
			return false
		case html.StartTagToken, html.SelfClosingTagToken, html.DoctypeToken:
			return true
		}
	}
}

// isMarkdown parses the content with Goldmark and looks for structural
// markdown constructs. Plain prose parses to paragraphs of text only.
func isMarkdown(s string) bool {
	md := goldmark.New()
	root := md.Parser().Parse(text.NewReader([]byte(s)))

	found := false
	_ = gmast.Walk(root, func(n gmast.Node, entering bool) (gmast.WalkStatus, error) {
		if !entering {
			return gmast.WalkContinue, nil
		}
		switch n.(type) {
		case *gmast.Heading, *gmast.List, *gmast.FencedCodeBlock,
			*gmast.Blockquote, *gmast.ThematicBreak, *gmast.Link,
			*gmast.Image, *gmast.Emphasis, *gmast.CodeSpan:
			found = true
			return gmast.WalkStop, nil
		}
		return gmast.WalkContinue, nil
	})
	return found
}

var codeMarkers = []string{
	"func ", "def ", "class ", "import ", "package ", "#include",
	"return ", "const ", "var ", "let ", "if (", "for (", "fn ",
}

// looksLikeCode is a best-effort heuristic: enough lines that open with a
// keyword, end in a brace or semicolon, or carry block indentation.
func looksLikeCode(s string) bool {
	lines := strings.Split(s, "\n")
	if len(lines) == 1 {
		t := strings.TrimSpace(s)
		return strings.Count(t, ";") >= 2 || strings.HasSuffix(t, "{")
	}
	hits := 0
	indented := 0
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		if strings.HasPrefix(line, "\t") || strings.HasPrefix(line, "    ") {
			indented++
		}
		t := strings.TrimSpace(line)
		if strings.HasSuffix(t, "{") || strings.HasSuffix(t, "}") || strings.HasSuffix(t, ";") {
			hits++
			continue
		}
		for _, m := range codeMarkers {
			if strings.HasPrefix(t, m) {
				hits++
				break
			}
		}
	}
	return hits >= 2 || (hits >= 1 && indented >= 1)
}
