package docx

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	paragraphRe = regexp.MustCompile(`(?s)<w:p[ >].*?</w:p>`)
	textNodeRe  = regexp.MustCompile(`(?s)(<w:t(?:\s[^>]*)?>)(.*?)(</w:t>)`)
	tagRe       = regexp.MustCompile(`\{([^{}<>]*)\}`)
)

const preserveOpen = `<w:t xml:space="preserve">`

// mergeSplitTags moves the pieces of a tag that Word split across several
// runs into the text node where the tag opens.
func mergeSplitTags(xml string) string {
	return paragraphRe.ReplaceAllStringFunc(xml, mergeParagraph)
}

func mergeParagraph(p string) string {
	locs := textNodeRe.FindAllStringSubmatchIndex(p, -1)
	if len(locs) == 0 {
		return p
	}
	texts := make([]string, len(locs))
	braces := false
	for i, l := range locs {
		texts[i] = p[l[4]:l[5]]
		if strings.ContainsAny(texts[i], "{}") {
			braces = true
		}
	}
	if !braces {
		return p
	}

	changed := make([]bool, len(texts))
	for i := 0; i < len(texts); i++ {
	pull:
		for hasOpenBrace(texts[i]) {
			j := i + 1
			for ; j < len(texts); j++ {
				k := strings.IndexByte(texts[j], '}')
				if k < 0 {
					if texts[j] != "" {
						texts[i] += texts[j]
						texts[j] = ""
						changed[i], changed[j] = true, true
					}
					continue
				}
				texts[i] += texts[j][:k+1]
				texts[j] = texts[j][k+1:]
				changed[i], changed[j] = true, true
				continue pull
			}
			break
		}
	}

	var b strings.Builder
	last := 0
	for i, l := range locs {
		b.WriteString(p[last:l[0]])
		open := p[l[2]:l[3]]
		if changed[i] || strings.Contains(texts[i], "{") {
			open = preserveOpen
		}
		b.WriteString(open)
		b.WriteString(texts[i])
		b.WriteString("</w:t>")
		last = l[1]
	}
	b.WriteString(p[last:])
	return b.String()
}

// hasOpenBrace reports whether s ends inside an unterminated tag.
func hasOpenBrace(s string) bool {
	open := false
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '{':
			open = true
		case '}':
			open = false
		}
	}
	return open
}

type span struct {
	start, end int
	text       string
}

func paragraphs(xml string) []span {
	locs := paragraphRe.FindAllStringIndex(xml, -1)
	out := make([]span, len(locs))
	for i, l := range locs {
		var b strings.Builder
		for _, m := range textNodeRe.FindAllStringSubmatch(xml[l[0]:l[1]], -1) {
			b.WriteString(m[2])
		}
		out[i] = span{start: l[0], end: l[1], text: b.String()}
	}
	return out
}

func checkBraces(paras []span) []error {
	var errs []error
	for _, p := range paras {
		depth := 0
		for _, c := range p.text {
			switch c {
			case '{':
				if depth > 0 {
					errs = append(errs, fmt.Errorf("unclosed tag in %q", excerpt(p.text)))
				}
				depth = 1
			case '}':
				if depth == 0 {
					errs = append(errs, fmt.Errorf("unopened tag in %q", excerpt(p.text)))
				}
				depth = 0
			}
		}
		if depth > 0 {
			errs = append(errs, fmt.Errorf("unclosed tag in %q", excerpt(p.text)))
		}
	}
	return errs
}

func excerpt(s string) string {
	const max = 60
	r := []rune(s)
	if len(r) > max {
		return string(r[:max]) + "…"
	}
	return s
}

type tagKind byte

const (
	tagVar      tagKind = 'v'
	tagSection  tagKind = '#'
	tagInverted tagKind = '^'
	tagClose    tagKind = '/'
	tagImage    tagKind = '%'
)

type tag struct {
	kind       tagKind
	name       string
	raw        string
	start, end int
	para       int
	partner    int
}

func scanTags(xml string, paras []span) ([]tag, []error) {
	var (
		tags []tag
		errs []error
	)
	for _, m := range tagRe.FindAllStringSubmatchIndex(xml, -1) {
		inner := strings.TrimSpace(xml[m[2]:m[3]])
		t := tag{kind: tagVar, raw: xml[m[0]:m[1]], start: m[0], end: m[1], para: -1, partner: -1}
		if inner != "" {
			switch tagKind(inner[0]) {
			case tagSection, tagInverted, tagClose, tagImage:
				t.kind = tagKind(inner[0])
				inner = strings.TrimSpace(inner[1:])
			}
		}
		if inner == "" {
			errs = append(errs, fmt.Errorf("%w %s", errEmptyTag, t.raw))
			continue
		}
		t.name = inner
		for i, p := range paras {
			if p.start <= t.start && t.end <= p.end {
				t.para = i
				break
			}
		}
		tags = append(tags, t)
	}
	return tags, errs
}

// pairSections links every section tag with its closing tag.
func pairSections(tags []tag) []error {
	var (
		stack []int
		errs  []error
	)
	for i := range tags {
		switch tags[i].kind {
		case tagSection, tagInverted:
			stack = append(stack, i)
		case tagClose:
			if len(stack) == 0 {
				errs = append(errs, fmt.Errorf("unopened loop %s", tags[i].raw))
				continue
			}
			open := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if tags[open].name != tags[i].name {
				errs = append(errs, fmt.Errorf("loop %s closed by %s", tags[open].raw, tags[i].raw))
				continue
			}
			tags[open].partner, tags[i].partner = i, open
		}
	}
	for _, i := range stack {
		errs = append(errs, fmt.Errorf("unclosed loop %s", tags[i].raw))
	}
	return errs
}

// expandParagraphLoops widens a section whose open and close tags each sit
// alone in their own paragraph so that those two paragraphs are dropped.
func expandParagraphLoops(tags []tag, paras []span) {
	alone := func(t tag) bool {
		return t.para >= 0 && strings.TrimSpace(paras[t.para].text) == t.raw
	}
	for i := range tags {
		if tags[i].kind != tagSection && tags[i].kind != tagInverted {
			continue
		}
		j := tags[i].partner
		if j < 0 || tags[i].para == tags[j].para || !alone(tags[i]) || !alone(tags[j]) {
			continue
		}
		tags[i].start, tags[i].end = paras[tags[i].para].start, paras[tags[i].para].end
		tags[j].start, tags[j].end = paras[tags[j].para].start, paras[tags[j].para].end
	}
}

type nodeKind int

const (
	textNode nodeKind = iota
	varNode
	imageNode
	sectionNode
)

type node struct {
	kind     nodeKind
	text     string
	name     string
	inverted bool
	children []*node
}

func buildTree(xml string, tags []tag) []*node {
	root := &node{kind: sectionNode}
	stack := []*node{root}
	cursor := 0
	for _, t := range tags {
		cur := stack[len(stack)-1]
		if t.start > cursor {
			cur.children = append(cur.children, &node{kind: textNode, text: xml[cursor:t.start]})
		}
		cursor = t.end
		switch t.kind {
		case tagVar:
			cur.children = append(cur.children, &node{kind: varNode, name: t.name})
		case tagImage:
			cur.children = append(cur.children, &node{kind: imageNode, name: t.name})
		case tagSection, tagInverted:
			n := &node{kind: sectionNode, name: t.name, inverted: t.kind == tagInverted}
			cur.children = append(cur.children, n)
			stack = append(stack, n)
		case tagClose:
			stack = stack[:len(stack)-1]
		}
	}
	cur := stack[len(stack)-1]
	if cursor < len(xml) {
		cur.children = append(cur.children, &node{kind: textNode, text: xml[cursor:]})
	}
	return root.children
}
