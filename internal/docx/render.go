package docx

import (
	"fmt"
	"strings"
)

type renderer struct {
	images      []Image
	allowImages bool
	errs        []error
}

func (r *renderer) renderPart(xml string, data map[string]any) (string, []error) {
	xml = mergeSplitTags(xml)
	paras := paragraphs(xml)

	errs := checkBraces(paras)
	tags, tagErrs := scanTags(xml, paras)
	errs = append(errs, tagErrs...)
	errs = append(errs, pairSections(tags)...)
	if len(errs) > 0 {
		return "", errs
	}
	expandParagraphLoops(tags, paras)

	r.errs = nil
	var b strings.Builder
	r.render(&b, buildTree(xml, tags), []map[string]any{data})
	if len(r.errs) > 0 {
		return "", r.errs
	}
	return b.String(), nil
}

func (r *renderer) render(b *strings.Builder, nodes []*node, scopes []map[string]any) {
	for _, n := range nodes {
		switch n.kind {
		case textNode:
			b.WriteString(n.text)
		case varNode:
			b.WriteString(escapeText(formatValue(lookup(scopes, n.name))))
		case imageNode:
			r.renderImage(b, n, lookup(scopes, n.name))
		case sectionNode:
			r.renderSection(b, n, scopes)
		}
	}
}

func (r *renderer) renderSection(b *strings.Builder, n *node, scopes []map[string]any) {
	v := lookup(scopes, n.name)
	if n.inverted {
		if !truthy(v) {
			r.render(b, n.children, scopes)
		}
		return
	}
	switch x := v.(type) {
	case []map[string]any:
		for _, item := range x {
			r.render(b, n.children, pushScope(scopes, item))
		}
	case []any:
		for _, item := range x {
			if m, ok := item.(map[string]any); ok {
				r.render(b, n.children, pushScope(scopes, m))
			} else {
				r.render(b, n.children, scopes)
			}
		}
	case map[string]any:
		r.render(b, n.children, pushScope(scopes, x))
	default:
		if truthy(v) {
			r.render(b, n.children, scopes)
		}
	}
}

func (r *renderer) renderImage(b *strings.Builder, n *node, v any) {
	var img Image
	switch x := v.(type) {
	case nil:
		return
	case Image:
		img = x
	case *Image:
		if x == nil {
			return
		}
		img = *x
	default:
		r.errs = append(r.errs, fmt.Errorf("image tag {%%%s} bound to %T", n.name, v))
		return
	}
	if !r.allowImages {
		r.errs = append(r.errs, fmt.Errorf("image tag {%%%s} outside the document body", n.name))
		return
	}
	if len(img.Data) == 0 {
		return
	}
	if img.Ext == "" {
		img.Ext = "png"
	}
	r.images = append(r.images, img)
	id := len(r.images)
	fmt.Fprintf(b, `</w:t><w:drawing><wp:inline distT="0" distB="0" distL="0" distR="0" xmlns:wp="http://schemas.openxmlformats.org/drawingml/2006/wordprocessingDrawing">`+
		`<wp:extent cx="%d" cy="%d"/><wp:docPr id="%d" name="Imagem %d"/>`+
		`<wp:cNvGraphicFramePr><a:graphicFrameLocks xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main" noChangeAspect="1"/></wp:cNvGraphicFramePr>`+
		`<a:graphic xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main"><a:graphicData uri="http://schemas.openxmlformats.org/drawingml/2006/picture">`+
		`<pic:pic xmlns:pic="http://schemas.openxmlformats.org/drawingml/2006/picture">`+
		`<pic:nvPicPr><pic:cNvPr id="%d" name="rf_image%d.%s"/><pic:cNvPicPr/></pic:nvPicPr>`+
		`<pic:blipFill><a:blip r:embed="%s" xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships"/><a:stretch><a:fillRect/></a:stretch></pic:blipFill>`+
		`<pic:spPr><a:xfrm><a:off x="0" y="0"/><a:ext cx="%d" cy="%d"/></a:xfrm><a:prstGeom prst="rect"><a:avLst/></a:prstGeom></pic:spPr>`+
		`</pic:pic></a:graphicData></a:graphic></wp:inline></w:drawing>`+preserveOpen,
		img.Width, img.Height, 1000+id, id,
		id, id, img.Ext,
		imageRelID(id),
		img.Width, img.Height,
	)
}

func pushScope(scopes []map[string]any, m map[string]any) []map[string]any {
	out := make([]map[string]any, len(scopes)+1)
	copy(out, scopes)
	out[len(scopes)] = m
	return out
}

func lookup(scopes []map[string]any, name string) any {
	for i := len(scopes) - 1; i >= 0; i-- {
		if v, ok := scopes[i][name]; ok {
			return v
		}
	}
	return nil
}

func truthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case string:
		return x != ""
	case []map[string]any:
		return len(x) > 0
	case []any:
		return len(x) > 0
	case []string:
		return len(x) > 0
	default:
		return true
	}
}

func formatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case bool:
		if x {
			return "true"
		}
		return "false"
	default:
		return fmt.Sprint(x)
	}
}

var xmlEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;", "'", "&apos;")

const lineBreak = `</w:t><w:br/>` + preserveOpen

// escapeText makes a value safe inside <w:t> and turns newlines into breaks.
func escapeText(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = xmlEscaper.Replace(l)
	}
	return strings.Join(lines, lineBreak)
}
