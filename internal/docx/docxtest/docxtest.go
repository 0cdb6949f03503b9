// Package docxtest builds and inspects small Word documents in tests.
package docxtest

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"regexp"
	"strings"
	"testing"
)

// DocumentPart is the main body part of a Word document.
const DocumentPart = "word/document.xml"

const xmlHeader = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>`

var (
	paragraphRe = regexp.MustCompile(`(?s)<w:p[ >].*?</w:p>`)
	textRunRe   = regexp.MustCompile(`(?s)<w:t(?:\s[^>]*)?>(.*?)</w:t>`)
	unescaper   = strings.NewReplacer("&lt;", "<", "&gt;", ">", "&quot;", `"`, "&apos;", "'", "&amp;", "&")
)

// Paragraph builds a paragraph with one run per text fragment, the way Word
// splits text when formatting changes mid-word.
func Paragraph(runs ...string) string {
	var b strings.Builder
	b.WriteString(`<w:p>`)
	for _, r := range runs {
		b.WriteString(`<w:r><w:t>`)
		b.WriteString(r)
		b.WriteString(`</w:t></w:r>`)
	}
	b.WriteString(`</w:p>`)
	return b.String()
}

// BuildTemplate packages body XML into a minimal Word document. An optional
// header body is added as word/header1.xml.
func BuildTemplate(t testing.TB, body string, header ...string) []byte {
	t.Helper()
	parts := [][2]string{
		{"[Content_Types].xml", xmlHeader +
			`<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">` +
			`<Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>` +
			`<Default Extension="xml" ContentType="application/xml"/>` +
			`<Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/>` +
			`</Types>`},
		{"_rels/.rels", xmlHeader +
			`<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">` +
			`<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument" Target="word/document.xml"/>` +
			`</Relationships>`},
		{DocumentPart, xmlHeader +
			`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>` +
			body + `</w:body></w:document>`},
		{"word/_rels/document.xml.rels", xmlHeader +
			`<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships"></Relationships>`},
	}
	if len(header) > 0 {
		parts = append(parts, [2]string{"word/header1.xml", xmlHeader +
			`<w:hdr xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">` + header[0] + `</w:hdr>`})
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, p := range parts {
		w, err := zw.Create(p[0])
		if err != nil {
			t.Fatalf("create %s: %v", p[0], err)
		}
		if _, err := io.WriteString(w, p[1]); err != nil {
			t.Fatalf("write %s: %v", p[0], err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close template: %v", err)
	}
	return buf.Bytes()
}

// ReadPart returns one part of a packaged document.
func ReadPart(doc []byte, name string) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(doc), int64(len(doc)))
	if err != nil {
		return "", fmt.Errorf("open document: %w", err)
	}
	for _, f := range zr.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return "", err
		}
		defer rc.Close()
		b, err := io.ReadAll(rc)
		if err != nil {
			return "", err
		}
		return string(b), nil
	}
	return "", fmt.Errorf("part %s not found", name)
}

// Text returns the visible text of the document body, one line per paragraph.
func Text(doc []byte) (string, error) {
	xml, err := ReadPart(doc, DocumentPart)
	if err != nil {
		return "", err
	}
	var lines []string
	for _, p := range paragraphRe.FindAllString(xml, -1) {
		var b strings.Builder
		for _, m := range textRunRe.FindAllStringSubmatch(p, -1) {
			b.WriteString(m[1])
		}
		lines = append(lines, unescaper.Replace(b.String()))
	}
	return strings.Join(lines, "\n"), nil
}
