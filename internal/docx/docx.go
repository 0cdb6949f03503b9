// Package docx fills Word templates that use {tag} placeholders, {#loop}
// sections, {^inverted} sections and {%image} tags.
package docx

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
)

const (
	documentPart     = "word/document.xml"
	documentRelsPart = "word/_rels/document.xml.rels"
	contentTypesPart = "[Content_Types].xml"
)

var templatedPart = regexp.MustCompile(`^word/(document|header\d*|footer\d*)\.xml$`)

// Image is a picture bound to an {%image} tag. Width and Height are EMU.
type Image struct {
	Data   []byte
	Ext    string
	Width  int64
	Height int64
}

// TemplateError collects every problem found while binding a template.
type TemplateError struct {
	Errors []error
}

func (e *TemplateError) Error() string {
	msgs := make([]string, len(e.Errors))
	for i, err := range e.Errors {
		msgs[i] = err.Error()
	}
	return "template: " + strings.Join(msgs, "; ")
}

func (e *TemplateError) Unwrap() []error { return e.Errors }

type entry struct {
	header zip.FileHeader
	data   []byte
}

// Render binds data into the template and returns the new document.
// Values are strings, bools, nested maps, slices of maps for loops and
// Image for image tags. Missing values render empty.
func Render(template []byte, data map[string]any) ([]byte, error) {
	zr, err := zip.NewReader(bytes.NewReader(template), int64(len(template)))
	if err != nil {
		return nil, fmt.Errorf("open template: %w", err)
	}
	entries := make([]entry, 0, len(zr.File))
	for _, f := range zr.File {
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", f.Name, err)
		}
		b, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", f.Name, err)
		}
		entries = append(entries, entry{header: f.FileHeader, data: b})
	}

	r := &renderer{}
	var errs []error
	for i := range entries {
		name := entries[i].header.Name
		if !templatedPart.MatchString(name) {
			continue
		}
		r.allowImages = name == documentPart
		out, partErrs := r.renderPart(string(entries[i].data), data)
		if len(partErrs) > 0 {
			for _, e := range partErrs {
				errs = append(errs, fmt.Errorf("%s: %w", name, e))
			}
			continue
		}
		entries[i].data = []byte(out)
	}
	if len(errs) > 0 {
		return nil, &TemplateError{Errors: errs}
	}

	if len(r.images) > 0 {
		entries = r.attachImages(entries)
	}
	return writeZip(entries)
}

func writeZip(entries []entry) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, e := range entries {
		w, err := zw.CreateHeader(&zip.FileHeader{
			Name:     e.header.Name,
			Method:   zip.Deflate,
			Modified: e.header.Modified,
		})
		if err != nil {
			return nil, fmt.Errorf("write %s: %w", e.header.Name, err)
		}
		if _, err := w.Write(e.data); err != nil {
			return nil, fmt.Errorf("write %s: %w", e.header.Name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("close document: %w", err)
	}
	return buf.Bytes(), nil
}

func (r *renderer) attachImages(entries []entry) []entry {
	var rels strings.Builder
	exts := map[string]bool{}
	var media []entry
	for i, img := range r.images {
		n := i + 1
		name := fmt.Sprintf("media/rf_image%d.%s", n, img.Ext)
		fmt.Fprintf(&rels,
			`<Relationship Id="%s" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/image" Target="%s"/>`,
			imageRelID(n), name)
		exts[img.Ext] = true
		media = append(media, entry{header: zip.FileHeader{Name: "word/" + name}, data: img.Data})
	}

	foundRels := false
	for i := range entries {
		switch entries[i].header.Name {
		case documentRelsPart:
			foundRels = true
			entries[i].data = insertBefore(entries[i].data, "</Relationships>", rels.String())
		case contentTypesPart:
			lower := strings.ToLower(string(entries[i].data))
			var defs strings.Builder
			for ext := range exts {
				if strings.Contains(lower, `extension="`+strings.ToLower(ext)+`"`) {
					continue
				}
				fmt.Fprintf(&defs, `<Default Extension="%s" ContentType="image/%s"/>`, ext, ext)
			}
			entries[i].data = insertBefore(entries[i].data, "</Types>", defs.String())
		}
	}
	if !foundRels {
		entries = append(entries, entry{
			header: zip.FileHeader{Name: documentRelsPart},
			data: []byte(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
				`<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">` +
				rels.String() + `</Relationships>`),
		})
	}
	return append(entries, media...)
}

func insertBefore(data []byte, marker, insert string) []byte {
	s := string(data)
	i := strings.LastIndex(s, marker)
	if i < 0 {
		return data
	}
	return []byte(s[:i] + insert + s[i:])
}

func imageRelID(n int) string { return fmt.Sprintf("rIdImg%d", n) }

var errEmptyTag = errors.New("empty tag")
