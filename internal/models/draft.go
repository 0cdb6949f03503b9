package models

// Draft is the transient snapshot the composer binds into a template.
type Draft struct {
	App         string            `json:"app"`
	Values      map[string]string `json:"values"`
	DisplayDate string            `json:"display_date"`
	ShortDate   string            `json:"short_date"`
	Year        string            `json:"year"`
	CaseNumber  string            `json:"case_number"`
	Title       string            `json:"title"`
	Images      []Attachment      `json:"-"`
}

// Value returns the draft value for a field, empty when absent.
func (d *Draft) Value(id string) string {
	if d == nil || d.Values == nil {
		return ""
	}
	return d.Values[id]
}
