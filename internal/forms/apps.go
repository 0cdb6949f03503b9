// Package forms holds the static definition of each form application: its
// fields, validators, required-field gate, defaults and summary layout.
package forms

import (
	"sort"

	"reportforms/internal/models"
)

const (
	Acidentes   = "acidentes"
	Ocorrencias = "ocorrencias"
	Alertas     = "alertas"

	// NotApplicable is the sentinel rendered for empty optional fields.
	NotApplicable = "NÃO HOUVE"
	NotRelevant   = "NÃO CABE"
)

// FieldSpec describes one input of an app.
type FieldSpec struct {
	ID        string           `json:"id"`
	Kind      models.FieldKind `json:"kind"`
	Sensitive bool             `json:"-"`
	validate  *validator
}

// Requirement is one step of the generation gate.
type Requirement struct {
	Field   string
	Message string
	check   func(string) bool
}

// Default fills an empty optional field before binding.
type Default struct {
	Field string
	Value string
}

// Column is one cell of the spreadsheet summary row.
type Column struct {
	ID     string `json:"id"`
	Header string `json:"header"`
	value  func(d *models.Draft) string
}

// App is the definition of a form application.
type App struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	CasePrefix  string      `json:"case_prefix,omitempty"`
	HasTemplate bool        `json:"has_template"`
	HasGallery  bool        `json:"has_gallery"`
	HasMail     bool        `json:"has_mail"`
	HasSheet    bool        `json:"has_sheet"`
	Fields      []FieldSpec `json:"fields"`
	Summary     []Column    `json:"summary,omitempty"`

	Required []Requirement `json:"-"`
	Defaults []Default     `json:"-"`

	title func(d *models.Draft) string
	index map[string]int
}

var registry = map[string]*App{}

func register(app *App) *App {
	app.index = make(map[string]int, len(app.Fields))
	for i, f := range app.Fields {
		app.index[f.ID] = i
	}
	registry[app.ID] = app
	return app
}

// Lookup returns the app definition by id.
func Lookup(id string) (*App, bool) {
	app, ok := registry[id]
	return app, ok
}

// All returns every registered app ordered by id.
func All() []*App {
	out := make([]*App, 0, len(registry))
	for _, app := range registry {
		out = append(out, app)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Field returns the field definition, false when the app does not know it.
func (a *App) Field(id string) (FieldSpec, bool) {
	i, ok := a.index[id]
	if !ok {
		return FieldSpec{}, false
	}
	return a.Fields[i], true
}

// SensitiveFields lists fields that are encrypted at rest.
func (a *App) SensitiveFields() []string {
	var out []string
	for _, f := range a.Fields {
		if f.Sensitive {
			out = append(out, f.ID)
		}
	}
	return out
}

// Title builds the document title for a composed draft.
func (a *App) Title(d *models.Draft) string {
	if a.title == nil {
		return d.CaseNumber
	}
	return a.title(d)
}

// SummaryRow renders the summary cells for a composed draft.
func (a *App) SummaryRow(d *models.Draft) []string {
	cells := make([]string, len(a.Summary))
	for i, col := range a.Summary {
		if col.value != nil {
			cells[i] = col.value(d)
		} else {
			cells[i] = d.Value(col.ID)
		}
	}
	return cells
}

func text(id string) FieldSpec { return FieldSpec{ID: id, Kind: models.KindText} }

func textFields(ids ...string) []FieldSpec {
	out := make([]FieldSpec, len(ids))
	for i, id := range ids {
		out[i] = text(id)
	}
	return out
}

func col(id, header string) Column { return Column{ID: id, Header: header} }
