package forms

import (
	"regexp"
	"strings"
	"time"

	"reportforms/internal/models"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const requiredMessage = "Campo obrigatório."

type validator struct {
	re      *regexp.Regexp
	check   func(string) bool
	message string
}

func (v *validator) ok(value string) bool {
	switch {
	case v.check != nil:
		return v.check(strings.TrimSpace(value))
	case v.re != nil:
		return v.re.MatchString(value)
	default:
		return strings.TrimSpace(value) != ""
	}
}

func pattern(expr, message string) *validator {
	return &validator{re: regexp.MustCompile(expr), message: message}
}

func nonEmpty() *validator {
	return &validator{message: requiredMessage}
}

// isoDate accepts the YYYY-MM-DD value of a date input.
func isoDate(message string) *validator {
	return &validator{check: validISODate, message: message}
}

// Result is the outcome of a field validation.
type Result struct {
	Field    string          `json:"field"`
	Value    string          `json:"value"`
	Valid    bool            `json:"valid"`
	Validity models.Validity `json:"validity"`
	Message  string          `json:"message,omitempty"`
}

// Upper applies pt-BR upper-casing.
func Upper(s string) string {
	return cases.Upper(language.BrazilianPortuguese).String(s)
}

// Prepare normalises a raw input the way the form does on blur: trimmed and,
// for plain text, upper-cased. HTML is sanitised instead.
func (a *App) Prepare(id, value string) string {
	f, ok := a.Field(id)
	if !ok {
		return value
	}
	switch f.Kind {
	case models.KindHTML:
		return SanitizeHTML(value)
	case models.KindBool:
		return value
	default:
		return Upper(strings.TrimSpace(value))
	}
}

// Validate runs the field's predicate. Unknown fields and fields without a
// predicate are reported valid with an unset visual state.
func (a *App) Validate(id, value string) Result {
	res := Result{Field: id, Value: value, Valid: true, Validity: models.ValidityUnset}
	f, ok := a.Field(id)
	if !ok || f.validate == nil {
		return res
	}
	res.Value = a.Prepare(id, value)
	if f.validate.ok(res.Value) {
		res.Validity = models.ValidityValid
		return res
	}
	res.Valid = false
	res.Validity = models.ValidityInvalid
	res.Message = f.validate.message
	return res
}

// CheckRequired walks the generation gate in order and returns the first
// unmet requirement.
func (a *App) CheckRequired(values map[string]string) (Requirement, bool) {
	for _, r := range a.Required {
		v := strings.TrimSpace(values[r.Field])
		ok := v != ""
		if ok && r.check != nil {
			ok = r.check(v)
		}
		if !ok {
			return r, false
		}
	}
	return Requirement{}, true
}

func validISODate(v string) bool {
	_, err := time.Parse("2006-01-02", v)
	return err == nil
}

// DisplayDate converts YYYY-MM-DD into DD/MM/YYYY; invalid input yields "".
func DisplayDate(iso string) string {
	t, err := time.Parse("2006-01-02", strings.TrimSpace(iso))
	if err != nil {
		return ""
	}
	return t.Format("02/01/2006")
}

// ShortDate converts YYYY-MM-DD into DD.MM; invalid input yields "".
func ShortDate(iso string) string {
	t, err := time.Parse("2006-01-02", strings.TrimSpace(iso))
	if err != nil {
		return ""
	}
	return t.Format("02.01")
}

// Year picks the case-number year: the configured suffix, else the date's
// year, else the current year.
func Year(suffix, iso string, now time.Time) string {
	if s := strings.TrimSpace(suffix); s != "" {
		return s
	}
	if t, err := time.Parse("2006-01-02", strings.TrimSpace(iso)); err == nil {
		return t.Format("2006")
	}
	return now.Format("2006")
}
