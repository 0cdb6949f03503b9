package models

// FieldKind describes how a field value is captured and persisted.
type FieldKind string

const (
	KindText FieldKind = "text"
	KindBool FieldKind = "bool"
	KindDate FieldKind = "date"
	KindTime FieldKind = "time"
	KindHTML FieldKind = "html"
)

// Validity is the tri-state visual state of a field.
type Validity string

const (
	ValidityUnset   Validity = "unset"
	ValidityValid   Validity = "valid"
	ValidityInvalid Validity = "invalid"
)

type Field struct {
	ID       string    `json:"id"`
	Kind     FieldKind `json:"kind"`
	Value    string    `json:"value"`
	Validity Validity  `json:"validity"`
}
