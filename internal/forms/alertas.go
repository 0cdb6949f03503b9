package forms

import "reportforms/internal/models"

// EditorField is the single rich-text field of the alert app.
const EditorField = "editorHtml"

func init() {
	register(&App{
		ID:     Alertas,
		Name:   "Alertas",
		Fields: []FieldSpec{{ID: EditorField, Kind: models.KindHTML}},
	})
}
