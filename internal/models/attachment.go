package models

// Attachment is an image pasted or dropped into the accident gallery.
type Attachment struct {
	Src      string `json:"src"` // data URL of the encoded image
	Data     []byte `json:"-"`
	MimeType string `json:"mime_type"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
}
