package pdf

import (
	"context"
	"errors"
	"strings"
)

var ErrEmptyInput = errors.New("Arquivo vazio recebido.")

// Converter turns a Word document into a PDF.
type Converter interface {
	Convert(ctx context.Context, docx []byte) ([]byte, error)
}

// ConfigError means the conversion service is not configured. It is raised
// before any network call.
type ConfigError struct {
	Missing []string
}

func (e *ConfigError) Error() string {
	return "missing PDF service credentials: " + strings.Join(e.Missing, ", ")
}

// ConversionError is a failure reported by the conversion service.
type ConversionError struct {
	Status  int
	Message string
	Details string
}

func (e *ConversionError) Error() string {
	if e.Details == "" {
		return e.Message
	}
	return e.Message + ": " + e.Details
}
