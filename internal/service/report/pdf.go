package report

import (
	"context"
	"fmt"
	"strings"

	"reportforms/internal/compose"

	"go.uber.org/zap"
)

type conversion struct {
	seq    uint64
	cancel context.CancelFunc
}

func inflightKey(token, id string) string { return token + "/" + id }

// ConvertPDF converts a generated Word document on the worker pool. The
// conversion is bounded by the configured timeout and ends early on CancelPDF
// or when ctx ends.
func (s *Service) ConvertPDF(ctx context.Context, token, appID, id string) (fileName string, pdf []byte, err error) {
	if s.converter == nil {
		return "", nil, ErrPDFUnavailable
	}
	art, data, err := s.Download(ctx, token, appID, id)
	if err != nil {
		return "", nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	release := s.track(inflightKey(token, id), cancel)
	defer release()

	pdf, err = s.converter.Convert(ctx, token, data)
	if err != nil {
		s.logger.Warn("pdf conversion failed",
			zap.String("app", appID),
			zap.String("artifact", id),
			zap.Error(err),
		)
		return "", nil, fmt.Errorf("convert %s: %w", art.FileName, err)
	}
	return compose.FileName(art.Title, ".pdf"), pdf, nil
}

// CancelPDF aborts the in-flight conversion of a document.
func (s *Service) CancelPDF(token, id string) error {
	s.mu.Lock()
	conv, ok := s.inflight[inflightKey(token, id)]
	s.mu.Unlock()
	if !ok {
		return ErrNotConverting
	}
	conv.cancel()
	return nil
}

// track registers the cancel func and returns the function that releases it.
// A newer conversion of the same document replaces the registration.
func (s *Service) track(key string, cancel context.CancelFunc) func() {
	s.mu.Lock()
	s.inflightSeq++
	conv := &conversion{seq: s.inflightSeq, cancel: cancel}
	s.inflight[key] = conv
	s.mu.Unlock()
	return func() {
		cancel()
		s.mu.Lock()
		if cur, ok := s.inflight[key]; ok && cur.seq == conv.seq {
			delete(s.inflight, key)
		}
		s.mu.Unlock()
	}
}

func (s *Service) cancelSessionConversions(token string) {
	prefix := token + "/"
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, conv := range s.inflight {
		if strings.HasPrefix(key, prefix) {
			conv.cancel()
		}
	}
}
