// File: internal/services/attachment/ingestor.go
package attachment

import (
	"context"
	"errors"
	"mime"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/iyunix/go-chat/internal/domain"
)

var (
	ErrEmptyFile    = errors.New("no file provided")
	ErrFileTooLarge = errors.New("file exceeds the upload size limit")
)

type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
}

// Ingestor stores an upload and extracts whatever text it can. Extraction is
// best-effort and never fails the upload.
type Ingestor struct {
	store          Store
	extractors     []Extractor
	maxBytes       int64
	extractTimeout time.Duration
	logger         Logger
}

func NewIngestor(store Store, maxBytes int64, logger Logger, extractors ...Extractor) *Ingestor {
	if len(extractors) == 0 {
		extractors = []Extractor{PDFExtractor{}, TextExtractor{}, NewOCRExtractor()}
	}
	return &Ingestor{
		store:          store,
		extractors:     extractors,
		maxBytes:       maxBytes,
		extractTimeout: 30 * time.Second,
		logger:         logger,
	}
}

func (i *Ingestor) Ingest(ctx context.Context, name, mediaType string, data []byte) (*domain.Attachment, error) {
	if len(data) == 0 {
		return nil, ErrEmptyFile
	}
	if i.maxBytes > 0 && int64(len(data)) > i.maxBytes {
		return nil, ErrFileTooLarge
	}
	mediaType = DetectMediaType(name, mediaType, data)

	url, err := i.store.Save(ctx, name, mediaType, data)
	if err != nil {
		return nil, err
	}

	att := &domain.Attachment{
		URL:           url,
		Name:          filepath.Base(name),
		MediaType:     mediaType,
		ExtractedText: i.extract(ctx, mediaType, data),
	}
	i.logger.Info("attachment stored", "name", att.Name, "media_type", mediaType, "size", len(data), "extracted_chars", len(att.ExtractedText))
	return att, nil
}

func (i *Ingestor) extract(ctx context.Context, mediaType string, data []byte) string {
	for _, ex := range i.extractors {
		if !ex.Supports(mediaType) {
			continue
		}
		exCtx, cancel := context.WithTimeout(ctx, i.extractTimeout)
		text, err := ex.Extract(exCtx, data)
		cancel()
		if err != nil {
			i.logger.Warn("text extraction failed", "media_type", mediaType, "error", err)
			return ""
		}
		return text
	}
	return ""
}

// DetectMediaType trusts the declared type unless it is missing or generic,
// then falls back to the extension and finally to content sniffing.
func DetectMediaType(name, declared string, data []byte) string {
	if mt, _, err := mime.ParseMediaType(declared); err == nil && mt != "application/octet-stream" {
		return mt
	}
	if byExt := mime.TypeByExtension(strings.ToLower(filepath.Ext(name))); byExt != "" {
		if mt, _, err := mime.ParseMediaType(byExt); err == nil {
			return mt
		}
	}
	mt, _, _ := mime.ParseMediaType(http.DetectContentType(data))
	return mt
}
