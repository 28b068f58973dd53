// File: internal/services/attachment/extract.go
package attachment

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"strings"

	"github.com/ledongthuc/pdf"
)

// Extractor pulls plain text out of an uploaded file.
type Extractor interface {
	Supports(mediaType string) bool
	Extract(ctx context.Context, data []byte) (string, error)
}

// PDFExtractor walks the text layer page by page.
type PDFExtractor struct{}

func (PDFExtractor) Supports(mediaType string) bool {
	return mediaType == "application/pdf"
}

func (PDFExtractor) Extract(ctx context.Context, data []byte) (text string, err error) {
	// the pdf reader panics on some malformed inputs
	defer func() {
		if r := recover(); r != nil {
			text, err = "", errors.New("malformed pdf")
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	for i := 1; i <= r.NumPage(); i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		content, err := page.GetPlainText(nil)
		if err != nil {
			return "", err
		}
		sb.WriteString(content)
		sb.WriteString("\n")
	}
	return strings.TrimSpace(sb.String()), nil
}

// TextExtractor returns text/* uploads as-is.
type TextExtractor struct{}

func (TextExtractor) Supports(mediaType string) bool {
	return strings.HasPrefix(mediaType, "text/") || mediaType == "application/json"
}

func (TextExtractor) Extract(_ context.Context, data []byte) (string, error) {
	return strings.TrimSpace(string(bytes.ToValidUTF8(data, nil))), nil
}

// OCRExtractor shells out to tesseract for images. It is disabled when the
// binary is not installed.
type OCRExtractor struct {
	Binary string
}

func NewOCRExtractor() *OCRExtractor {
	bin, err := exec.LookPath("tesseract")
	if err != nil {
		return &OCRExtractor{}
	}
	return &OCRExtractor{Binary: bin}
}

func (o *OCRExtractor) Supports(mediaType string) bool {
	return o.Binary != "" && strings.HasPrefix(mediaType, "image/")
}

func (o *OCRExtractor) Extract(ctx context.Context, data []byte) (string, error) {
	tmp, err := os.CreateTemp("", "ocr-*")
	if err != nil {
		return "", err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", err
	}
	if err := tmp.Close(); err != nil {
		return "", err
	}

	var stdout bytes.Buffer
	cmd := exec.CommandContext(ctx, o.Binary, tmp.Name(), "stdout")
	cmd.Stdout = &stdout
	if err := cmd.Run(); err != nil {
		return "", err
	}
	return strings.TrimSpace(stdout.String()), nil
}
