package ocr

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/eduardo5010/study-cycle/pkg/model"
	"github.com/eduardo5010/study-cycle/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
)

const (
	DefaultEngine = "tesseract"

	// maxPlainTextBytes bounds the plain-text fallback
	maxPlainTextBytes = 200000
)

// ContentWriter stores OCR results. repository.Repository implements it.
type ContentWriter interface {
	PutContentOCR(ctx context.Context, id model.ContentID, text string, at time.Time) error
}

// Tesseract extracts text with the tesseract command and stores it on the
// content record. Files the engine cannot handle are read directly when they
// are small UTF-8 text.
type Tesseract struct {
	binary string
	store  ContentWriter
	now    func() time.Time
}

// TesseractOption is a functional option for Tesseract
type TesseractOption func(*Tesseract)

// WithBinary sets the engine executable
func WithBinary(path string) TesseractOption {
	return func(t *Tesseract) {
		t.binary = path
	}
}

// WithClock sets the time source for the processed timestamp
func WithClock(now func() time.Time) TesseractOption {
	return func(t *Tesseract) {
		t.now = now
	}
}

// NewTesseract creates a processor writing results to store
func NewTesseract(store ContentWriter, opts ...TesseractOption) *Tesseract {
	t := &Tesseract{
		binary: DefaultEngine,
		store:  store,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Process runs OCR on job.Path and merges the text into the content record
func (t *Tesseract) Process(ctx context.Context, job model.OCRJob) error {
	text, err := t.recognize(ctx, job.Path)
	if err != nil {
		logging.From(ctx).Debug("OCR engine failed, trying plain text", "error", err, "path", job.Path)

		text, err = readPlainText(job.Path)
		if err != nil {
			return err
		}
	}

	if err := t.store.PutContentOCR(ctx, job.ContentID, strings.TrimSpace(text), t.now()); err != nil {
		return goerr.Wrap(err, "failed to save OCR text",
			goerr.V("content_id", job.ContentID),
			goerr.V("path", job.Path))
	}
	return nil
}

func (t *Tesseract) recognize(ctx context.Context, path string) (string, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, t.binary, path, "stdout")
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", goerr.Wrap(err, "OCR engine failed",
			goerr.V("binary", t.binary),
			goerr.V("path", path),
			goerr.V("stderr", strings.TrimSpace(stderr.String())))
	}
	return stdout.String(), nil
}

func readPlainText(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", goerr.Wrap(err, "failed to stat document", goerr.V("path", path))
	}
	if info.Size() > maxPlainTextBytes {
		return "", goerr.New("document too large for plain text fallback",
			goerr.V("path", path),
			goerr.V("size", info.Size()))
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", goerr.Wrap(err, "failed to read document", goerr.V("path", path))
	}
	if !utf8.Valid(data) {
		return "", goerr.New("document is neither recognizable nor UTF-8 text", goerr.V("path", path))
	}
	return string(data), nil
}
