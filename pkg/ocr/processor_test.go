package ocr_test

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/eduardo5010/study-cycle/pkg/model"
	"github.com/eduardo5010/study-cycle/pkg/ocr"
	"github.com/eduardo5010/study-cycle/pkg/repository"
	"github.com/m-mizutani/gt"
)

var processedAt = time.Date(2025, 5, 2, 8, 30, 0, 0, time.UTC)

func newTesseract(repo repository.Repository) *ocr.Tesseract {
	return ocr.NewTesseract(repo,
		ocr.WithBinary(filepath.Join(os.TempDir(), "no-such-ocr-engine")),
		ocr.WithClock(func() time.Time { return processedAt }),
	)
}

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	gt.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

func TestTesseractPlainTextFallback(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemory()
	path := writeFile(t, "notes.txt", []byte("  Krebs cycle notes\n"))

	err := newTesseract(repo).Process(ctx, model.OCRJob{Path: path, ContentID: "content-1"})
	gt.NoError(t, err)

	content, err := repo.GetContent(ctx, "content-1")
	gt.NoError(t, err)
	gt.Equal(t, content.OCRText, "Krebs cycle notes")
	gt.NotNil(t, content.OCRProcessedAt)
	gt.Equal(t, *content.OCRProcessedAt, processedAt)
}

func TestTesseractRejectsUnreadable(t *testing.T) {
	ctx := context.Background()

	testCases := map[string][]byte{
		"binary": {0xff, 0xfe, 0x00, 0x89},
		"large":  []byte(strings.Repeat("a", 200001)),
	}
	for name, data := range testCases {
		t.Run(name, func(t *testing.T) {
			repo := repository.NewMemory()
			path := writeFile(t, name+".bin", data)

			gt.Error(t, newTesseract(repo).Process(ctx, model.OCRJob{Path: path, ContentID: "content-1"}))
			_, err := repo.GetContent(ctx, "content-1")
			gt.Error(t, err)
		})
	}

	t.Run("missing file", func(t *testing.T) {
		repo := repository.NewMemory()
		gt.Error(t, newTesseract(repo).Process(ctx, model.OCRJob{Path: "/no/such/file.png", ContentID: "content-1"}))
	})
}

func TestTesseractEngine(t *testing.T) {
	bin, err := exec.LookPath("tesseract")
	if err != nil {
		t.Skip("tesseract is not installed")
	}
	image := os.Getenv("TEST_OCR_IMAGE")
	if image == "" {
		t.Skip("TEST_OCR_IMAGE is not set")
	}

	ctx := context.Background()
	repo := repository.NewMemory()
	proc := ocr.NewTesseract(repo, ocr.WithBinary(bin))
	gt.NoError(t, proc.Process(ctx, model.OCRJob{Path: image, ContentID: "content-1"}))

	content, err := repo.GetContent(ctx, "content-1")
	gt.NoError(t, err)
	gt.True(t, content.OCRText != "")
}

func TestQueueWithTesseract(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemory()
	q := ocr.NewQueue(newTesseract(repo))

	for _, text := range []string{"first", "second", "third"} {
		path := writeFile(t, text+".txt", []byte(text))
		q.Enqueue(ctx, path, model.ContentID(text), "learner-1")
	}
	q.Enqueue(ctx, "/no/such/file", "missing", "")
	gt.NoError(t, q.Close(waitCtx(t)))

	for _, text := range []string{"first", "second", "third"} {
		content, err := repo.GetContent(ctx, model.ContentID(text))
		gt.NoError(t, err)
		gt.Equal(t, content.OCRText, text)
	}
}
