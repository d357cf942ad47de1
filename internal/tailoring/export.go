package tailoring

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/jonathan/apply-agent/internal/types"
)

// Format is an export file format.
type Format string

const (
	FormatPDF  Format = "pdf"
	FormatDOCX Format = "docx"
	FormatTXT  Format = "txt"
)

// ParseFormat validates a user-supplied format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatPDF, FormatDOCX, FormatTXT:
		return f, nil
	}
	return "", fmt.Errorf("unsupported format %q (want pdf, docx or txt)", s)
}

// ContentType returns the MIME type for the format.
func (f Format) ContentType() string {
	switch f {
	case FormatPDF:
		return "application/pdf"
	case FormatDOCX:
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	default:
		return "text/plain; charset=utf-8"
	}
}

// ActiveResumeStore persists the resume the user chose.
type ActiveResumeStore interface {
	SaveActiveResume(ctx context.Context, snap types.ActiveResumeSnapshot) error
	AppendHistory(ctx context.Context, entry types.HistoryEntry) error
}

// Exporter hands a reviewed resume off to the user. Every operation is refused
// while the reviewer gate is closed.
type Exporter struct {
	store  ActiveResumeStore
	logger *zap.Logger
	now    func() time.Time
}

// NewExporter creates an exporter. store may be nil if Use is never called.
func NewExporter(store ActiveResumeStore, logger *zap.Logger) *Exporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Exporter{store: store, logger: logger, now: time.Now}
}

// Bytes returns the document in the requested format.
func (e *Exporter) Bytes(r *TailoredResume, format Format) ([]byte, error) {
	if err := r.RequireReviewerPassed("download " + string(format)); err != nil {
		return nil, err
	}

	var encoded string
	switch format {
	case FormatTXT:
		return []byte(r.TailoredText), nil
	case FormatPDF:
		encoded = r.Files.PDF
	case FormatDOCX:
		encoded = r.Files.DOCX
	default:
		return nil, fmt.Errorf("unsupported format %q", format)
	}

	if encoded == "" {
		return nil, &Error{Op: "download", Message: fmt.Sprintf("the service returned no %s file", format)}
	}
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, &Error{Op: "download", Message: fmt.Sprintf("%s file is not valid base64", format), Cause: err}
	}
	return data, nil
}

// Download writes the document into dir and returns the file path.
func (e *Exporter) Download(r *TailoredResume, format Format, dir string) (string, error) {
	data, err := e.Bytes(r, format)
	if err != nil {
		return "", err
	}

	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	path := filepath.Join(dir, FileName(r.JobTitle, format))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}

	e.logger.Info("resume exported", zap.String("path", path), zap.Int("bytes", len(data)))
	return path, nil
}

// Use saves the resume as the active snapshot.
func (e *Exporter) Use(ctx context.Context, r *TailoredResume) (*types.ActiveResumeSnapshot, error) {
	if err := r.RequireReviewerPassed("use resume"); err != nil {
		return nil, err
	}
	if e.store == nil {
		return nil, &Error{Op: "use", Message: "no storage configured"}
	}

	snap := r.Snapshot()
	snap.SavedAt = e.now().UTC()
	if err := e.store.SaveActiveResume(ctx, snap); err != nil {
		return nil, &Error{Op: "use", Message: "failed to save active resume", Cause: err}
	}

	detail := fmt.Sprintf("ATS %d, match %d", snap.Scores.ATS, snap.Scores.Match)
	if err := e.store.AppendHistory(ctx, types.NewHistoryEntry(types.HistoryUse, r.JobTitle, detail)); err != nil {
		e.logger.Warn("failed to record history", zap.Error(err))
	}
	return &snap, nil
}

var unsafeFileChars = regexp.MustCompile(`[^a-z0-9]+`)

// FileName builds a download name from the job title.
func FileName(jobTitle string, format Format) string {
	slug := strings.Trim(unsafeFileChars.ReplaceAllString(strings.ToLower(jobTitle), "-"), "-")
	if len(slug) > 60 {
		slug = strings.Trim(slug[:60], "-")
	}
	if slug == "" {
		return "tailored-resume." + string(format)
	}
	return slug + "-resume." + string(format)
}
