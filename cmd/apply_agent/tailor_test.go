package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/apply-agent/internal/tailoring"
)

func TestExportResume(t *testing.T) {
	ctx := context.Background()

	t.Run("gate closed writes nothing", func(t *testing.T) {
		dir := t.TempDir()
		a, _ := testApp(t, map[string]any{"export_dir": dir})
		repo, err := a.repository(ctx)
		require.NoError(t, err)

		err = exportResume(ctx, a, tailoring.NewExporter(repo, nil), tailoredResume(t, false), []tailoring.Format{tailoring.FormatPDF}, true)
		require.ErrorIs(t, err, tailoring.ErrGateClosed)

		entries, err := os.ReadDir(dir)
		require.NoError(t, err)
		assert.Empty(t, entries)

		snap, err := repo.LoadActiveResume(ctx)
		require.NoError(t, err)
		assert.Nil(t, snap)
	})

	t.Run("gate open writes every format", func(t *testing.T) {
		dir := t.TempDir()
		a, out := testApp(t, map[string]any{"export_dir": dir})
		repo, err := a.repository(ctx)
		require.NoError(t, err)

		formats := []tailoring.Format{tailoring.FormatPDF, tailoring.FormatTXT}
		require.NoError(t, exportResume(ctx, a, tailoring.NewExporter(repo, nil), tailoredResume(t, true), formats, true))

		pdf, err := os.ReadFile(filepath.Join(dir, tailoring.FileName("Backend Engineer", tailoring.FormatPDF)))
		require.NoError(t, err)
		assert.Equal(t, "%PDF-1.7", string(pdf))

		txt, err := os.ReadFile(filepath.Join(dir, tailoring.FileName("Backend Engineer", tailoring.FormatTXT)))
		require.NoError(t, err)
		assert.Equal(t, "tailored master resume", string(txt))

		assert.Contains(t, out.String(), "Active resume set (Backend Engineer")
		snap, err := repo.LoadActiveResume(ctx)
		require.NoError(t, err)
		require.NotNil(t, snap)
		assert.True(t, snap.ReviewerPassed)
	})

	t.Run("missing file is reported but others are written", func(t *testing.T) {
		dir := t.TempDir()
		a, _ := testApp(t, map[string]any{"export_dir": dir})

		formats := []tailoring.Format{tailoring.FormatDOCX, tailoring.FormatTXT}
		err := exportResume(ctx, a, tailoring.NewExporter(nil, nil), tailoredResume(t, true), formats, false)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no docx file")

		entries, err := os.ReadDir(dir)
		require.NoError(t, err)
		assert.Len(t, entries, 1)
	})
}

func TestTailorCommand_MissingFlags(t *testing.T) {
	output, err := runBinary(t, "tailor")
	assert.Error(t, err)
	assert.Contains(t, output, `required flag(s) "jd" not set`)
}
