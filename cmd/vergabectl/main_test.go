package main

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Lllllllleong/vergabeflow/internal/docproc"
	"github.com/Lllllllleong/vergabeflow/internal/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleReport() docproc.BatchReport {
	return docproc.BatchReport{
		Results: []docproc.ProcessedDocument{{
			Filename:      "lv_schule.pdf",
			DocumentType:  docproc.CategoryLeistungsbeschreibung,
			Confidence:    0.83,
			SanitizedText: "voller Text",
			Excerpt:       "Leistungsbeschreibung für den Neubau der Grundschule",
			Scores: map[docproc.Category]docproc.CategoryScore{
				docproc.CategoryLeistungsbeschreibung: {Score: 7, MatchCount: 2},
				docproc.CategoryZuschlagskriterien:    {Score: 1, MatchCount: 1},
			},
		}},
		Errors: []docproc.FileError{{
			Filename: "foto.png",
			Error:    "Dateityp nicht unterstützt",
			Kind:     docproc.ErrorKindProcessing,
			Err:      &docproc.ValidationError{Kind: docproc.UnsupportedType, Message: "Dateityp nicht unterstützt"},
		}},
	}
}

func TestWriteReportTable(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeReportTable(&buf, sampleReport()))
	out := buf.String()

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, []string{"FILE", "TYPE", "CONFIDENCE", "LB", "EK", "ZK", "EXCERPT"}, strings.Fields(lines[0]))
	assert.Contains(t, lines[1], "lv_schule.pdf")
	assert.Contains(t, lines[1], "0.83")
	assert.Contains(t, lines[1], "7.0 (2)")
	assert.Contains(t, lines[1], "0.0 (0)")
	assert.Equal(t, "FEHLER foto.png [unsupported_type]: Dateityp nicht unterstützt", lines[2])
}

func TestWriteReportJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeReportJSON(&buf, sampleReport()))

	var out struct {
		Results []map[string]any `json:"results"`
		Errors  []map[string]any `json:"errors"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	require.Len(t, out.Results, 1)
	assert.Equal(t, "leistungsbeschreibung", out.Results[0]["document_type"])
	assert.Empty(t, out.Results[0]["extracted_text"])
	assert.Contains(t, out.Results[0], "scores")
	require.Len(t, out.Errors, 1)
	assert.Equal(t, "foto.png", out.Errors[0]["filename"])
}

func TestWriteReportJSONEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeReportJSON(&buf, docproc.BatchReport{}))
	assert.JSONEq(t, `{"results":[],"errors":[]}`, buf.String())
}

func TestReadLocalFiles(t *testing.T) {
	dir := t.TempDir()
	pdfPath := filepath.Join(dir, "a.pdf")
	txtPath := filepath.Join(dir, "b.txt")
	require.NoError(t, os.WriteFile(pdfPath, []byte("%PDF-1.7\n%âãÏÓ\n"), 0o600))
	require.NoError(t, os.WriteFile(txtPath, []byte("hallo"), 0o600))

	files, err := readLocalFiles([]string{pdfPath, txtPath})
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, "a.pdf", files[0].Name)
	assert.Equal(t, docproc.PDFMIMEType, files[0].MIMEType)
	assert.Equal(t, "text/plain", files[1].MIMEType)

	_, err = readLocalFiles([]string{filepath.Join(dir, "missing.pdf")})
	assert.Error(t, err)
}

func TestMetricsMux(t *testing.T) {
	mux := metricsMux(metrics.New())

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestVersionCommand(t *testing.T) {
	cmd := rootCmd()
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetArgs([]string{"version", "--log-level", "error"})
	require.NoError(t, cmd.Execute())
	assert.Equal(t, "vergabectl version 0.1.0\n", buf.String())
}

func TestClassifyRequiresArgs(t *testing.T) {
	cmd := rootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"classify"})
	assert.Error(t, cmd.Execute())
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, parseLevel("warn"))
	assert.Equal(t, slog.LevelError, parseLevel("error"))
	assert.Equal(t, slog.LevelInfo, parseLevel("verbose"))
}
