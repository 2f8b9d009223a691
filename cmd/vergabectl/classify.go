package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/Lllllllleong/vergabeflow/internal/docproc"
	"github.com/Lllllllleong/vergabeflow/internal/services"
	"github.com/spf13/cobra"
)

func classifyCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "classify <file.pdf>...",
		Short: "Classify local PDF files with the production pipeline",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			processor, err := services.ProcessorFromEnv(slog.Default())
			if err != nil {
				return err
			}
			files, err := readLocalFiles(args)
			if err != nil {
				return err
			}
			report := processor.ProcessFiles(cmd.Context(), files, func(p docproc.Progress) {
				slog.Debug("Classifying.", "current", p.Current, "total", p.Total, "filename", p.Filename, "status", p.Status)
			})
			if asJSON {
				return writeReportJSON(cmd.OutOrStdout(), report)
			}
			return writeReportTable(cmd.OutOrStdout(), report)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the batch report as JSON")
	return cmd
}

func readLocalFiles(paths []string) ([]docproc.UploadFile, error) {
	files := make([]docproc.UploadFile, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", p, err)
		}
		files = append(files, docproc.UploadFile{
			UploadCandidate: docproc.UploadCandidate{
				Name:     filepath.Base(p),
				Size:     int64(len(data)),
				MIMEType: detectMIMEType(data),
			},
			Data: data,
		})
	}
	return files, nil
}

func detectMIMEType(data []byte) string {
	return strings.TrimSpace(strings.Split(http.DetectContentType(data), ";")[0])
}

type classifyOutput struct {
	Results []docproc.ProcessedDocument `json:"results"`
	Errors  []docproc.FileError         `json:"errors"`
}

func writeReportJSON(w io.Writer, report docproc.BatchReport) error {
	out := classifyOutput{Results: report.Results, Errors: report.Errors}
	for i := range out.Results {
		out.Results[i].SanitizedText = ""
	}
	if out.Results == nil {
		out.Results = []docproc.ProcessedDocument{}
	}
	if out.Errors == nil {
		out.Errors = []docproc.FileError{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func writeReportTable(w io.Writer, report docproc.BatchReport) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	header := []string{"FILE", "TYPE", "CONFIDENCE"}
	for _, c := range docproc.Categories() {
		header = append(header, strings.ToUpper(abbreviation(c)))
	}
	header = append(header, "EXCERPT")
	fmt.Fprintln(tw, strings.Join(header, "\t"))

	for _, doc := range report.Results {
		row := []string{doc.Filename, string(doc.DocumentType), fmt.Sprintf("%.2f", doc.Confidence)}
		for _, c := range docproc.Categories() {
			s := doc.Scores[c]
			row = append(row, fmt.Sprintf("%.1f (%d)", s.Score, s.MatchCount))
		}
		row = append(row, shorten(doc.Excerpt, 60))
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	for _, fe := range report.Errors {
		fmt.Fprintf(w, "FEHLER %s [%s]: %s\n", fe.Filename, docproc.FailureKind(fe.Err), fe.Error)
	}
	return nil
}

func abbreviation(c docproc.Category) string {
	switch c {
	case docproc.CategoryLeistungsbeschreibung:
		return "lb"
	case docproc.CategoryEignungskriterien:
		return "ek"
	case docproc.CategoryZuschlagskriterien:
		return "zk"
	}
	return string(c)
}

func shorten(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
