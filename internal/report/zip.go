package report

import (
	"archive/zip"
	"bytes"
	"fmt"
	"time"

	"radioscribe/internal/domain"
)

// BuildArchive packages a batch result into a ZIP: per-engine merged
// logs, per-file transcripts, and in dual mode the comparison report.
// Returns the archive bytes and a timestamped download filename.
func BuildArchive(result *domain.BatchResult, now time.Time) ([]byte, string, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	if result.Mode.UsesSTT() {
		if err := writeEngineFiles(zw, "GoogleSTT", result.STT, now); err != nil {
			return nil, "", err
		}
	}
	if result.Mode.UsesGemini() {
		if err := writeEngineFiles(zw, "Gemini", result.Gemini, now); err != nil {
			return nil, "", err
		}
	}
	if result.Mode == domain.ModeDual {
		if err := writeFile(zw, "Comparison_Report.txt", ComparisonReport(result.STT, result.Gemini, now)); err != nil {
			return nil, "", err
		}
	}

	if err := zw.Close(); err != nil {
		return nil, "", fmt.Errorf("finalizing archive: %w", err)
	}

	name := fmt.Sprintf("transcripts_%s.zip", now.Format("20060102_1504"))
	return buf.Bytes(), name, nil
}

func writeEngineFiles(zw *zip.Writer, prefix string, records []domain.Record, now time.Time) error {
	if err := writeFile(zw, prefix+"_Merged.txt", MergedTranscript(records, now)); err != nil {
		return err
	}
	for _, rec := range records {
		path := fmt.Sprintf("%s_Individual/%s.txt", prefix, rec.Filename)
		if err := writeFile(zw, path, IndividualTranscript(rec)); err != nil {
			return err
		}
	}
	return nil
}

func writeFile(zw *zip.Writer, name, content string) error {
	w, err := zw.Create(name)
	if err != nil {
		return fmt.Errorf("creating %s in archive: %w", name, err)
	}
	if _, err := w.Write([]byte(content)); err != nil {
		return fmt.Errorf("writing %s to archive: %w", name, err)
	}
	return nil
}
