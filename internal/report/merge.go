// Package report renders batch results into the text artifacts bundled
// for download: a merged timestamped log per engine, a dual-engine
// comparison, and the ZIP archive holding them.
package report

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"radioscribe/internal/domain"
)

var sentenceSplit = regexp.MustCompile(`[。！？\n]+`)

const (
	headerRule  = "════════════════════════════════════════════════════════════"
	sectionRule = "────────────────────────────────────────────────────────────"
)

// MergedTranscript renders records as a single chronological radio log.
// Each file's transcript is cut into exchanges and the file's duration
// is spread evenly across them to approximate real timestamps.
func MergedTranscript(records []domain.Record, now time.Time) string {
	sorted := make([]domain.Record, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Start.Before(sorted[j].Start)
	})

	var b strings.Builder
	b.WriteString(headerRule + "\n")
	b.WriteString("           Radio Communications Log - Merged Transcript\n")
	b.WriteString(headerRule + "\n")
	fmt.Fprintf(&b, "Generated: %s\n", now.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "Total duration: %s\n", formatDuration(domain.TotalDuration(sorted)))
	fmt.Fprintf(&b, "Files: %d\n", len(sorted))
	b.WriteString(headerRule + "\n\n")
	fmt.Fprintf(&b, "%-12s %-12s %s\n", "Date", "Time", "Exchange")
	b.WriteString(sectionRule + "\n")

	speakerA := true

	for _, rec := range sorted {
		dialogues := splitDialogues(rec)

		interval := time.Duration(0)
		if len(dialogues) > 0 {
			interval = rec.Duration / time.Duration(len(dialogues))
		}

		for i, dialogue := range dialogues {
			ts := rec.Start.Add(time.Duration(i) * interval)
			speaker := "Speaker A"
			if !speakerA {
				speaker = "Speaker B"
			}
			fmt.Fprintf(&b, "%-12s %-12s %s: %s\n",
				ts.Format("2006-01-02"), ts.Format("15:04:05"), speaker, dialogue)
			speakerA = !speakerA
		}

		b.WriteString("\n" + sectionRule + "\n")
		fmt.Fprintf(&b, "[source: %s | length: %s]\n", rec.Filename, formatDuration(rec.Duration))
		b.WriteString(sectionRule + "\n\n")
	}

	b.WriteString(headerRule + "\n")
	b.WriteString("                        End of log\n")
	b.WriteString(headerRule + "\n")
	return b.String()
}

// IndividualTranscript renders one record as a standalone text file.
func IndividualTranscript(rec domain.Record) string {
	return fmt.Sprintf("File: %s\nStart: %s\nLength: %s\nTranscript: %s\n",
		rec.Filename,
		rec.Start.Format("2006-01-02 15:04:05"),
		formatDuration(rec.Duration),
		recordText(rec),
	)
}

func splitDialogues(rec domain.Record) []string {
	if rec.Failed() {
		return []string{recordText(rec)}
	}

	var dialogues []string
	for _, s := range sentenceSplit.Split(rec.Transcript, -1) {
		if s = strings.TrimSpace(s); s != "" {
			dialogues = append(dialogues, s)
		}
	}
	if len(dialogues) == 0 {
		dialogues = []string{recordText(rec)}
	}
	return dialogues
}

// recordText is the transcript, or a readable placeholder when the
// engine failed or heard nothing.
func recordText(rec domain.Record) string {
	if !rec.Failed() {
		if strings.TrimSpace(rec.Transcript) == "" {
			return "[no speech recognized]"
		}
		return rec.Transcript
	}
	return "[" + errorLabel(rec.Err) + "]"
}

func errorLabel(err error) string {
	switch {
	case errors.Is(err, domain.ErrQuotaExhausted):
		return "transcription failed: API quota exhausted"
	case errors.Is(err, domain.ErrInvalidAudio):
		return "transcription failed: invalid audio"
	case errors.Is(err, domain.ErrAudioTooLarge):
		return "transcription failed: audio too large"
	case errors.Is(err, domain.ErrSafetyBlocked):
		return "transcription failed: blocked by safety filter"
	case errors.Is(err, domain.ErrEmptyTranscript):
		return "no speech recognized"
	default:
		return "transcription failed"
	}
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}
