package report

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"radioscribe/internal/domain"
)

const wideRule = "════════════════════════════════════════════════════════════════════════════════"

// ComparisonReport renders a file-by-file comparison of the two
// engines' output. Records are paired by index; the batch processor
// keeps both slices in upload order.
func ComparisonReport(stt, gemini []domain.Record, now time.Time) string {
	var b strings.Builder
	b.WriteString(wideRule + "\n")
	b.WriteString("           Google STT vs Gemini - Transcription Comparison\n")
	b.WriteString(wideRule + "\n")
	fmt.Fprintf(&b, "Generated: %s\n", now.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "Files: %d\n", len(stt))
	b.WriteString(wideRule + "\n\n")

	if len(stt) == 0 || len(gemini) == 0 {
		b.WriteString("Nothing to compare.\n")
		b.WriteString(wideRule + "\n")
		return b.String()
	}

	var sttChars, geminiChars int
	for _, r := range stt {
		sttChars += len([]rune(r.Transcript))
	}
	for _, r := range gemini {
		geminiChars += len([]rune(r.Transcript))
	}

	b.WriteString("Overall\n")
	b.WriteString(strings.Repeat("-", 80) + "\n")
	fmt.Fprintf(&b, "Google STT total characters: %d\n", sttChars)
	fmt.Fprintf(&b, "Gemini total characters: %d\n", geminiChars)
	diff := sttChars - geminiChars
	if diff < 0 {
		diff = -diff
	}
	fmt.Fprintf(&b, "Average character difference: %.1f per file\n\n", float64(diff)/float64(len(stt)))

	n := len(stt)
	if len(gemini) < n {
		n = len(gemini)
	}

	for i := 0; i < n; i++ {
		sttRec, geminiRec := stt[i], gemini[i]

		b.WriteString(wideRule + "\n")
		fmt.Fprintf(&b, "File %d: %s\n", i+1, sttRec.Filename)
		fmt.Fprintf(&b, "Length: %s\n", formatDuration(sttRec.Duration))
		b.WriteString(wideRule + "\n\n")

		b.WriteString("[Google STT]\n")
		b.WriteString(recordText(sttRec) + "\n")
		fmt.Fprintf(&b, "(%d characters)\n\n", len([]rune(sttRec.Transcript)))

		b.WriteString("[Gemini]\n")
		b.WriteString(recordText(geminiRec) + "\n")
		fmt.Fprintf(&b, "(%d characters)\n\n", len([]rune(geminiRec.Transcript)))

		b.WriteString("[Divergence]\n")
		charDiff := len([]rune(sttRec.Transcript)) - len([]rune(geminiRec.Transcript))
		if charDiff < 0 {
			charDiff = -charDiff
		}
		fmt.Fprintf(&b, "Character difference: %d\n", charDiff)

		switch {
		case sttRec.Failed() && geminiRec.Failed():
			b.WriteString("Both engines failed.\n")
		case sttRec.Failed():
			b.WriteString("Google STT failed, Gemini succeeded.\n")
		case geminiRec.Failed():
			b.WriteString("Gemini failed, Google STT succeeded.\n")
		default:
			fmt.Fprintf(&b, "Disagreement rate: %.1f%%\n", Disagreement(sttRec.Transcript, geminiRec.Transcript)*100)
			b.WriteString("Both engines succeeded.\n")
		}
		b.WriteString("\n")
	}

	b.WriteString(wideRule + "\n")
	b.WriteString("                        End of comparison\n")
	b.WriteString(wideRule + "\n")
	return b.String()
}

// Disagreement measures how much two transcripts differ as a token error
// rate: edit distance over the longer token sequence. 0 means identical
// after normalization, 1 means nothing lines up.
func Disagreement(a, b string) float64 {
	ta := tokenize(a)
	tb := tokenize(b)

	if len(ta) == 0 && len(tb) == 0 {
		return 0
	}
	longer := len(ta)
	if len(tb) > longer {
		longer = len(tb)
	}
	if len(ta) == 0 || len(tb) == 0 {
		return 1
	}

	rate := float64(editDistance(ta, tb)) / float64(longer)
	if rate > 1 {
		rate = 1
	}
	return rate
}

// tokenize lowercases, drops punctuation, and splits text into
// comparison units: whole words for alphabetic runs, single characters
// for Han text, where word boundaries don't exist.
func tokenize(s string) []string {
	var tokens []string
	var word strings.Builder

	flush := func() {
		if word.Len() > 0 {
			tokens = append(tokens, strings.ToLower(word.String()))
			word.Reset()
		}
	}

	for _, r := range s {
		switch {
		case unicode.Is(unicode.Han, r):
			flush()
			tokens = append(tokens, string(r))
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			word.WriteRune(r)
		default:
			flush()
		}
	}
	flush()
	return tokens
}

func editDistance(a, b []string) int {
	d := make([][]int, len(a)+1)
	for i := range d {
		d[i] = make([]int, len(b)+1)
		d[i][0] = i
	}
	for j := 0; j <= len(b); j++ {
		d[0][j] = j
	}

	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			if a[i-1] == b[j-1] {
				d[i][j] = d[i-1][j-1]
				continue
			}
			sub := d[i-1][j-1] + 1
			del := d[i-1][j] + 1
			ins := d[i][j-1] + 1
			d[i][j] = min(sub, min(del, ins))
		}
	}
	return d[len(a)][len(b)]
}
