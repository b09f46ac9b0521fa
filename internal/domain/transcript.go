package domain

import (
	"path/filepath"
	"strings"
	"time"
)

type Mode string

const (
	ModeSTT    Mode = "stt"
	ModeGemini Mode = "gemini"
	ModeDual   Mode = "dual"
)

// ParseMode maps a form value to a Mode, defaulting to dual.
func ParseMode(s string) Mode {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeSTT:
		return ModeSTT
	case ModeGemini:
		return ModeGemini
	default:
		return ModeDual
	}
}

func (m Mode) UsesSTT() bool {
	return m == ModeSTT || m == ModeDual
}

func (m Mode) UsesGemini() bool {
	return m == ModeGemini || m == ModeDual
}

// Engine identifies which transcription service produced a record.
type Engine string

const (
	EngineGoogleSTT Engine = "google-stt"
	EngineGemini    Engine = "gemini"
)

// Record is one uploaded file's result from one engine.
type Record struct {
	Filename   string
	Engine     Engine
	Start      time.Time
	Duration   time.Duration
	Transcript string
	Err        error
}

// Failed reports whether the engine returned an error for this file.
func (r Record) Failed() bool {
	return r.Err != nil
}

// BatchResult groups the per-engine records of one upload batch.
// In dual mode STT[i] and Gemini[i] refer to the same upload.
type BatchResult struct {
	Mode   Mode
	STT    []Record
	Gemini []Record
}

// TotalDuration sums the audio length of the given records.
func TotalDuration(records []Record) time.Duration {
	var total time.Duration
	for _, r := range records {
		total += r.Duration
	}
	return total
}

// ParseStartTime extracts a recording start time from filenames of the
// form 20240131_154502_anything.wav. Radio loggers name their exports
// this way; anything else falls back to now.
func ParseStartTime(filename string, now func() time.Time) time.Time {
	name := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	parts := strings.Split(name, "_")
	if len(parts) >= 2 {
		if t, err := time.ParseInLocation("20060102150405", parts[0]+parts[1], time.Local); err == nil {
			return t
		}
	}
	return now()
}
