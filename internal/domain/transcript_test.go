package domain

import (
	"testing"
	"time"
)

func TestParseMode(t *testing.T) {
	cases := []struct {
		in   string
		want Mode
	}{
		{"stt", ModeSTT},
		{"GEMINI", ModeGemini},
		{"dual", ModeDual},
		{"", ModeDual},
		{"whatever", ModeDual},
	}

	for _, c := range cases {
		if got := ParseMode(c.in); got != c.want {
			t.Errorf("ParseMode(%q): got %s, want %s", c.in, got, c.want)
		}
	}
}

func TestModeEngines(t *testing.T) {
	if !ModeDual.UsesSTT() || !ModeDual.UsesGemini() {
		t.Error("dual mode should use both engines")
	}
	if !ModeSTT.UsesSTT() || ModeSTT.UsesGemini() {
		t.Error("stt mode should use only google stt")
	}
	if ModeGemini.UsesSTT() || !ModeGemini.UsesGemini() {
		t.Error("gemini mode should use only gemini")
	}
}

func TestParseStartTime(t *testing.T) {
	fallback := time.Date(2024, 6, 1, 12, 0, 0, 0, time.Local)
	now := func() time.Time { return fallback }

	got := ParseStartTime("20240131_154502_channel3.wav", now)
	want := time.Date(2024, 1, 31, 15, 45, 2, 0, time.Local)
	if !got.Equal(want) {
		t.Errorf("got %v, want %v", got, want)
	}

	for _, name := range []string{"recording.wav", "notadate_notatime.mp3", ""} {
		if got := ParseStartTime(name, now); !got.Equal(fallback) {
			t.Errorf("ParseStartTime(%q): got %v, want fallback", name, got)
		}
	}
}

func TestTotalDuration(t *testing.T) {
	records := []Record{
		{Duration: 30 * time.Second},
		{Duration: 90 * time.Second},
	}
	if got := TotalDuration(records); got != 2*time.Minute {
		t.Errorf("got %v, want 2m", got)
	}
}
