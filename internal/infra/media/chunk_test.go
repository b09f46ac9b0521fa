package media

import (
	"bytes"
	"os"
	"testing"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// makeWAV synthesizes a mono 16-bit WAV of the given duration.
func makeWAV(t *testing.T, sampleRate int, dur time.Duration) []byte {
	t.Helper()

	frames := int(dur.Seconds() * float64(sampleRate))
	data := make([]int, frames)
	for i := range data {
		data[i] = (i % 256) - 128
	}

	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 1, SampleRate: sampleRate},
		Data:           data,
		SourceBitDepth: 16,
	}

	tmp, err := os.CreateTemp(t.TempDir(), "test-*.wav")
	if err != nil {
		t.Fatal(err)
	}
	defer tmp.Close()

	enc := wav.NewEncoder(tmp, sampleRate, 16, 1, 1)
	if err := enc.Write(buf); err != nil {
		t.Fatalf("encoding test wav: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("closing encoder: %v", err)
	}

	out, err := os.ReadFile(tmp.Name())
	if err != nil {
		t.Fatal(err)
	}
	return out
}

func TestSplitWAV_ShortAudioSingleChunk(t *testing.T) {
	wavData := makeWAV(t, 16000, 2*time.Second)

	chunks, err := SplitWAV(wavData, 10*time.Second)
	if err != nil {
		t.Fatalf("SplitWAV error: %v", err)
	}
	if len(chunks) != 1 {
		t.Fatalf("chunks: got %d, want 1", len(chunks))
	}
}

func TestSplitWAV_LongAudioSplits(t *testing.T) {
	wavData := makeWAV(t, 16000, 5*time.Second)

	chunks, err := SplitWAV(wavData, 2*time.Second)
	if err != nil {
		t.Fatalf("SplitWAV error: %v", err)
	}
	if len(chunks) != 3 {
		t.Fatalf("chunks: got %d, want 3", len(chunks))
	}

	// Each chunk must decode on its own with the source format.
	var totalFrames int
	for i, chunk := range chunks {
		dec := wav.NewDecoder(bytes.NewReader(chunk))
		buf, err := dec.FullPCMBuffer()
		if err != nil {
			t.Fatalf("chunk %d does not decode: %v", i, err)
		}
		if buf.Format.SampleRate != 16000 {
			t.Errorf("chunk %d sample rate: got %d", i, buf.Format.SampleRate)
		}
		if buf.Format.NumChannels != 1 {
			t.Errorf("chunk %d channels: got %d", i, buf.Format.NumChannels)
		}
		totalFrames += len(buf.Data)
	}

	if want := 5 * 16000; totalFrames != want {
		t.Errorf("total frames: got %d, want %d", totalFrames, want)
	}
}

func TestSplitWAV_InvalidInput(t *testing.T) {
	if _, err := SplitWAV([]byte("not a wav"), time.Second); err == nil {
		t.Fatal("expected error for garbage input")
	}
}

func TestSplitWAV_BadChunkDuration(t *testing.T) {
	wavData := makeWAV(t, 16000, time.Second)
	if _, err := SplitWAV(wavData, 0); err == nil {
		t.Fatal("expected error for zero chunk duration")
	}
}
