package media

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// SplitWAV decodes a PCM WAV file and slices it into chunks of at most
// chunkDur, each re-encoded as a standalone WAV. Audio shorter than one
// chunk comes back as a single element.
func SplitWAV(wavData []byte, chunkDur time.Duration) ([][]byte, error) {
	if chunkDur <= 0 {
		return nil, fmt.Errorf("chunk duration must be positive, got %v", chunkDur)
	}

	dec := wav.NewDecoder(bytes.NewReader(wavData))
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("decoding wav: %w", err)
	}
	if buf.Format == nil || buf.Format.SampleRate == 0 {
		return nil, fmt.Errorf("wav has no format information")
	}

	sampleRate := buf.Format.SampleRate
	channels := buf.Format.NumChannels
	bitDepth := int(dec.BitDepth)
	if bitDepth == 0 {
		bitDepth = 16
	}

	// Frames per chunk, kept channel-aligned.
	framesPerChunk := int(chunkDur.Seconds() * float64(sampleRate))
	if framesPerChunk <= 0 {
		return nil, fmt.Errorf("chunk duration %v too short for sample rate %d", chunkDur, sampleRate)
	}
	samplesPerChunk := framesPerChunk * channels

	var chunks [][]byte
	for start := 0; start < len(buf.Data); start += samplesPerChunk {
		end := start + samplesPerChunk
		if end > len(buf.Data) {
			end = len(buf.Data)
		}

		chunkBuf := &audio.IntBuffer{
			Format:         &audio.Format{NumChannels: channels, SampleRate: sampleRate},
			Data:           buf.Data[start:end],
			SourceBitDepth: bitDepth,
		}

		encoded, err := encodeWAV(chunkBuf, sampleRate, bitDepth, channels)
		if err != nil {
			return nil, fmt.Errorf("encoding chunk at sample %d: %w", start, err)
		}
		chunks = append(chunks, encoded)
	}

	if len(chunks) == 0 {
		return nil, fmt.Errorf("wav contains no samples")
	}
	return chunks, nil
}

// encodeWAV writes a PCM buffer through the wav encoder. The encoder
// needs a WriteSeeker to patch the RIFF header, so it goes through a
// temp file.
func encodeWAV(buf *audio.IntBuffer, sampleRate, bitDepth, channels int) ([]byte, error) {
	tmp, err := os.CreateTemp("", "radioscribe-chunk-*.wav")
	if err != nil {
		return nil, fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())
	defer tmp.Close()

	enc := wav.NewEncoder(tmp, sampleRate, bitDepth, channels, 1)
	if err := enc.Write(buf); err != nil {
		return nil, fmt.Errorf("writing pcm: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("finalizing wav: %w", err)
	}

	return os.ReadFile(tmp.Name())
}
