package application

import (
	"context"
	"time"
)

// TranscribeOptions carries per-request tuning. Engines ignore fields
// they have no use for.
type TranscribeOptions struct {
	// ChunkSeconds overrides the configured chunk length for engines
	// that split long audio. Zero keeps the engine default.
	ChunkSeconds int
}

type Transcriber interface {
	Name() string
	Transcribe(ctx context.Context, audio []byte, opts TranscribeOptions) (string, error)
}

// AudioInfo is what a probe learns about an uploaded file.
type AudioInfo struct {
	Duration        time.Duration
	Codec           string
	SampleRate      int
	Warnings        []string
	NeedsConversion bool
}

// MediaConverter probes uploads and re-encodes them into each engine's
// preferred format.
type MediaConverter interface {
	Probe(ctx context.Context, path string) (AudioInfo, error)
	ToWAV(ctx context.Context, inputPath, outputPath string) error
	ToM4A(ctx context.Context, inputPath, outputPath string) error
}
