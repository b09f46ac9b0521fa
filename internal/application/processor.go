package application

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"radioscribe/internal/domain"
)

// Upload is one file saved to disk for processing.
type Upload struct {
	Filename string
	Path     string
}

// Processor runs an upload batch through one or both engines. A failed
// file or engine call produces a Record carrying the error; the batch
// always runs to completion.
type Processor struct {
	media  MediaConverter
	stt    Transcriber
	gemini Transcriber
	logger *slog.Logger
	now    func() time.Time
}

func NewProcessor(media MediaConverter, stt, gemini Transcriber, logger *slog.Logger) *Processor {
	return &Processor{
		media:  media,
		stt:    stt,
		gemini: gemini,
		logger: logger,
		now:    time.Now,
	}
}

func (p *Processor) ProcessBatch(ctx context.Context, uploads []Upload, mode domain.Mode, opts TranscribeOptions) (*domain.BatchResult, error) {
	if len(uploads) == 0 {
		return nil, fmt.Errorf("no files to process")
	}
	if mode.UsesSTT() && p.stt == nil {
		return nil, fmt.Errorf("google stt engine not configured")
	}
	if mode.UsesGemini() && p.gemini == nil {
		return nil, fmt.Errorf("gemini engine not configured")
	}

	result := &domain.BatchResult{Mode: mode}

	for i, upload := range uploads {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		p.logger.Info("processing upload",
			"file", upload.Filename,
			"index", i+1,
			"total", len(uploads),
		)

		start := domain.ParseStartTime(upload.Filename, p.now)

		info, err := p.media.Probe(ctx, upload.Path)
		if err != nil {
			p.logger.Error("probing upload", "file", upload.Filename, "error", err)
			probeErr := fmt.Errorf("probing audio: %w", err)
			if mode.UsesSTT() {
				result.STT = append(result.STT, failedRecord(upload, domain.EngineGoogleSTT, start, probeErr))
			}
			if mode.UsesGemini() {
				result.Gemini = append(result.Gemini, failedRecord(upload, domain.EngineGemini, start, probeErr))
			}
			continue
		}

		for _, warning := range info.Warnings {
			p.logger.Warn("audio quality", "file", upload.Filename, "warning", warning)
		}

		var sttRec, geminiRec domain.Record
		var wg sync.WaitGroup

		if mode.UsesSTT() {
			wg.Add(1)
			go func() {
				defer wg.Done()
				sttRec = p.runEngine(ctx, upload, p.stt, domain.EngineGoogleSTT, start, info.Duration, opts)
			}()
		}
		if mode.UsesGemini() {
			wg.Add(1)
			go func() {
				defer wg.Done()
				geminiRec = p.runEngine(ctx, upload, p.gemini, domain.EngineGemini, start, info.Duration, opts)
			}()
		}
		wg.Wait()

		if mode.UsesSTT() {
			result.STT = append(result.STT, sttRec)
		}
		if mode.UsesGemini() {
			result.Gemini = append(result.Gemini, geminiRec)
		}
	}

	return result, nil
}

func (p *Processor) runEngine(ctx context.Context, upload Upload, t Transcriber, engine domain.Engine, start time.Time, dur time.Duration, opts TranscribeOptions) domain.Record {
	rec := domain.Record{
		Filename: upload.Filename,
		Engine:   engine,
		Start:    start,
		Duration: dur,
	}

	var converted string
	var err error
	switch engine {
	case domain.EngineGemini:
		converted = upload.Path + ".16k.m4a"
		err = p.media.ToM4A(ctx, upload.Path, converted)
	default:
		converted = upload.Path + ".16k.wav"
		err = p.media.ToWAV(ctx, upload.Path, converted)
	}
	if err != nil {
		rec.Err = fmt.Errorf("converting audio: %w", err)
		return rec
	}
	defer os.Remove(converted)

	data, err := os.ReadFile(converted)
	if err != nil {
		rec.Err = fmt.Errorf("reading converted audio: %w", err)
		return rec
	}

	text, err := t.Transcribe(ctx, data, opts)
	if err != nil {
		p.logger.Error("transcription failed",
			"file", upload.Filename,
			"engine", t.Name(),
			"error", err,
		)
		rec.Err = err
		return rec
	}

	p.logger.Info("transcription done",
		"file", upload.Filename,
		"engine", t.Name(),
		"chars", len(text),
	)
	rec.Transcript = text
	return rec
}

func failedRecord(upload Upload, engine domain.Engine, start time.Time, err error) domain.Record {
	return domain.Record{
		Filename: upload.Filename,
		Engine:   engine,
		Start:    start,
		Err:      err,
	}
}
