package googlestt

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
	"github.com/googleapis/gax-go/v2"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"radioscribe/internal/application"
	"radioscribe/internal/domain"
	"radioscribe/internal/infra"
	"radioscribe/internal/infra/media"
)

// Options configures recognition. Zero values fall back to the settings
// that work best for 2-way radio recordings.
type Options struct {
	Language     string
	Model        string
	SampleRate   int
	PhraseHints  []string
	PhraseBoost  float64
	ChunkSeconds int
	MaxInlineMB  int64
}

func (o *Options) setDefaults() {
	if o.Language == "" {
		o.Language = "cmn-Hant-TW"
	}
	if o.Model == "" {
		o.Model = "latest_long"
	}
	if o.SampleRate == 0 {
		o.SampleRate = 16000
	}
	if o.PhraseBoost == 0 {
		o.PhraseBoost = 15
	}
	if o.ChunkSeconds == 0 {
		o.ChunkSeconds = 50
	}
	if o.MaxInlineMB == 0 {
		o.MaxInlineMB = 8
	}
}

type recognizer interface {
	Recognize(ctx context.Context, req *speechpb.RecognizeRequest, opts ...gax.CallOption) (*speechpb.RecognizeResponse, error)
}

type Client struct {
	speech recognizer
	closer func() error
	opts   Options
	logger *slog.Logger
}

// NewClient builds a Speech-to-Text client from service-account JSON.
func NewClient(ctx context.Context, credentialsJSON []byte, opts Options, logger *slog.Logger) (*Client, error) {
	sc, err := speech.NewClient(ctx, option.WithCredentialsJSON(credentialsJSON))
	if err != nil {
		return nil, fmt.Errorf("creating speech client: %w", err)
	}
	c := newClient(sc, opts, logger)
	c.closer = sc.Close
	return c, nil
}

func newClient(r recognizer, opts Options, logger *slog.Logger) *Client {
	opts.setDefaults()
	return &Client{speech: r, opts: opts, logger: logger}
}

func (c *Client) Close() error {
	if c.closer != nil {
		return c.closer()
	}
	return nil
}

func (c *Client) Name() string {
	return string(domain.EngineGoogleSTT)
}

// Transcribe recognizes a PCM 16 kHz mono WAV. Long recordings are cut
// into chunks so each request stays under the synchronous recognize
// limits; one bad chunk leaves a placeholder instead of failing the file.
func (c *Client) Transcribe(ctx context.Context, wavData []byte, opts application.TranscribeOptions) (string, error) {
	chunkSeconds := c.opts.ChunkSeconds
	if opts.ChunkSeconds > 0 {
		chunkSeconds = opts.ChunkSeconds
	}
	chunkDur := time.Duration(chunkSeconds) * time.Second
	chunks, err := media.SplitWAV(wavData, chunkDur)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrInvalidAudio, err)
	}

	maxBytes := c.opts.MaxInlineMB * 1024 * 1024

	if len(chunks) == 1 {
		if int64(len(chunks[0])) > maxBytes {
			return "", fmt.Errorf("%w: %d bytes, limit %d", domain.ErrAudioTooLarge, len(chunks[0]), maxBytes)
		}
		text, err := c.recognizeChunk(ctx, chunks[0])
		if err != nil {
			return "", err
		}
		if text == "" {
			return "", domain.ErrEmptyTranscript
		}
		return text, nil
	}

	var parts []string
	for i, chunk := range chunks {
		if int64(len(chunk)) > maxBytes {
			c.logger.Warn("chunk exceeds inline limit, skipping", "chunk", i+1, "bytes", len(chunk))
			parts = append(parts, fmt.Sprintf("[segment %d too large, skipped]", i+1))
			continue
		}

		text, err := c.recognizeChunk(ctx, chunk)
		if err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			c.logger.Warn("chunk recognition failed", "chunk", i+1, "error", err)
			if errors.Is(err, domain.ErrQuotaExhausted) {
				parts = append(parts, fmt.Sprintf("[segment %d: quota exhausted]", i+1))
			} else {
				parts = append(parts, fmt.Sprintf("[segment %d failed]", i+1))
			}
			continue
		}
		parts = append(parts, text)
	}

	full := strings.Join(parts, "")
	if strings.TrimSpace(full) == "" {
		return "", domain.ErrEmptyTranscript
	}
	return full, nil
}

func (c *Client) recognizeChunk(ctx context.Context, wavChunk []byte) (string, error) {
	req := &speechpb.RecognizeRequest{
		Config: &speechpb.RecognitionConfig{
			Encoding:                   speechpb.RecognitionConfig_LINEAR16,
			SampleRateHertz:            int32(c.opts.SampleRate),
			LanguageCode:               c.opts.Language,
			EnableAutomaticPunctuation: true,
			Model:                      c.opts.Model,
		},
		Audio: &speechpb.RecognitionAudio{
			AudioSource: &speechpb.RecognitionAudio_Content{Content: wavChunk},
		},
	}
	if len(c.opts.PhraseHints) > 0 {
		req.Config.SpeechContexts = []*speechpb.SpeechContext{
			{Phrases: c.opts.PhraseHints, Boost: float32(c.opts.PhraseBoost)},
		}
	}

	var resp *speechpb.RecognizeResponse
	retryErr := infra.WithRetry(ctx, infra.DefaultRetryConfig(), func() error {
		var err error
		resp, err = c.speech.Recognize(ctx, req)
		if err != nil {
			return classifyGRPCError(err)
		}
		return nil
	})
	if retryErr != nil {
		return "", retryErr
	}

	var text strings.Builder
	for _, result := range resp.GetResults() {
		if len(result.GetAlternatives()) == 0 {
			continue
		}
		text.WriteString(result.GetAlternatives()[0].GetTranscript())
	}
	return text.String(), nil
}

func classifyGRPCError(err error) error {
	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	switch st.Code() {
	case codes.ResourceExhausted:
		return fmt.Errorf("%w: %s", domain.ErrQuotaExhausted, st.Message())
	case codes.InvalidArgument:
		return infra.Permanent(fmt.Errorf("%w: %s", domain.ErrInvalidAudio, st.Message()))
	case codes.Unauthenticated, codes.PermissionDenied:
		return infra.Permanent(fmt.Errorf("speech API auth: %s", st.Message()))
	case codes.Unavailable, codes.DeadlineExceeded, codes.Internal:
		return fmt.Errorf("speech API error %s: %s (retryable)", st.Code(), st.Message())
	default:
		return infra.Permanent(fmt.Errorf("speech API error %s: %s", st.Code(), st.Message()))
	}
}
