package gemini

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"radioscribe/internal/application"
	"radioscribe/internal/domain"
	"radioscribe/internal/infra"
)

// transcribePrompt asks for a verbatim transcript of radio traffic.
// Call signs and jargon must survive; the model must not editorialize.
const transcribePrompt = `Transcribe this radio communication verbatim.
Rules:
1. This is metro/railway control-room traffic. Keep jargon as-is (OCC, Bypass, VVVF, etc).
2. Keep numbers and letter call signs exactly as spoken.
3. Output only the transcript, no preamble or commentary.
4. Separate distinct exchanges with a period or line break.
5. Transcribe as much of the audio as possible.`

type Client struct {
	apiKey         string
	httpClient     *http.Client
	baseURL        string
	model          string
	maxInlineBytes int64
}

func NewClient(apiKey, model string, maxInlineMB int64) *Client {
	return NewClientWithURL(apiKey, model, maxInlineMB, "https://generativelanguage.googleapis.com/v1beta")
}

func NewClientWithURL(apiKey, model string, maxInlineMB int64, baseURL string) *Client {
	if model == "" {
		model = "gemini-2.0-flash"
	}
	if maxInlineMB == 0 {
		maxInlineMB = 15
	}
	return &Client{
		apiKey:         apiKey,
		httpClient:     &http.Client{Timeout: 120 * time.Second},
		baseURL:        baseURL,
		model:          model,
		maxInlineBytes: maxInlineMB * 1024 * 1024,
	}
}

type inlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inlineData,omitempty"`
}

type content struct {
	Parts []part `json:"parts"`
	Role  string `json:"role,omitempty"`
}

type request struct {
	Contents         []content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type generationConfig struct {
	MaxOutputTokens int     `json:"maxOutputTokens"`
	Temperature     float64 `json:"temperature"`
}

type response struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback,omitempty"`
	Error *struct {
		Message string `json:"message"`
		Code    int    `json:"code"`
	} `json:"error,omitempty"`
}

func (c *Client) Name() string {
	return string(domain.EngineGemini)
}

// Transcribe sends M4A/AAC audio inline and returns the transcript
// text. Gemini takes whole recordings, so chunking options are ignored.
func (c *Client) Transcribe(ctx context.Context, audio []byte, _ application.TranscribeOptions) (string, error) {
	if int64(len(audio)) > c.maxInlineBytes {
		return "", fmt.Errorf("%w: %d bytes, limit %d", domain.ErrAudioTooLarge, len(audio), c.maxInlineBytes)
	}

	reqBody := request{
		Contents: []content{
			{
				Role: "user",
				Parts: []part{
					{Text: transcribePrompt},
					{InlineData: &inlineData{
						MimeType: "audio/mp4",
						Data:     base64.StdEncoding.EncodeToString(audio),
					}},
				},
			},
		},
		GenerationConfig: generationConfig{
			MaxOutputTokens: 8192,
			Temperature:     0.1,
		},
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	var result response
	retryErr := infra.WithRetry(ctx, infra.DefaultRetryConfig(), func() error {
		// The key goes in a header, never the URL: transport errors
		// quote the full URL and end up in logs.
		url := fmt.Sprintf("%s/models/%s:generateContent", c.baseURL, c.model)
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bodyBytes))
		if err != nil {
			return fmt.Errorf("creating request: %w", err)
		}

		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("x-goog-api-key", c.apiKey)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("sending request: %w", err)
		}
		defer resp.Body.Close()

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("reading response: %w", err)
		}

		if resp.StatusCode != http.StatusOK {
			if resp.StatusCode == http.StatusTooManyRequests {
				return fmt.Errorf("%w: gemini API error %d", domain.ErrQuotaExhausted, resp.StatusCode)
			}
			if infra.IsRetryableHTTPStatus(resp.StatusCode) {
				return fmt.Errorf("gemini API error %d: %s (retryable)", resp.StatusCode, string(respBody))
			}
			if resp.StatusCode == http.StatusBadRequest {
				return infra.Permanent(fmt.Errorf("%w: gemini API error %d: %s", domain.ErrInvalidAudio, resp.StatusCode, string(respBody)))
			}
			return infra.Permanent(fmt.Errorf("gemini API error %d: %s", resp.StatusCode, string(respBody)))
		}

		if err = json.Unmarshal(respBody, &result); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}

		return nil
	})

	if retryErr != nil {
		return "", retryErr
	}

	if result.Error != nil {
		return "", fmt.Errorf("gemini error: %s", result.Error.Message)
	}

	if result.PromptFeedback != nil && result.PromptFeedback.BlockReason != "" {
		return "", fmt.Errorf("%w: %s", domain.ErrSafetyBlocked, result.PromptFeedback.BlockReason)
	}

	if len(result.Candidates) == 0 || len(result.Candidates[0].Content.Parts) == 0 {
		return "", domain.ErrEmptyTranscript
	}

	if reason := result.Candidates[0].FinishReason; reason == "SAFETY" {
		return "", fmt.Errorf("%w: finish reason %s", domain.ErrSafetyBlocked, reason)
	}

	var text strings.Builder
	for _, p := range result.Candidates[0].Content.Parts {
		text.WriteString(p.Text)
	}

	transcript := strings.TrimSpace(text.String())
	transcript = strings.TrimPrefix(transcript, "```text")
	transcript = strings.TrimPrefix(transcript, "```")
	transcript = strings.TrimSuffix(transcript, "```")
	transcript = strings.TrimSpace(transcript)

	if transcript == "" {
		return "", domain.ErrEmptyTranscript
	}

	return transcript, nil
}
