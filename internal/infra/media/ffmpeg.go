package media

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"time"

	"radioscribe/internal/application"
)

type ffprobeOutput struct {
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
	Streams []struct {
		CodecName  string `json:"codec_name"`
		SampleRate string `json:"sample_rate"`
	} `json:"streams"`
}

// FFmpeg shells out to ffmpeg/ffprobe for probing and conversion.
type FFmpeg struct {
	probeTimeout   time.Duration
	convertTimeout time.Duration
}

func NewFFmpeg() *FFmpeg {
	return &FFmpeg{
		probeTimeout:   10 * time.Second,
		convertTimeout: 2 * time.Minute,
	}
}

// Probe inspects the file with ffprobe and flags quality problems.
// Radio loggers commonly export ADPCM-compressed WAV at 8 kHz, which
// both engines transcribe poorly.
func (f *FFmpeg) Probe(ctx context.Context, path string) (application.AudioInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, f.probeTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "ffprobe",
		"-v", "quiet", "-print_format", "json",
		"-show_format", "-show_streams", path,
	)

	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	if err := cmd.Run(); err != nil {
		return application.AudioInfo{}, fmt.Errorf("ffprobe %s: %w", path, err)
	}

	var probed ffprobeOutput
	if err := json.Unmarshal(stdout.Bytes(), &probed); err != nil {
		return application.AudioInfo{}, fmt.Errorf("parsing ffprobe output: %w", err)
	}

	var info application.AudioInfo
	if probed.Format.Duration != "" {
		if secs, err := strconv.ParseFloat(probed.Format.Duration, 64); err == nil {
			info.Duration = time.Duration(secs * float64(time.Second))
		}
	}

	if len(probed.Streams) > 0 {
		info.Codec = probed.Streams[0].CodecName
		info.SampleRate, _ = strconv.Atoi(probed.Streams[0].SampleRate)
	}

	if info.Codec == "adpcm_ima_wav" {
		info.Warnings = append(info.Warnings, "compressed ADPCM encoding, recognition accuracy may suffer")
		info.NeedsConversion = true
	}
	if info.SampleRate > 0 && info.SampleRate < 16000 {
		info.Warnings = append(info.Warnings, fmt.Sprintf("low sample rate (%d Hz), 16000 Hz or higher recommended", info.SampleRate))
		info.NeedsConversion = true
	}

	return info, nil
}

// ToWAV re-encodes the input as PCM s16le, 16 kHz mono. This is the
// format Google STT recognizes best.
func (f *FFmpeg) ToWAV(ctx context.Context, inputPath, outputPath string) error {
	return f.convert(ctx, inputPath, outputPath,
		"-ar", "16000",
		"-ac", "1",
		"-acodec", "pcm_s16le",
	)
}

// ToM4A re-encodes the input as AAC 16 kHz mono at 128 kbps, the
// container Gemini accepts most reliably for inline audio.
func (f *FFmpeg) ToM4A(ctx context.Context, inputPath, outputPath string) error {
	return f.convert(ctx, inputPath, outputPath,
		"-ar", "16000",
		"-ac", "1",
		"-acodec", "aac",
		"-b:a", "128k",
	)
}

func (f *FFmpeg) convert(ctx context.Context, inputPath, outputPath string, encodeArgs ...string) error {
	ctx, cancel := context.WithTimeout(ctx, f.convertTimeout)
	defer cancel()

	args := append([]string{"-i", inputPath}, encodeArgs...)
	args = append(args, "-y", outputPath)

	cmd := exec.CommandContext(ctx, "ffmpeg", args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := stderr.String()
		if len(msg) > 200 {
			msg = msg[len(msg)-200:]
		}
		return fmt.Errorf("ffmpeg %s: %w: %s", inputPath, err, msg)
	}
	return nil
}
