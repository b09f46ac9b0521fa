package web

import (
	"context"
	"fmt"
	"html/template"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"radioscribe/internal/application"
	"radioscribe/internal/domain"
	"radioscribe/internal/report"
)

const (
	minChunkSeconds     = 30
	maxChunkSeconds     = 60
	defaultChunkSeconds = 50
)

var allowedExtensions = map[string]bool{
	".wav":  true,
	".mp3":  true,
	".m4a":  true,
	".aac":  true,
	".flac": true,
	".ogg":  true,
}

// BatchProcessor runs a transcription batch over uploaded files.
type BatchProcessor interface {
	ProcessBatch(ctx context.Context, uploads []application.Upload, mode domain.Mode, opts application.TranscribeOptions) (*domain.BatchResult, error)
}

type Config struct {
	Addr        string
	AuthToken   string
	MaxUploadMB int64
	TempDir     string
}

// Server exposes the upload form and the transcription endpoint.
type Server struct {
	cfg         Config
	processor   BatchProcessor
	logger      *slog.Logger
	mux         *http.ServeMux
	server      *http.Server
	rateLimiter *RateLimiter
	now         func() time.Time

	mu      sync.Mutex
	running bool
}

func NewServer(cfg Config, processor BatchProcessor, logger *slog.Logger) *Server {
	s := &Server{
		cfg:         cfg,
		processor:   processor,
		logger:      logger,
		mux:         http.NewServeMux(),
		rateLimiter: NewRateLimiter(10, time.Minute), // 10 batches per minute per IP
		now:         time.Now,
	}
	s.mux.HandleFunc("GET /{$}", s.handleIndex)
	s.mux.HandleFunc("POST /transcribe", s.rateLimiter.Middleware(s.handleTranscribe))
	// No rate limiting on health check
	s.mux.HandleFunc("GET /health", s.handleHealth)
	return s
}

func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}

	s.server = &http.Server{
		Addr:    s.cfg.Addr,
		Handler: s.mux,
		// Long timeouts: a batch is transcribed synchronously within
		// the request.
		ReadTimeout:  5 * time.Minute,
		WriteTimeout: 30 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		s.logger.Info("HTTP server starting", "addr", s.cfg.Addr)
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("HTTP server error", "error", err)
		}
	}()

	s.running = true
	return nil
}

func (s *Server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}

	if s.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.server.Shutdown(ctx); err != nil {
			s.logger.Warn("graceful shutdown failed, forcing close", "error", err)
			if err := s.server.Close(); err != nil {
				return fmt.Errorf("closing server: %w", err)
			}
		}
	}

	s.running = false
	return nil
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	data := struct {
		MaxUploadMB  int64
		DefaultChunk int
		MinChunk     int
		MaxChunk     int
	}{
		MaxUploadMB:  s.cfg.MaxUploadMB,
		DefaultChunk: defaultChunkSeconds,
		MinChunk:     minChunkSeconds,
		MaxChunk:     maxChunkSeconds,
	}
	if err := indexTemplate.Execute(w, data); err != nil {
		s.logger.Error("rendering index page", "error", err)
	}
}

func (s *Server) handleTranscribe(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(r) {
		s.logger.Warn("unauthorized transcription request", "remote_addr", r.RemoteAddr)
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadMB*1024*1024)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		http.Error(w, "invalid multipart form: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		http.Error(w, "no audio files uploaded", http.StatusBadRequest)
		return
	}
	for _, fh := range files {
		ext := strings.ToLower(filepath.Ext(fh.Filename))
		if !allowedExtensions[ext] {
			http.Error(w, fmt.Sprintf("unsupported file type %q: %s", ext, fh.Filename), http.StatusBadRequest)
			return
		}
	}

	mode := domain.ParseMode(r.FormValue("mode"))
	opts := application.TranscribeOptions{ChunkSeconds: parseChunkSeconds(r.FormValue("chunk_seconds"))}

	workDir, err := os.MkdirTemp(s.cfg.TempDir, "radioscribe-*")
	if err != nil {
		s.logger.Error("creating work directory", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	defer os.RemoveAll(workDir)

	uploads, err := saveUploads(files, workDir)
	if err != nil {
		s.logger.Error("saving uploads", "error", err)
		http.Error(w, "failed to store uploads", http.StatusInternalServerError)
		return
	}

	s.logger.Info("starting batch", "files", len(uploads), "mode", mode, "chunk_seconds", opts.ChunkSeconds)

	result, err := s.processor.ProcessBatch(r.Context(), uploads, mode, opts)
	if err != nil {
		s.logger.Error("batch failed", "error", err)
		http.Error(w, "transcription failed: "+err.Error(), http.StatusInternalServerError)
		return
	}

	archive, name, err := report.BuildArchive(result, s.now())
	if err != nil {
		s.logger.Error("building archive", "error", err)
		http.Error(w, "failed to package transcripts", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.Header().Set("Content-Length", strconv.Itoa(len(archive)))
	if _, err := w.Write(archive); err != nil {
		s.logger.Warn("writing archive response", "error", err)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	running := s.running
	s.mu.Unlock()

	status := "ok"
	statusCode := http.StatusOK
	if !running {
		status = "not_ready"
		statusCode = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	fmt.Fprintf(w, `{"status":"%s","running":%t}`, status, running)
}

func (s *Server) authorized(r *http.Request) bool {
	if s.cfg.AuthToken == "" {
		return true
	}
	token := r.Header.Get("X-Auth-Token")
	if token == "" {
		token = r.URL.Query().Get("token")
	}
	return token == s.cfg.AuthToken
}

func parseChunkSeconds(s string) int {
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return defaultChunkSeconds
	}
	if v < minChunkSeconds {
		return minChunkSeconds
	}
	if v > maxChunkSeconds {
		return maxChunkSeconds
	}
	return v
}

func saveUploads(files []*multipart.FileHeader, dir string) ([]application.Upload, error) {
	uploads := make([]application.Upload, 0, len(files))
	seen := make(map[string]int, len(files))
	for _, fh := range files {
		name := uniqueName(filepath.Base(fh.Filename), seen)
		dst := filepath.Join(dir, name)

		src, err := fh.Open()
		if err != nil {
			return nil, fmt.Errorf("opening upload %s: %w", name, err)
		}
		out, err := os.Create(dst)
		if err != nil {
			src.Close()
			return nil, fmt.Errorf("creating %s: %w", dst, err)
		}
		_, err = io.Copy(out, src)
		src.Close()
		if cerr := out.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return nil, fmt.Errorf("writing %s: %w", dst, err)
		}

		uploads = append(uploads, application.Upload{Filename: name, Path: dst})
	}
	return uploads, nil
}

// uniqueName suffixes a counter when a basename repeats in the batch,
// so uploads don't overwrite each other and the archive keeps one
// entry per file.
func uniqueName(name string, seen map[string]int) string {
	if seen[name] == 0 {
		seen[name] = 1
		return name
	}
	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)
	for {
		seen[name]++
		candidate := fmt.Sprintf("%s_%d%s", base, seen[name], ext)
		if seen[candidate] == 0 {
			seen[candidate] = 1
			return candidate
		}
	}
}

var indexTemplate = template.Must(template.New("index").Parse(`<!DOCTYPE html>
<html lang="zh-Hant">
<head>
<meta charset="utf-8">
<title>Radio Transcript Builder</title>
<style>
body { font-family: sans-serif; max-width: 720px; margin: 2em auto; padding: 0 1em; }
fieldset { margin-bottom: 1.5em; border: 1px solid #ccc; border-radius: 4px; }
label { display: block; margin: .5em 0; }
button { padding: .6em 1.6em; font-size: 1em; }
.hint { color: #666; font-size: .85em; }
</style>
</head>
<body>
<h1>Radio Transcript Builder</h1>
<p class="hint">Upload radio recordings and download a ZIP of merged transcripts. Max upload {{.MaxUploadMB}} MB.</p>
<form action="/transcribe" method="post" enctype="multipart/form-data">
<fieldset>
<legend>Audio files</legend>
<input type="file" name="files" multiple required accept=".wav,.mp3,.m4a,.aac,.flac,.ogg">
<p class="hint">Filenames like 20240522_143055_ch1.wav are used for timeline ordering.</p>
</fieldset>
<fieldset>
<legend>Engine</legend>
<label><input type="radio" name="mode" value="stt"> Google Speech-to-Text</label>
<label><input type="radio" name="mode" value="gemini"> Gemini</label>
<label><input type="radio" name="mode" value="dual" checked> Both (with comparison report)</label>
</fieldset>
<fieldset>
<legend>Segment length</legend>
<label>Seconds per segment:
<input type="number" name="chunk_seconds" value="{{.DefaultChunk}}" min="{{.MinChunk}}" max="{{.MaxChunk}}">
</label>
<p class="hint">Long recordings are split into segments before recognition.</p>
</fieldset>
<button type="submit">Transcribe</button>
</form>
</body>
</html>
`))
