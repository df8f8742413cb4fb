package adapters

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/yungbote/novelvideo/internal/pipeline/domain"
	"github.com/yungbote/novelvideo/internal/pipeline/pipeerr"
	"github.com/yungbote/novelvideo/internal/platform/logger"
)

// SubprocessTimeoutError marks a media-mux subprocess failure caused
// by exceeding its deadline rather than exiting non-zero on its own —
// the one failure mode spec'd as retryable at the composition stage.
type SubprocessTimeoutError struct {
	Cause error
}

func (e *SubprocessTimeoutError) Error() string { return "subprocess timed out: " + e.Cause.Error() }
func (e *SubprocessTimeoutError) Unwrap() error { return e.Cause }

// IsSubprocessTimeout reports whether err is or wraps a SubprocessTimeoutError.
func IsSubprocessTimeout(err error) bool {
	var t *SubprocessTimeoutError
	return errors.As(err, &t)
}

func wrapSubprocessErr(ctx context.Context, err error) error {
	if ctx.Err() == context.DeadlineExceeded {
		return &SubprocessTimeoutError{Cause: err}
	}
	return err
}

// FFmpegMediaMux shells out to ffmpeg for every media-mux operation,
// capturing stderr on failure the way the teacher's media tooling does.
type FFmpegMediaMux struct {
	log         *logger.Logger
	ffmpegPath  string
	ffprobePath string
	timeout     time.Duration
}

func NewFFmpegMediaMux(log *logger.Logger, ffmpegPath, ffprobePath string, timeout time.Duration) *FFmpegMediaMux {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	return &FFmpegMediaMux{log: log, ffmpegPath: ffmpegPath, ffprobePath: ffprobePath, timeout: timeout}
}

// MuxSceneClip composes a scene's still image against its concatenated
// audio units, looping the image for the audio's duration. A scene
// with no audio units gets a silent clip of a fixed 3 seconds (-t 3 as
// an output option); there is no parameter for choosing that duration.
func (m *FFmpegMediaMux) MuxSceneClip(ctx context.Context, imagePath string, audioPaths []string, outPath string) error {
	ctx, cancel := context.WithTimeout(ctx, m.effectiveTimeout())
	defer cancel()

	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return pipeerr.NewComposition(domain.StageCompose, "create clip output dir", err)
	}

	args := []string{"-y", "-loop", "1", "-i", imagePath}
	for _, a := range audioPaths {
		args = append(args, "-i", a)
	}

	if len(audioPaths) == 0 {
		args = append(args, "-t", "3", "-c:v", "libx264", "-pix_fmt", "yuv420p", outPath)
	} else if len(audioPaths) == 1 {
		args = append(args, "-c:v", "libx264", "-pix_fmt", "yuv420p", "-c:a", "aac", "-shortest", outPath)
	} else {
		filter := buildAudioConcatFilter(len(audioPaths))
		args = append(args, "-filter_complex", filter, "-map", "0:v", "-map", "[aout]",
			"-c:v", "libx264", "-pix_fmt", "yuv420p", "-c:a", "aac", "-shortest", outPath)
	}

	cmd := exec.CommandContext(ctx, m.ffmpegPath, args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return pipeerr.NewComposition(domain.StageCompose,
			fmt.Sprintf("ffmpeg mux failed: %s", truncate(string(out), 2000)), wrapSubprocessErr(ctx, err))
	}
	return nil
}

func buildAudioConcatFilter(n int) string {
	var b strings.Builder
	for i := 0; i < n; i++ {
		fmt.Fprintf(&b, "[%d:a]", i+1)
	}
	fmt.Fprintf(&b, "concat=n=%d:v=0:a=1[aout]", n)
	return b.String()
}

// ConcatClips stream-copies every clip in order into one file via an
// ffmpeg concat-demuxer list, avoiding a re-encode.
func (m *FFmpegMediaMux) ConcatClips(ctx context.Context, clipPaths []string, outPath string) error {
	ctx, cancel := context.WithTimeout(ctx, m.effectiveTimeout())
	defer cancel()

	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return pipeerr.NewComposition("compose", "create concat output dir", err)
	}

	listPath := outPath + ".concat.txt"
	var b strings.Builder
	for _, p := range clipPaths {
		b.WriteString("file '")
		b.WriteString(strings.ReplaceAll(p, "'", `'\''`))
		b.WriteString("'\n")
	}
	if err := os.WriteFile(listPath, []byte(b.String()), 0o644); err != nil {
		return pipeerr.NewComposition("compose", "write concat list", err)
	}
	defer os.Remove(listPath)

	cmd := exec.CommandContext(ctx, m.ffmpegPath,
		"-y", "-f", "concat", "-safe", "0", "-i", listPath, "-c", "copy", outPath)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return pipeerr.NewComposition("compose",
			fmt.Sprintf("ffmpeg concat failed: %s", truncate(string(out), 2000)), wrapSubprocessErr(ctx, err))
	}
	return nil
}

// ProbeDuration runs ffprobe to read a media file's duration in
// seconds.
func (m *FFmpegMediaMux) ProbeDuration(ctx context.Context, path string) (float64, error) {
	ctx, cancel := context.WithTimeout(ctx, m.effectiveTimeout())
	defer cancel()

	cmd := exec.CommandContext(ctx, m.ffprobePath,
		"-v", "error", "-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1", path)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return 0, pipeerr.NewComposition("compose",
			fmt.Sprintf("ffprobe failed: %s", truncate(string(out), 2000)), wrapSubprocessErr(ctx, err))
	}

	d, err := strconv.ParseFloat(strings.TrimSpace(string(out)), 64)
	if err != nil {
		return 0, pipeerr.NewComposition("compose", "parse ffprobe duration output", err)
	}
	return d, nil
}

func (m *FFmpegMediaMux) effectiveTimeout() time.Duration {
	if m.timeout <= 0 {
		return 2 * time.Minute
	}
	return m.timeout
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "...(truncated)"
}
