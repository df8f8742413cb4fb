// Package compose implements Stage 4 (C9): a small state machine that
// muxes each rendered scene into a clip, concatenates clips per
// chapter, concatenates chapters into the final video (skipping the
// outer concat for a single chapter), and promotes the result.
package compose

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/yungbote/novelvideo/internal/pipeline/adapters"
	"github.com/yungbote/novelvideo/internal/pipeline/domain"
	"github.com/yungbote/novelvideo/internal/pipeline/pipeerr"
	"github.com/yungbote/novelvideo/internal/pipeline/retry"
	"github.com/yungbote/novelvideo/internal/pipeline/scratch"
	"github.com/yungbote/novelvideo/internal/platform/logger"
)

// Composer drives Stage 4.
type Composer struct {
	mux        adapters.MediaMuxAdapter
	videosBase string
	log        *logger.Logger
}

func NewComposer(mux adapters.MediaMuxAdapter, videosBase string, log *logger.Logger) *Composer {
	return &Composer{mux: mux, videosBase: videosBase, log: log}
}

// subprocessRetryPolicy retries a single media-mux call once if it
// failed because the subprocess exceeded its deadline; any other
// failure (non-zero exit) is fatal immediately, per spec §4.9.
var subprocessRetryPolicy = retry.Policy{
	MaxAttempts: 2,
	BaseDelay:   0,
	MaxDelay:    0,
	JitterFrac:  0,
	Retryable:   adapters.IsSubprocessTimeout,
}

// Compose runs the scene -> chapter -> final state machine and
// returns the promoted FinalVideo descriptor.
func (c *Composer) Compose(ctx context.Context, jobID uuid.UUID, rendered domain.RenderedStoryboard, jobDir *scratch.JobDir) (domain.FinalVideo, error) {
	tempDir, err := jobDir.Sub("temp")
	if err != nil {
		return domain.FinalVideo{}, pipeerr.NewStorage(domain.StageCompose, "create temp dir", err)
	}

	sceneCount := 0
	chapterClips := make([]string, 0, len(rendered.Chapters))
	for _, ch := range rendered.Chapters {
		sceneClips := make([]string, 0, len(ch.Scenes))
		for _, sc := range ch.Scenes {
			clipPath := filepath.Join(tempDir, fmt.Sprintf("scene_%04d.mp4", sc.SceneRef))
			if err := c.muxSceneClip(ctx, sc, clipPath); err != nil {
				return domain.FinalVideo{}, err
			}
			sceneClips = append(sceneClips, clipPath)
			sceneCount++
		}

		chapterClip := filepath.Join(tempDir, fmt.Sprintf("chapter_%04d.mp4", ch.ChapterID))
		if err := c.concatWithRetry(ctx, sceneClips, chapterClip, domain.StageCompose); err != nil {
			return domain.FinalVideo{}, err
		}
		for _, p := range sceneClips {
			_ = os.Remove(p)
		}
		chapterClips = append(chapterClips, chapterClip)
	}

	var finalTemp string
	if len(chapterClips) == 1 {
		finalTemp = chapterClips[0]
	} else {
		finalTemp = filepath.Join(tempDir, "final.mp4")
		if err := c.concatWithRetry(ctx, chapterClips, finalTemp, domain.StageCompose); err != nil {
			return domain.FinalVideo{}, err
		}
	}

	destPath := filepath.Join(c.videosBase, jobID.String(), "final.mp4")
	if err := jobDir.Promote(finalTemp, destPath); err != nil {
		return domain.FinalVideo{}, err
	}

	duration, err := c.mux.ProbeDuration(ctx, destPath)
	if err != nil {
		return domain.FinalVideo{}, pipeerr.NewComposition(domain.StageCompose, "probe final video duration", err)
	}

	info, err := os.Stat(destPath)
	if err != nil {
		return domain.FinalVideo{}, pipeerr.NewStorage(domain.StageCompose, "stat final video", err)
	}

	return domain.FinalVideo{
		Path:         destPath,
		DurationSec:  duration,
		ByteSize:     info.Size(),
		SceneCount:   sceneCount,
		ChapterCount: len(rendered.Chapters),
	}, nil
}

func (c *Composer) muxSceneClip(ctx context.Context, sc domain.RenderedScene, clipPath string) error {
	audioPaths := make([]string, 0, len(sc.AudioUnits))
	for _, u := range sc.AudioUnits {
		if u.AudioPath != "" {
			audioPaths = append(audioPaths, u.AudioPath)
		}
	}

	_, err := retry.Run(ctx, subprocessRetryPolicy, func(ctx context.Context, attempt int) (struct{}, error) {
		return struct{}{}, c.mux.MuxSceneClip(ctx, sc.ImagePath, audioPaths, clipPath)
	})
	if err != nil {
		return pipeerr.NewComposition(domain.StageCompose, fmt.Sprintf("mux scene %d clip failed", sc.SceneRef), err)
	}
	return nil
}

func (c *Composer) concatWithRetry(ctx context.Context, clipPaths []string, outPath, stage string) error {
	_, err := retry.Run(ctx, subprocessRetryPolicy, func(ctx context.Context, attempt int) (struct{}, error) {
		return struct{}{}, c.mux.ConcatClips(ctx, clipPaths, outPath)
	})
	if err != nil {
		return pipeerr.NewComposition(stage, "concat clips failed", err)
	}
	return nil
}
