// Package render implements Stage 3 (C8): per-scene image and speech
// synthesis, voice pre-assignment, and measured-duration reconciliation,
// fanned out across scenes up to a configurable concurrency bound
// while preserving deterministic output ordering.
package render

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/yungbote/novelvideo/internal/pipeline/adapters"
	"github.com/yungbote/novelvideo/internal/pipeline/domain"
	"github.com/yungbote/novelvideo/internal/pipeline/pipeerr"
	"github.com/yungbote/novelvideo/internal/pipeline/retry"
	"github.com/yungbote/novelvideo/internal/pipeline/scratch"
	"github.com/yungbote/novelvideo/internal/pipeline/voice"
	"github.com/yungbote/novelvideo/internal/platform/logger"
)

// Renderer drives Stage 3.
type Renderer struct {
	images adapters.ImageSynthesisAdapter
	speech adapters.SpeechSynthesisAdapter
	mux    adapters.MediaMuxAdapter
	log    *logger.Logger
}

func NewRenderer(images adapters.ImageSynthesisAdapter, speech adapters.SpeechSynthesisAdapter, mux adapters.MediaMuxAdapter, log *logger.Logger) *Renderer {
	return &Renderer{images: images, speech: speech, mux: mux, log: log}
}

// ProgressFunc is invoked after each scene finishes rendering
// (in completion order, not input order) with the count of scenes
// completed so far out of total.
type ProgressFunc func(completed, total int)

type flatScene struct {
	chapterIdx int
	sceneIdx   int
	scene      domain.StoryboardScene
}

// Render walks every audio unit to pre-assign voices (so parallel
// completion order can never change a voice choice), then renders
// each scene's image and audio, bounded to opts.MaxParallelScenes
// concurrent scenes, writing results into a pre-sized slice indexed
// by input position so output order matches the input storyboard
// regardless of completion order.
func (r *Renderer) Render(ctx context.Context, sb domain.Storyboard, jobDir *scratch.JobDir, registry *voice.Registry, opts domain.Options, onProgress ProgressFunc) (domain.RenderedStoryboard, error) {
	preassignVoices(sb, registry, opts)

	flat := flatten(sb)
	total := len(flat)
	results := make([]domain.RenderedScene, total)

	maxParallel := opts.MaxParallelScenes
	if maxParallel <= 0 {
		maxParallel = 1
	}
	sem := semaphore.NewWeighted(int64(maxParallel))

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
		completed int
	)

	recordErr := func(err error) {
		mu.Lock()
		defer mu.Unlock()
		if firstErr == nil {
			firstErr = err
			cancel()
		}
	}

	for i, fs := range flat {
		if err := sem.Acquire(ctx, 1); err != nil {
			recordErr(pipeerr.NewCancelled(domain.StageRender))
			break
		}

		wg.Add(1)
		go func(i int, fs flatScene) {
			defer wg.Done()
			defer sem.Release(1)

			rendered, err := r.renderScene(ctx, fs.scene, jobDir, registry, opts)
			if err != nil {
				recordErr(err)
				return
			}
			results[i] = rendered

			mu.Lock()
			completed++
			if onProgress != nil {
				onProgress(completed, total)
			}
			mu.Unlock()
		}(i, fs)
	}

	wg.Wait()

	if firstErr != nil {
		return domain.RenderedStoryboard{}, firstErr
	}

	return regroup(sb, results), nil
}

func preassignVoices(sb domain.Storyboard, registry *voice.Registry, opts domain.Options) {
	registry.AssignNarrator(opts.NarratorVoice)
	for _, ch := range sb.Chapters {
		for _, sc := range ch.Scenes {
			for _, u := range sc.AudioUnits {
				if u.Kind != domain.AudioDialogue || u.Speaker == "" {
					continue
				}
				app := sc.CharactersResolved[u.Speaker]
				registry.Assign(u.Speaker, app.Gender, app.AgeStage)
			}
		}
	}
}

func flatten(sb domain.Storyboard) []flatScene {
	var flat []flatScene
	for ci, ch := range sb.Chapters {
		for si, sc := range ch.Scenes {
			flat = append(flat, flatScene{chapterIdx: ci, sceneIdx: si, scene: sc})
		}
	}
	return flat
}

func regroup(sb domain.Storyboard, results []domain.RenderedScene) domain.RenderedStoryboard {
	out := domain.RenderedStoryboard{Chapters: make([]domain.RenderedChapter, len(sb.Chapters))}
	idx := 0
	for ci, ch := range sb.Chapters {
		rc := domain.RenderedChapter{ChapterID: ch.ChapterID, Scenes: make([]domain.RenderedScene, len(ch.Scenes))}
		for si := range ch.Scenes {
			rc.Scenes[si] = results[idx]
			idx++
		}
		out.Chapters[ci] = rc
	}
	return out
}

func (r *Renderer) renderScene(ctx context.Context, sc domain.StoryboardScene, jobDir *scratch.JobDir, registry *voice.Registry, opts domain.Options) (domain.RenderedScene, error) {
	policy := retry.DefaultPolicy(opts.RetryAttempts)

	imgRes, err := retry.Run(ctx, policy, func(ctx context.Context, attempt int) (adapters.ImageResult, error) {
		return r.images.SynthesizeImage(ctx, adapters.ImageRequest{
			Prompt:        sc.ImageInfo.Prompt,
			StyleTags:     sc.ImageInfo.StyleTags,
			Size:          opts.ImageSize,
			Composition:   sc.ImageInfo.Composition,
			RetryAttempts: opts.RetryAttempts,
		})
	})
	if err != nil {
		return domain.RenderedScene{}, asRenderError(err, sc.SceneID)
	}

	imagePath, err := jobDir.WriteAtomicNamed("images", imgRes.ImageBytes, "."+extFor(imgRes.Format))
	if err != nil {
		return domain.RenderedScene{}, asRenderError(err, sc.SceneID)
	}

	audioUnits := make([]domain.RenderedAudioUnit, 0, len(sc.AudioUnits))
	measuredTotal := 0.0
	for _, u := range sc.AudioUnits {
		if u.Kind == domain.AudioSilence {
			audioUnits = append(audioUnits, domain.RenderedAudioUnit{MeasuredDuration: opts.SilentSceneDur})
			measuredTotal += opts.SilentSceneDur
			continue
		}

		voiceID := resolveVoice(u, registry, opts)
		speechRes, err := retry.Run(ctx, policy, func(ctx context.Context, attempt int) (adapters.SpeechResult, error) {
			return r.speech.SynthesizeSpeech(ctx, adapters.SpeechRequest{
				Text:          u.Text,
				VoiceID:       voiceID,
				RetryAttempts: opts.RetryAttempts,
			})
		})
		if err != nil {
			return domain.RenderedScene{}, asRenderError(err, sc.SceneID)
		}

		audioPath, err := jobDir.WriteAtomicNamed("audio", speechRes.AudioBytes, "."+extFor(speechRes.Format))
		if err != nil {
			return domain.RenderedScene{}, asRenderError(err, sc.SceneID)
		}

		measured, err := r.mux.ProbeDuration(ctx, audioPath)
		if err != nil {
			return domain.RenderedScene{}, asRenderError(err, sc.SceneID)
		}

		audioUnits = append(audioUnits, domain.RenderedAudioUnit{AudioPath: audioPath, MeasuredDuration: measured})
		measuredTotal += measured
	}

	finalDuration := sc.EstimatedDuration
	if measuredTotal > finalDuration {
		finalDuration = measuredTotal
	}

	return domain.RenderedScene{
		SceneRef:      sc.SceneID,
		ImagePath:     imagePath,
		AudioUnits:    audioUnits,
		FinalDuration: finalDuration,
	}, nil
}

func resolveVoice(u domain.AudioInfo, registry *voice.Registry, opts domain.Options) string {
	if u.Kind == domain.AudioNarration {
		if v, ok := registry.Lookup("__narrator__"); ok {
			return v
		}
		return opts.NarratorVoice
	}
	if v, ok := registry.Lookup(u.Speaker); ok {
		return v
	}
	return opts.DefaultVoice
}

func asRenderError(err error, sceneID int) error {
	if kind, ok := pipeerr.KindOf(err); ok && kind == pipeerr.KindCancelled {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return pipeerr.NewCancelled(domain.StageRender)
	}
	return pipeerr.NewRender(domain.StageRender, sceneID, fmt.Sprintf("scene %d rendering failed", sceneID), err)
}

func extFor(format string) string {
	switch format {
	case "jpeg", "jpg":
		return "jpg"
	case "mp3":
		return "mp3"
	case "wav":
		return "wav"
	case "png":
		return "png"
	default:
		if format == "" {
			return "bin"
		}
		return format
	}
}
