// Package adapters implements the four External Model Adapters (C4):
// text understanding, image synthesis, speech synthesis, and media
// mux. Each is a narrow interface so stages depend only on the
// contract, not on which HTTP API or local binary backs it; the HTTP
// adapters share a retrying client modelled on the teacher's OpenAI
// client, and the media mux adapter shells out to ffmpeg the way the
// teacher's media tooling does.
package adapters

import (
	"context"

	"github.com/yungbote/novelvideo/internal/pipeline/domain"
)

// TextAnalysisRequest asks the text-understanding model to extract
// entities, scenes, and plot points from one chunk of novel text.
// PriorCharacters carries characters already known from earlier
// chunks so the model can recognize returning characters instead of
// duplicating them under a new name.
type TextAnalysisRequest struct {
	Text            string
	PriorCharacters []domain.Character
	ChapterHint     int
	RetryAttempts   int
}

type TextAnalysisResult struct {
	Characters []domain.Character
	Chapters   []domain.Chapter
	PlotPoints []domain.PlotPoint
}

type TextUnderstandingAdapter interface {
	AnalyzeChunk(ctx context.Context, req TextAnalysisRequest) (TextAnalysisResult, error)
}

// ImageRequest describes one scene's still frame.
type ImageRequest struct {
	Prompt        string
	StyleTags     []string
	Size          string
	Composition   string
	RetryAttempts int
}

type ImageResult struct {
	ImageBytes []byte
	Format     string // "png" or "jpeg"
}

type ImageSynthesisAdapter interface {
	SynthesizeImage(ctx context.Context, req ImageRequest) (ImageResult, error)
}

// SpeechRequest synthesizes one audio unit (narration, a merged or
// per-line dialogue block, or silence).
type SpeechRequest struct {
	Text          string
	VoiceID       string
	RetryAttempts int
}

type SpeechResult struct {
	AudioBytes []byte
	Format     string // "wav" or "mp3"
	Duration   float64
}

type SpeechSynthesisAdapter interface {
	SynthesizeSpeech(ctx context.Context, req SpeechRequest) (SpeechResult, error)
}

// MediaMuxAdapter wraps every ffmpeg-backed operation Stage 4 needs:
// building one scene's still-image clip, concatenating clips without
// re-encoding, and probing a file's duration.
type MediaMuxAdapter interface {
	MuxSceneClip(ctx context.Context, imagePath string, audioPaths []string, outPath string) error
	ConcatClips(ctx context.Context, clipPaths []string, outPath string) error
	ProbeDuration(ctx context.Context, path string) (float64, error)
}
