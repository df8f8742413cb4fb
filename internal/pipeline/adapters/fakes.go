package adapters

import (
	"context"
	"fmt"
	"os"
	"sync/atomic"
)

// FakeTextUnderstanding returns a canned TextAnalysisResult, useful
// for testing stages without a network dependency.
type FakeTextUnderstanding struct {
	Result TextAnalysisResult
	Err    error
	Calls  int32
}

func (f *FakeTextUnderstanding) AnalyzeChunk(ctx context.Context, req TextAnalysisRequest) (TextAnalysisResult, error) {
	atomic.AddInt32(&f.Calls, 1)
	if f.Err != nil {
		return TextAnalysisResult{}, f.Err
	}
	return f.Result, nil
}

// FakeImageSynthesis returns a deterministic placeholder "image" (its
// prompt's bytes) so tests can assert on which prompt produced which
// output without decoding real image data.
type FakeImageSynthesis struct {
	Err   error
	Calls int32
}

func (f *FakeImageSynthesis) SynthesizeImage(ctx context.Context, req ImageRequest) (ImageResult, error) {
	atomic.AddInt32(&f.Calls, 1)
	if f.Err != nil {
		return ImageResult{}, f.Err
	}
	return ImageResult{ImageBytes: []byte(fmt.Sprintf("fake-image:%s", req.Prompt)), Format: "png"}, nil
}

// FakeSpeechSynthesis returns a deterministic placeholder "clip" whose
// duration is derived from the input text length so render-stage
// timing logic has something non-trivial to compute against.
type FakeSpeechSynthesis struct {
	Err              error
	SecondsPerChar   float64
	Calls            int32
}

func (f *FakeSpeechSynthesis) SynthesizeSpeech(ctx context.Context, req SpeechRequest) (SpeechResult, error) {
	atomic.AddInt32(&f.Calls, 1)
	if f.Err != nil {
		return SpeechResult{}, f.Err
	}
	perChar := f.SecondsPerChar
	if perChar <= 0 {
		perChar = 0.06
	}
	dur := float64(len(req.Text)) * perChar
	if dur <= 0 {
		dur = 0.5
	}
	return SpeechResult{
		AudioBytes: []byte(fmt.Sprintf("fake-audio:%s:%s", req.VoiceID, req.Text)),
		Format:     "wav",
		Duration:   dur,
	}, nil
}

// FakeMediaMux records its calls instead of invoking ffmpeg, so
// composition-stage tests can run without an ffmpeg binary on PATH.
type FakeMediaMux struct {
	Err            error
	MuxCalls       []string
	ConcatCalls    [][]string
	ProbeSeconds   float64
}

func (f *FakeMediaMux) MuxSceneClip(ctx context.Context, imagePath string, audioPaths []string, outPath string) error {
	if f.Err != nil {
		return f.Err
	}
	f.MuxCalls = append(f.MuxCalls, outPath)
	return os.WriteFile(outPath, []byte(fmt.Sprintf("fake-clip:%s", imagePath)), 0o644)
}

func (f *FakeMediaMux) ConcatClips(ctx context.Context, clipPaths []string, outPath string) error {
	if f.Err != nil {
		return f.Err
	}
	cp := append([]string(nil), clipPaths...)
	f.ConcatCalls = append(f.ConcatCalls, cp)
	return os.WriteFile(outPath, []byte(fmt.Sprintf("fake-concat:%d-clips", len(clipPaths))), 0o644)
}

func (f *FakeMediaMux) ProbeDuration(ctx context.Context, path string) (float64, error) {
	if f.Err != nil {
		return 0, f.Err
	}
	if f.ProbeSeconds > 0 {
		return f.ProbeSeconds, nil
	}
	return 3.0, nil
}
