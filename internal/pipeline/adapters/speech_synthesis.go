package adapters

import (
	"context"
	"encoding/base64"
	"time"

	"github.com/yungbote/novelvideo/internal/pipeline/pipeerr"
	"github.com/yungbote/novelvideo/internal/platform/logger"
)

// HTTPSpeechSynthesis calls a JSON text-to-speech endpoint that
// returns a single base64-encoded audio clip plus its measured
// duration.
type HTTPSpeechSynthesis struct {
	client *httpClient
}

func NewHTTPSpeechSynthesis(log *logger.Logger, baseURL, apiKey string, timeout time.Duration, maxRetries int, ratePerSec float64) *HTTPSpeechSynthesis {
	return &HTTPSpeechSynthesis{
		client: newHTTPClient(log, baseURL, apiKey, timeout, maxRetries, "render_audio").withRateLimit(ratePerSec),
	}
}

type speechWireRequest struct {
	Text    string `json:"text"`
	VoiceID string `json:"voice_id"`
}

type speechWireResponse struct {
	AudioBase64 string  `json:"audio_base64"`
	Format      string  `json:"format"`
	Duration    float64 `json:"duration_seconds"`
}

func (a *HTTPSpeechSynthesis) SynthesizeSpeech(ctx context.Context, req SpeechRequest) (SpeechResult, error) {
	wireReq := speechWireRequest{Text: req.Text, VoiceID: req.VoiceID}

	var wireResp speechWireResponse
	if err := a.client.postJSON(ctx, "/v1/speech", wireReq, &wireResp, req.RetryAttempts); err != nil {
		return SpeechResult{}, err
	}

	raw, err := base64.StdEncoding.DecodeString(wireResp.AudioBase64)
	if err != nil {
		return SpeechResult{}, pipeerr.NewModelOutput("render_audio", "decode audio payload", err)
	}
	if len(raw) == 0 {
		return SpeechResult{}, pipeerr.NewModelOutput("render_audio", "empty audio payload", nil)
	}

	format := wireResp.Format
	if format == "" {
		format = "wav"
	}
	return SpeechResult{AudioBytes: raw, Format: format, Duration: wireResp.Duration}, nil
}
