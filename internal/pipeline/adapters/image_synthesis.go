package adapters

import (
	"context"
	"encoding/base64"
	"time"

	"github.com/yungbote/novelvideo/internal/pipeline/pipeerr"
	"github.com/yungbote/novelvideo/internal/platform/logger"
)

// HTTPImageSynthesis calls a JSON image-generation endpoint that
// returns a single base64-encoded image, the same response shape the
// teacher's adapters decode for JSON-wrapped binary payloads.
type HTTPImageSynthesis struct {
	client *httpClient
	model  string
}

func NewHTTPImageSynthesis(log *logger.Logger, baseURL, apiKey, model string, timeout time.Duration, maxRetries int, ratePerSec float64) *HTTPImageSynthesis {
	return &HTTPImageSynthesis{
		client: newHTTPClient(log, baseURL, apiKey, timeout, maxRetries, "render_image").withRateLimit(ratePerSec),
		model:  model,
	}
}

type imageWireRequest struct {
	Model       string   `json:"model"`
	Prompt      string   `json:"prompt"`
	StyleTags   []string `json:"style_tags,omitempty"`
	Size        string   `json:"size"`
	Composition string   `json:"composition,omitempty"`
}

type imageWireResponse struct {
	ImageBase64 string `json:"image_base64"`
	Format      string `json:"format"`
}

func (a *HTTPImageSynthesis) SynthesizeImage(ctx context.Context, req ImageRequest) (ImageResult, error) {
	wireReq := imageWireRequest{
		Model:       a.model,
		Prompt:      req.Prompt,
		StyleTags:   req.StyleTags,
		Size:        req.Size,
		Composition: req.Composition,
	}

	var wireResp imageWireResponse
	if err := a.client.postJSON(ctx, "/v1/images", wireReq, &wireResp, req.RetryAttempts); err != nil {
		return ImageResult{}, err
	}

	raw, err := base64.StdEncoding.DecodeString(wireResp.ImageBase64)
	if err != nil {
		return ImageResult{}, pipeerr.NewModelOutput("render_image", "decode image payload", err)
	}
	if len(raw) == 0 {
		return ImageResult{}, pipeerr.NewModelOutput("render_image", "empty image payload", nil)
	}

	format := wireResp.Format
	if format == "" {
		format = "png"
	}
	return ImageResult{ImageBytes: raw, Format: format}, nil
}
