package adapters

import (
	"context"
	"time"

	"github.com/yungbote/novelvideo/internal/platform/logger"
)

// HTTPTextUnderstanding calls a JSON text-understanding endpoint
// (entity/scene/plot extraction) using the shared retrying httpClient.
type HTTPTextUnderstanding struct {
	client *httpClient
	model  string
}

func NewHTTPTextUnderstanding(log *logger.Logger, baseURL, apiKey, model string, timeout time.Duration, maxRetries int, ratePerSec float64) *HTTPTextUnderstanding {
	return &HTTPTextUnderstanding{
		client: newHTTPClient(log, baseURL, apiKey, timeout, maxRetries, "analyze").withRateLimit(ratePerSec),
		model:  model,
	}
}

type textAnalysisWireRequest struct {
	Model           string                  `json:"model"`
	Text            string                  `json:"text"`
	PriorCharacters []wireCharacter         `json:"prior_characters,omitempty"`
	ChapterHint     int                     `json:"chapter_hint"`
}

type wireCharacter struct {
	Name        string `json:"name"`
	Gender      string `json:"gender"`
	AgeStage    string `json:"age_stage"`
	Personality string `json:"personality"`
	Role        string `json:"role"`
}

type wireScene struct {
	Location    string              `json:"location"`
	Time        string              `json:"time"`
	Description string              `json:"description"`
	Atmosphere  string              `json:"atmosphere"`
	Lighting    string              `json:"lighting"`
	Characters  []string            `json:"characters"`
	Narration   string              `json:"narration"`
	Dialogue    []wireDialogueLine  `json:"dialogue"`
	Actions     []string            `json:"actions"`
}

type wireDialogueLine struct {
	Speaker string `json:"speaker"`
	Text    string `json:"text"`
}

type wireChapter struct {
	Title  string      `json:"title"`
	Scenes []wireScene `json:"scenes"`
}

type wirePlotPoint struct {
	ChapterIndex int    `json:"chapter_index"`
	SceneIndex   int    `json:"scene_index"`
	Kind         string `json:"kind"`
	Description  string `json:"description"`
}

type textAnalysisWireResponse struct {
	Characters []wireCharacter `json:"characters"`
	Chapters   []wireChapter   `json:"chapters"`
	PlotPoints []wirePlotPoint `json:"plot_points"`
}

func (a *HTTPTextUnderstanding) AnalyzeChunk(ctx context.Context, req TextAnalysisRequest) (TextAnalysisResult, error) {
	priors := make([]wireCharacter, 0, len(req.PriorCharacters))
	for _, c := range req.PriorCharacters {
		priors = append(priors, wireCharacter{
			Name:        c.Name,
			Gender:      string(c.Appearance.Gender),
			AgeStage:    string(c.Appearance.AgeStage),
			Personality: c.Personality,
			Role:        c.Role,
		})
	}

	wireReq := textAnalysisWireRequest{
		Model:           a.model,
		Text:            req.Text,
		PriorCharacters: priors,
		ChapterHint:     req.ChapterHint,
	}

	var wireResp textAnalysisWireResponse
	if err := a.client.postJSON(ctx, "/v1/analyze", wireReq, &wireResp, req.RetryAttempts); err != nil {
		return TextAnalysisResult{}, err
	}

	return fromWireResponse(wireResp), nil
}
