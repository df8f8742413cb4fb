// Package analyze implements Stage 1 (C6): turning raw novel text into
// an AnalyzedText entity graph via the text-understanding adapter,
// with a chunking strategy for long inputs and a deterministic merge.
package analyze

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/yungbote/novelvideo/internal/pipeline/adapters"
	"github.com/yungbote/novelvideo/internal/pipeline/domain"
	"github.com/yungbote/novelvideo/internal/pipeline/pipeerr"
	"github.com/yungbote/novelvideo/internal/platform/logger"
)

// Analyzer drives Stage 1.
type Analyzer struct {
	adapter adapters.TextUnderstandingAdapter
	log     *logger.Logger
}

func NewAnalyzer(adapter adapters.TextUnderstandingAdapter, log *logger.Logger) *Analyzer {
	return &Analyzer{adapter: adapter, log: log}
}

// Result bundles Stage 1's output with any non-fatal warnings raised
// while enforcing invariants (e.g. scene truncation).
type Result struct {
	Text     domain.AnalyzedText
	Warnings []string
}

// Analyze validates inputText, splits it per options.AnalyzerMode, and
// merges the resulting per-chunk analyses into one AnalyzedText.
func (a *Analyzer) Analyze(ctx context.Context, inputText string, opts domain.Options) (Result, error) {
	trimmed := strings.TrimSpace(inputText)
	if len(trimmed) < opts.MinTextLength {
		return Result{}, pipeerr.NewValidationf(domain.StageAnalyze,
			"input text length %d is below minimum %d", len(trimmed), opts.MinTextLength)
	}

	var chunks []string
	switch opts.AnalyzerMode {
	case domain.AnalyzerSimple:
		chunks = []string{trimmed}
	default:
		chunks = splitChunks(trimmed, opts.ChunkSize)
	}

	chunkResults := make([]adapters.TextAnalysisResult, 0, len(chunks))
	var known []domain.Character
	for i, chunk := range chunks {
		res, err := a.adapter.AnalyzeChunk(ctx, adapters.TextAnalysisRequest{
			Text:            chunk,
			PriorCharacters: known,
			ChapterHint:     i + 1,
			RetryAttempts:   opts.RetryAttempts,
		})
		if err != nil {
			if _, ok := pipeerr.KindOf(err); ok {
				return Result{}, err
			}
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return Result{}, pipeerr.NewCancelled(domain.StageAnalyze)
			}
			return Result{}, pipeerr.NewModelOutput(domain.StageAnalyze, "text understanding call failed", err)
		}
		if len(res.Characters) == 0 && len(res.Chapters) == 0 {
			return Result{}, pipeerr.NewModelOutput(domain.StageAnalyze, "adapter returned empty analysis", nil)
		}
		chunkResults = append(chunkResults, res)
		known = mergeCharacters(known, res.Characters)
	}

	merged := mergeResults(chunkResults)

	var warnings []string
	merged, warnings = enforceInvariants(merged, opts, warnings)

	if len(merged.Chapters) == 0 {
		return Result{}, pipeerr.NewValidation(domain.StageAnalyze, "analysis produced no chapters")
	}
	for _, ch := range merged.Chapters {
		if len(ch.Scenes) == 0 {
			return Result{}, pipeerr.NewValidation(domain.StageAnalyze, "analysis produced an empty chapter")
		}
	}

	return Result{Text: merged, Warnings: warnings}, nil
}

// splitChunks breaks text into windows of approximately chunkSize
// characters, preferring to cut at a blank-line paragraph boundary
// nearest the target size rather than mid-paragraph.
func splitChunks(text string, chunkSize int) []string {
	if chunkSize <= 0 {
		chunkSize = 3000
	}
	if len(text) <= chunkSize {
		return []string{text}
	}

	var chunks []string
	remaining := text
	for len(remaining) > chunkSize {
		window := remaining[:chunkSize]
		cut := strings.LastIndex(window, "\n\n")
		if cut < chunkSize/4 {
			// no good paragraph boundary in the back 3/4 of the window;
			// fall back to a hard cut at chunkSize.
			cut = chunkSize
		}
		chunks = append(chunks, strings.TrimSpace(remaining[:cut]))
		remaining = strings.TrimSpace(remaining[cut:])
	}
	if len(remaining) > 0 {
		chunks = append(chunks, remaining)
	}
	return chunks
}

// mergeCharacters unions known with fresh by name, letting non-empty
// fields win and accumulating distinct age variants.
func mergeCharacters(known []domain.Character, fresh []domain.Character) []domain.Character {
	byName := make(map[string]int, len(known))
	out := append([]domain.Character(nil), known...)
	for i, c := range out {
		byName[c.Name] = i
	}
	for _, c := range fresh {
		idx, ok := byName[c.Name]
		if !ok {
			byName[c.Name] = len(out)
			out = append(out, c)
			continue
		}
		out[idx] = mergeCharacter(out[idx], c)
	}
	return out
}

func mergeCharacter(a, b domain.Character) domain.Character {
	out := a
	out.Appearance = overlayNonEmpty(a.Appearance, b.Appearance)
	if out.Personality == "" {
		out.Personality = b.Personality
	}
	if out.Role == "" {
		out.Role = b.Role
	}
	seen := make(map[domain.AgeStage]bool, len(out.AgeVariants))
	for _, v := range out.AgeVariants {
		seen[v.AgeStage] = true
	}
	for _, v := range b.AgeVariants {
		if !seen[v.AgeStage] {
			out.AgeVariants = append(out.AgeVariants, v)
			seen[v.AgeStage] = true
		}
	}
	return out
}

// overlayNonEmpty fills only the empty fields of a from b, the
// "non-empty wins, otherwise first occurrence wins" merge rule.
func overlayNonEmpty(a, b domain.Appearance) domain.Appearance {
	out := a
	if out.Gender == "" {
		out.Gender = b.Gender
	}
	if out.Age == nil {
		out.Age = b.Age
	}
	if out.AgeStage == "" {
		out.AgeStage = b.AgeStage
	}
	if out.Hair == "" {
		out.Hair = b.Hair
	}
	if out.Eyes == "" {
		out.Eyes = b.Eyes
	}
	if out.Clothing == "" {
		out.Clothing = b.Clothing
	}
	if out.Features == "" {
		out.Features = b.Features
	}
	if out.BodyType == "" {
		out.BodyType = b.BodyType
	}
	if out.Height == "" {
		out.Height = b.Height
	}
	if out.Skin == "" {
		out.Skin = b.Skin
	}
	return out
}

// mergeResults concatenates every chunk's chapters in order, assigns
// fresh sequential chapter/scene ids, and renumbers plot point scene
// refs by the cumulative scene offset of the chunk they came from.
func mergeResults(results []adapters.TextAnalysisResult) domain.AnalyzedText {
	var characters []domain.Character
	for _, r := range results {
		characters = mergeCharacters(characters, r.Characters)
	}

	var chapters []domain.Chapter
	var plotPoints []domain.PlotPoint
	chapterID := 0
	sceneID := 0
	for _, r := range results {
		sceneOffsetAtChunkStart := sceneID
		for _, ch := range r.Chapters {
			chapterID++
			newScenes := make([]domain.Scene, 0, len(ch.Scenes))
			for _, sc := range ch.Scenes {
				sceneID++
				sc.SceneID = sceneID
				newScenes = append(newScenes, sc)
			}
			chapters = append(chapters, domain.Chapter{
				ChapterID: chapterID,
				Title:     ch.Title,
				Scenes:    newScenes,
			})
		}
		for _, p := range r.PlotPoints {
			p.SceneRef = sceneOffsetAtChunkStart + p.SceneRef
			plotPoints = append(plotPoints, p)
		}
	}

	return domain.AnalyzedText{Characters: characters, Chapters: chapters, PlotPoints: plotPoints}
}

// enforceInvariants applies the three invariants from spec §4.6, in
// order: promote unknown speakers to characters, truncate scenes over
// max_scenes from the tail, then drop lowest-mention characters over
// max_characters.
func enforceInvariants(text domain.AnalyzedText, opts domain.Options, warnings []string) (domain.AnalyzedText, []string) {
	text, warnings = promoteUnknownSpeakers(text, warnings)
	text, warnings = truncateScenes(text, opts.MaxScenes, warnings)
	text, warnings = capCharacters(text, opts.MaxCharacters, warnings)
	return text, warnings
}

func promoteUnknownSpeakers(text domain.AnalyzedText, warnings []string) (domain.AnalyzedText, []string) {
	known := make(map[string]bool, len(text.Characters))
	for _, c := range text.Characters {
		known[c.Name] = true
	}
	promote := func(name string) {
		if name == "" || known[name] {
			return
		}
		known[name] = true
		text.Characters = append(text.Characters, domain.Character{
			Name:       name,
			Appearance: domain.Appearance{Gender: domain.GenderUnknown, AgeStage: domain.AgeUnknown},
		})
		warnings = append(warnings, "promoted unknown speaker to character: "+name)
	}
	for _, ch := range text.Chapters {
		for _, sc := range ch.Scenes {
			for _, name := range sc.Characters {
				promote(name)
			}
			for _, d := range sc.Dialogue {
				promote(d.Speaker)
			}
		}
	}
	return text, warnings
}

func truncateScenes(text domain.AnalyzedText, maxScenes int, warnings []string) (domain.AnalyzedText, []string) {
	if maxScenes <= 0 {
		return text, warnings
	}
	total := 0
	for _, ch := range text.Chapters {
		total += len(ch.Scenes)
	}
	if total <= maxScenes {
		return text, warnings
	}

	kept := 0
	var newChapters []domain.Chapter
	for _, ch := range text.Chapters {
		if kept >= maxScenes {
			break
		}
		room := maxScenes - kept
		scenes := ch.Scenes
		if len(scenes) > room {
			scenes = scenes[:room]
		}
		kept += len(scenes)
		if len(scenes) > 0 {
			nc := ch
			nc.Scenes = scenes
			newChapters = append(newChapters, nc)
		}
	}
	text.Chapters = newChapters
	warnings = append(warnings, "truncated scenes from the tail to respect max_scenes")
	return text, warnings
}

func capCharacters(text domain.AnalyzedText, maxCharacters int, warnings []string) (domain.AnalyzedText, []string) {
	if maxCharacters <= 0 || len(text.Characters) <= maxCharacters {
		return text, warnings
	}

	mentions := make(map[string]int, len(text.Characters))
	for _, ch := range text.Chapters {
		for _, sc := range ch.Scenes {
			for _, name := range sc.Characters {
				mentions[name]++
			}
			for _, d := range sc.Dialogue {
				mentions[d.Speaker]++
			}
		}
	}

	ranked := append([]domain.Character(nil), text.Characters...)
	sort.SliceStable(ranked, func(i, j int) bool {
		return mentions[ranked[i].Name] > mentions[ranked[j].Name]
	})
	text.Characters = ranked[:maxCharacters]
	warnings = append(warnings, "dropped lowest-mention characters to respect max_characters")
	return text, warnings
}
