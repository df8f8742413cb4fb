// Package storyboard implements Stage 2 (C7): a pure, deterministic
// transform from an AnalyzedText into a Storyboard — per-scene image
// and audio production bundles, merged character appearances, and
// estimated durations.
package storyboard

import (
	"strings"

	"github.com/yungbote/novelvideo/internal/pipeline/domain"
)

const dialoguePauseMarker = " ... "

// Build transforms text into a Storyboard using the pacing and
// dialogue-grouping options from opts. The transform is total:
// every scene produces exactly one StoryboardScene.
func Build(text domain.AnalyzedText, opts domain.Options) domain.Storyboard {
	globalAppearance := make(map[string]domain.Appearance, len(text.Characters))
	for _, c := range text.Characters {
		globalAppearance[c.Name] = c.Appearance
	}

	chapters := make([]domain.StoryboardChapter, 0, len(text.Chapters))
	for _, ch := range text.Chapters {
		scenes := make([]domain.StoryboardScene, 0, len(ch.Scenes))
		for _, sc := range ch.Scenes {
			scenes = append(scenes, buildScene(sc, globalAppearance, opts))
		}
		chapters = append(chapters, domain.StoryboardChapter{
			ChapterID: ch.ChapterID,
			Title:     ch.Title,
			Scenes:    scenes,
		})
	}

	return domain.Storyboard{
		Characters: text.Characters,
		Chapters:   chapters,
		PlotPoints: text.PlotPoints,
	}
}

func buildScene(sc domain.Scene, globalAppearance map[string]domain.Appearance, opts domain.Options) domain.StoryboardScene {
	resolved := resolveAppearances(sc, globalAppearance)
	audioUnits := buildAudioUnits(sc, opts)

	total := 0.0
	for i := range audioUnits {
		audioUnits[i].EstimatedDuration = estimateDuration(audioUnits[i], sc, opts)
		total += audioUnits[i].EstimatedDuration
	}

	return domain.StoryboardScene{
		SceneID:            sc.SceneID,
		ImageInfo:          buildImageInfo(sc, resolved),
		AudioUnits:         audioUnits,
		CharactersResolved: resolved,
		EstimatedDuration:  total,
	}
}

// resolveAppearances overlays each listed character's scene-local
// appearance override on top of their global appearance (spec §4.7
// step 1).
func resolveAppearances(sc domain.Scene, globalAppearance map[string]domain.Appearance) map[string]domain.Appearance {
	resolved := make(map[string]domain.Appearance, len(sc.Characters))
	for _, name := range sc.Characters {
		base := globalAppearance[name]
		if override, ok := sc.CharacterAppearances[name]; ok {
			base = base.Overlay(override)
		}
		resolved[name] = base
	}
	return resolved
}

func buildAudioUnits(sc domain.Scene, opts domain.Options) []domain.AudioInfo {
	if len(sc.Dialogue) > 0 {
		if opts.DialogueMode == domain.DialoguePerLine {
			units := make([]domain.AudioInfo, 0, len(sc.Dialogue))
			for _, d := range sc.Dialogue {
				units = append(units, domain.AudioInfo{Kind: domain.AudioDialogue, Speaker: d.Speaker, Text: d.Text})
			}
			return units
		}
		return []domain.AudioInfo{mergeDialogue(sc.Dialogue)}
	}
	if strings.TrimSpace(sc.Narration) != "" {
		return []domain.AudioInfo{{Kind: domain.AudioNarration, Text: sc.Narration}}
	}
	return []domain.AudioInfo{{Kind: domain.AudioSilence}}
}

func mergeDialogue(lines []domain.DialogueLine) domain.AudioInfo {
	parts := make([]string, 0, len(lines))
	for _, l := range lines {
		parts = append(parts, l.Text)
	}
	return domain.AudioInfo{
		Kind:    domain.AudioDialogue,
		Speaker: lines[0].Speaker,
		Text:    strings.Join(parts, dialoguePauseMarker),
	}
}

// estimateDuration applies spec §4.7 step 3: duration = max(min,
// len(text)/chars_per_second + actions*action_seconds), clamped to
// max; silence units always take silent_scene_duration.
func estimateDuration(unit domain.AudioInfo, sc domain.Scene, opts domain.Options) float64 {
	if unit.Kind == domain.AudioSilence {
		return opts.SilentSceneDur
	}

	perSecond := opts.CharsPerSecond
	if perSecond <= 0 {
		perSecond = 1
	}
	base := float64(len(unit.Text)) / perSecond
	base += float64(len(sc.Actions)) * opts.ActionSeconds

	if base < opts.DurationMin {
		base = opts.DurationMin
	}
	if base > opts.DurationMax {
		base = opts.DurationMax
	}
	return base
}

func buildImageInfo(sc domain.Scene, resolved map[string]domain.Appearance) domain.ImageInfo {
	var b strings.Builder
	b.WriteString(sc.Description)
	if sc.Atmosphere != "" {
		b.WriteString(", atmosphere: ")
		b.WriteString(sc.Atmosphere)
	}
	if sc.Lighting != "" {
		b.WriteString(", lighting: ")
		b.WriteString(sc.Lighting)
	}
	for _, name := range sc.Characters {
		app, ok := resolved[name]
		if !ok {
			continue
		}
		b.WriteString(", ")
		b.WriteString(name)
		b.WriteString(": ")
		b.WriteString(describeAppearance(app))
	}

	return domain.ImageInfo{
		Prompt:      b.String(),
		ShotType:    "medium_shot",
		CameraAngle: "eye_level",
		Lighting:    sc.Lighting,
		Mood:        sc.Atmosphere,
		Transition:  "cut",
	}
}

func describeAppearance(a domain.Appearance) string {
	var parts []string
	if a.Gender != "" {
		parts = append(parts, string(a.Gender))
	}
	if a.AgeStage != "" {
		parts = append(parts, string(a.AgeStage))
	}
	if a.Hair != "" {
		parts = append(parts, a.Hair+" hair")
	}
	if a.Eyes != "" {
		parts = append(parts, a.Eyes+" eyes")
	}
	if a.Clothing != "" {
		parts = append(parts, "wearing "+a.Clothing)
	}
	if a.Features != "" {
		parts = append(parts, a.Features)
	}
	return strings.Join(parts, ", ")
}
