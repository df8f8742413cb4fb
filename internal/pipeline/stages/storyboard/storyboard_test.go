package storyboard

import (
	"strings"
	"testing"

	"github.com/yungbote/novelvideo/internal/pipeline/domain"
)

func baseOptions() domain.Options {
	o := domain.DefaultOptions()
	o.CharsPerSecond = 10
	o.ActionSeconds = 1
	o.DurationMin = 2
	o.DurationMax = 20
	o.SilentSceneDur = 3
	return o
}

func TestBuildProducesOneStoryboardScenePerInputScene(t *testing.T) {
	text := domain.AnalyzedText{
		Characters: []domain.Character{{Name: "Alice", Appearance: domain.Appearance{Gender: domain.GenderFemale}}},
		Chapters: []domain.Chapter{
			{
				ChapterID: 1,
				Scenes: []domain.Scene{
					{SceneID: 1, Narration: "It was a dark night."},
					{SceneID: 2, Narration: "The sun rose."},
				},
			},
		},
	}

	sb := Build(text, baseOptions())
	if sb.TotalScenes() != 2 {
		t.Fatalf("TotalScenes = %d, want 2", sb.TotalScenes())
	}
	if sb.Chapters[0].Scenes[0].SceneID != 1 || sb.Chapters[0].Scenes[1].SceneID != 2 {
		t.Fatalf("scene ids not preserved: %+v", sb.Chapters[0].Scenes)
	}
}

func TestBuildMergesDialogueWithPauseMarker(t *testing.T) {
	text := domain.AnalyzedText{
		Chapters: []domain.Chapter{
			{
				ChapterID: 1,
				Scenes: []domain.Scene{
					{
						SceneID: 1,
						Dialogue: []domain.DialogueLine{
							{Speaker: "Alice", Text: "Hello"},
							{Speaker: "Alice", Text: "How are you"},
						},
					},
				},
			},
		},
	}
	opts := baseOptions()
	opts.DialogueMode = domain.DialogueMerged

	sb := Build(text, opts)
	units := sb.Chapters[0].Scenes[0].AudioUnits
	if len(units) != 1 {
		t.Fatalf("len(AudioUnits) = %d, want 1 for merged mode", len(units))
	}
	if !strings.Contains(units[0].Text, dialoguePauseMarker) {
		t.Fatalf("merged text %q missing pause marker %q", units[0].Text, dialoguePauseMarker)
	}
}

func TestBuildPerLineDialogueProducesOneUnitPerLine(t *testing.T) {
	text := domain.AnalyzedText{
		Chapters: []domain.Chapter{
			{
				ChapterID: 1,
				Scenes: []domain.Scene{
					{
						SceneID: 1,
						Dialogue: []domain.DialogueLine{
							{Speaker: "Alice", Text: "Hello"},
							{Speaker: "Bob", Text: "Hi there"},
						},
					},
				},
			},
		},
	}
	opts := baseOptions()
	opts.DialogueMode = domain.DialoguePerLine

	sb := Build(text, opts)
	units := sb.Chapters[0].Scenes[0].AudioUnits
	if len(units) != 2 {
		t.Fatalf("len(AudioUnits) = %d, want 2 for per_line mode", len(units))
	}
	if units[0].Speaker != "Alice" || units[1].Speaker != "Bob" {
		t.Fatalf("unexpected speakers: %+v", units)
	}
}

func TestBuildSilentSceneWhenNoNarrationOrDialogue(t *testing.T) {
	text := domain.AnalyzedText{
		Chapters: []domain.Chapter{
			{ChapterID: 1, Scenes: []domain.Scene{{SceneID: 1}}},
		},
	}
	opts := baseOptions()

	sb := Build(text, opts)
	units := sb.Chapters[0].Scenes[0].AudioUnits
	if len(units) != 1 || units[0].Kind != domain.AudioSilence {
		t.Fatalf("units = %+v, want one silence unit", units)
	}
	if units[0].EstimatedDuration != opts.SilentSceneDur {
		t.Fatalf("silent duration = %v, want %v", units[0].EstimatedDuration, opts.SilentSceneDur)
	}
}

func TestEstimateDurationClampsToMinAndMax(t *testing.T) {
	opts := baseOptions()
	opts.DurationMin = 5
	opts.DurationMax = 8

	shortUnit := domain.AudioInfo{Kind: domain.AudioNarration, Text: "hi"}
	if d := estimateDuration(shortUnit, domain.Scene{}, opts); d != opts.DurationMin {
		t.Fatalf("short duration = %v, want clamped to min %v", d, opts.DurationMin)
	}

	longUnit := domain.AudioInfo{Kind: domain.AudioNarration, Text: strings.Repeat("x", 1000)}
	if d := estimateDuration(longUnit, domain.Scene{}, opts); d != opts.DurationMax {
		t.Fatalf("long duration = %v, want clamped to max %v", d, opts.DurationMax)
	}
}

func TestResolveAppearancesOverlaysSceneOverOverGlobal(t *testing.T) {
	global := map[string]domain.Appearance{
		"Alice": {Gender: domain.GenderFemale, Hair: "brown", AgeStage: domain.AgeAdult},
	}
	sc := domain.Scene{
		Characters: []string{"Alice"},
		CharacterAppearances: map[string]domain.Appearance{
			"Alice": {Hair: "silver"},
		},
	}

	resolved := resolveAppearances(sc, global)
	app := resolved["Alice"]
	if app.Hair != "silver" {
		t.Fatalf("Hair = %q, want scene override %q", app.Hair, "silver")
	}
	if app.Gender != domain.GenderFemale {
		t.Fatalf("Gender = %q, want global value preserved", app.Gender)
	}
}

func TestBuildImageInfoIncludesSceneAndCharacterDetails(t *testing.T) {
	sc := domain.Scene{
		Description: "a quiet clearing",
		Atmosphere:  "tense",
		Lighting:    "dim",
		Characters:  []string{"Alice"},
	}
	resolved := map[string]domain.Appearance{
		"Alice": {Gender: domain.GenderFemale, AgeStage: domain.AgeAdult, Hair: "red"},
	}

	info := buildImageInfo(sc, resolved)
	for _, want := range []string{"a quiet clearing", "tense", "dim", "Alice", "red hair"} {
		if !strings.Contains(info.Prompt, want) {
			t.Fatalf("prompt %q missing %q", info.Prompt, want)
		}
	}
}
