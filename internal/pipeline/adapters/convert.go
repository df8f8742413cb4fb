package adapters

import "github.com/yungbote/novelvideo/internal/pipeline/domain"

func fromWireResponse(w textAnalysisWireResponse) TextAnalysisResult {
	characters := make([]domain.Character, 0, len(w.Characters))
	for _, c := range w.Characters {
		characters = append(characters, domain.Character{
			Name:        c.Name,
			Personality: c.Personality,
			Role:        c.Role,
			Appearance: domain.Appearance{
				Gender:   domain.GenderKind(c.Gender),
				AgeStage: domain.AgeStage(c.AgeStage),
			},
		})
	}

	chapters := make([]domain.Chapter, 0, len(w.Chapters))
	for ci, ch := range w.Chapters {
		scenes := make([]domain.Scene, 0, len(ch.Scenes))
		for si, s := range ch.Scenes {
			dialogue := make([]domain.DialogueLine, 0, len(s.Dialogue))
			for _, d := range s.Dialogue {
				dialogue = append(dialogue, domain.DialogueLine{Speaker: d.Speaker, Text: d.Text})
			}
			scenes = append(scenes, domain.Scene{
				SceneID:     si + 1,
				Location:    s.Location,
				Time:        s.Time,
				Description: s.Description,
				Atmosphere:  s.Atmosphere,
				Lighting:    s.Lighting,
				Characters:  s.Characters,
				Narration:   s.Narration,
				Dialogue:    dialogue,
				Actions:     s.Actions,
			})
		}
		chapters = append(chapters, domain.Chapter{
			ChapterID: ci + 1,
			Title:     ch.Title,
			Scenes:    scenes,
		})
	}

	plotPoints := make([]domain.PlotPoint, 0, len(w.PlotPoints))
	for _, p := range w.PlotPoints {
		plotPoints = append(plotPoints, domain.PlotPoint{
			SceneRef:    p.SceneIndex,
			Kind:        domain.PlotPointKind(p.Kind),
			Description: p.Description,
		})
	}

	return TextAnalysisResult{
		Characters: characters,
		Chapters:   chapters,
		PlotPoints: plotPoints,
	}
}
