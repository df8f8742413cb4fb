// Package domain holds the value types of the novel-to-video pipeline:
// the job record, the entity graph produced by text analysis, the
// storyboard derived from it, and the rendered/composed artifacts.
// Every type here is a plain value except Job and JobScratch, which are
// mutable and single-owned (see internal/pipeline/orchestrator and
// internal/pipeline/scratch respectively).
package domain

import (
	"time"

	"github.com/google/uuid"
)

// JobStatus is one point in the job lifecycle's total order:
// pending -> running -> {completed | failed | cancelled}.
type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
	JobCancelled JobStatus = "cancelled"
)

// Stage names, used both as Job.Stage values and as event/stage labels.
const (
	StageInit        = "init"
	StageAnalyze     = "analyze"
	StageStoryboard  = "storyboard"
	StageRender      = "render"
	StageCompose     = "compose"
	StageDone        = "done"
)

// AnalyzerMode selects Stage 1's strategy for long inputs.
type AnalyzerMode string

const (
	AnalyzerSimple  AnalyzerMode = "simple"
	AnalyzerChunked AnalyzerMode = "chunked"
)

// DialogueMode selects how Stage 2 groups a scene's dialogue lines into
// audio units.
type DialogueMode string

const (
	DialoguePerLine DialogueMode = "per_line"
	DialogueMerged  DialogueMode = "merged"
)

// Options carries every per-job knob from spec §6. Zero values are
// replaced by DefaultOptions' defaults at submission time.
type Options struct {
	AnalyzerMode    AnalyzerMode
	MaxCharacters   int
	MaxScenes       int
	ChunkSize       int
	DialogueMode    DialogueMode
	DurationMin     float64
	DurationMax     float64
	CharsPerSecond  float64
	ActionSeconds   float64
	SilentSceneDur  float64
	ImageSize       string
	RetryAttempts   int
	RequestTimeout  time.Duration
	MaxParallelScenes int
	RetainScratchOnFailure bool
	NarratorVoice   string
	DefaultVoice    string
	JobTimeout      time.Duration
	MinTextLength   int
}

// DefaultOptions returns the spec's documented defaults.
func DefaultOptions() Options {
	return Options{
		AnalyzerMode:           AnalyzerChunked,
		MaxCharacters:          10,
		MaxScenes:              30,
		ChunkSize:              3000,
		DialogueMode:           DialogueMerged,
		DurationMin:            3.0,
		DurationMax:            10.0,
		CharsPerSecond:         3.0,
		ActionSeconds:          1.5,
		SilentSceneDur:         3.0,
		ImageSize:              "1024x1024",
		RetryAttempts:          3,
		RequestTimeout:         300 * time.Second,
		MaxParallelScenes:      1,
		RetainScratchOnFailure: false,
		NarratorVoice:          "narrator_default",
		DefaultVoice:           "voice_default",
		MinTextLength:          200,
	}
}

// WithDefaults fills zero-valued fields of o with DefaultOptions' values.
func (o Options) WithDefaults() Options {
	d := DefaultOptions()
	if o.AnalyzerMode == "" {
		o.AnalyzerMode = d.AnalyzerMode
	}
	if o.MaxCharacters <= 0 {
		o.MaxCharacters = d.MaxCharacters
	}
	if o.MaxScenes <= 0 {
		o.MaxScenes = d.MaxScenes
	}
	if o.ChunkSize <= 0 {
		o.ChunkSize = d.ChunkSize
	}
	if o.DialogueMode == "" {
		o.DialogueMode = d.DialogueMode
	}
	if o.DurationMin <= 0 {
		o.DurationMin = d.DurationMin
	}
	if o.DurationMax <= 0 {
		o.DurationMax = d.DurationMax
	}
	if o.CharsPerSecond <= 0 {
		o.CharsPerSecond = d.CharsPerSecond
	}
	if o.ActionSeconds <= 0 {
		o.ActionSeconds = d.ActionSeconds
	}
	if o.SilentSceneDur <= 0 {
		o.SilentSceneDur = d.SilentSceneDur
	}
	if o.ImageSize == "" {
		o.ImageSize = d.ImageSize
	}
	if o.RetryAttempts <= 0 {
		o.RetryAttempts = d.RetryAttempts
	}
	if o.RequestTimeout <= 0 {
		o.RequestTimeout = d.RequestTimeout
	}
	if o.MaxParallelScenes <= 0 {
		o.MaxParallelScenes = d.MaxParallelScenes
	}
	if o.NarratorVoice == "" {
		o.NarratorVoice = d.NarratorVoice
	}
	if o.DefaultVoice == "" {
		o.DefaultVoice = d.DefaultVoice
	}
	if o.MinTextLength <= 0 {
		o.MinTextLength = d.MinTextLength
	}
	return o
}

// Job is the root entity tying together all derived state for one
// novel-text-to-video run. Mutable; owned exclusively by the
// orchestrator that is driving it.
type Job struct {
	ID          uuid.UUID
	InputText   string
	Options     Options
	Status      JobStatus
	Stage       string
	ProgressPct int
	Message     string
	Result      *FinalVideo
	ErrorKind   ErrorKindName
	ErrorDetail string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ErrorKindName is the closed set of externally-surfaced error kinds
// from spec §7, spelled as strings so they serialize directly into
// progress-stream JSON without an intermediate mapping table.
type ErrorKindName string

const (
	KindValidation       ErrorKindName = "ValidationError"
	KindModelOutput      ErrorKindName = "ModelOutputError"
	KindExternalService  ErrorKindName = "ExternalServiceError"
	KindRender           ErrorKindName = "RenderError"
	KindComposition      ErrorKindName = "CompositionError"
	KindStorage          ErrorKindName = "StorageError"
	KindCancelled        ErrorKindName = "Cancelled"
)

// GenderKind and AgeStage classify a character's appearance for voice
// selection (C5) and are otherwise opaque strings passed through to
// image/storyboard prompts.
type GenderKind string

const (
	GenderMale    GenderKind = "male"
	GenderFemale  GenderKind = "female"
	GenderUnknown GenderKind = "unknown"
)

type AgeStage string

const (
	AgeChild   AgeStage = "child"
	AgeYouth   AgeStage = "youth"
	AgeAdult   AgeStage = "adult"
	AgeElder   AgeStage = "elder"
	AgeUnknown AgeStage = "unknown"
)

// Appearance is every descriptive field a character or a per-scene
// override may carry. All fields are optional; the zero value means
// "unspecified," not "empty string."
type Appearance struct {
	Gender    GenderKind
	Age       *int
	AgeStage  AgeStage
	Hair      string
	Eyes      string
	Clothing  string
	Features  string
	BodyType  string
	Height    string
	Skin      string
}

// Overlay returns a copy of a with every non-empty field of over
// applied on top — used to merge a scene's per-character appearance
// override onto the character's global appearance (spec §4.7 step 1).
func (a Appearance) Overlay(over Appearance) Appearance {
	out := a
	if over.Gender != "" {
		out.Gender = over.Gender
	}
	if over.Age != nil {
		out.Age = over.Age
	}
	if over.AgeStage != "" {
		out.AgeStage = over.AgeStage
	}
	if over.Hair != "" {
		out.Hair = over.Hair
	}
	if over.Eyes != "" {
		out.Eyes = over.Eyes
	}
	if over.Clothing != "" {
		out.Clothing = over.Clothing
	}
	if over.Features != "" {
		out.Features = over.Features
	}
	if over.BodyType != "" {
		out.BodyType = over.BodyType
	}
	if over.Height != "" {
		out.Height = over.Height
	}
	if over.Skin != "" {
		out.Skin = over.Skin
	}
	return out
}

// AgeVariant is an alternate appearance for a character at a different
// point of their life, e.g. a flashback.
type AgeVariant struct {
	AgeStage   AgeStage
	Appearance Appearance
}

// Character is unique within an AnalyzedText by Name.
type Character struct {
	Name        string
	Appearance  Appearance
	Personality string
	Role        string
	AgeVariants []AgeVariant
}

// PlotPointKind classifies a plot beat for pacing/emphasis purposes.
type PlotPointKind string

const (
	PlotConflict   PlotPointKind = "conflict"
	PlotClimax     PlotPointKind = "climax"
	PlotResolution PlotPointKind = "resolution"
	PlotNormal     PlotPointKind = "normal"
)

type PlotPoint struct {
	SceneRef    int
	Kind        PlotPointKind
	Description string
}

type DialogueLine struct {
	Speaker string
	Text    string
}

// Scene is one shot-level unit of the narrative. SceneID is unique
// within its chapter and assigned in encounter order.
type Scene struct {
	SceneID              int
	Location             string
	Time                 string
	Description          string
	Atmosphere           string
	Lighting             string
	Characters           []string
	Narration            string
	Dialogue             []DialogueLine
	Actions              []string
	CharacterAppearances map[string]Appearance
}

type Chapter struct {
	ChapterID int
	Title     string
	Scenes    []Scene
}

// AnalyzedText is Stage 1's output: the entity graph extracted from
// the novel text. Invariant: every Scene.Characters entry and every
// DialogueLine.Speaker names a Character in Characters.
type AnalyzedText struct {
	Characters []Character
	Chapters   []Chapter
	PlotPoints []PlotPoint
}

// AudioKind classifies a storyboard scene's audio unit.
type AudioKind string

const (
	AudioNarration AudioKind = "narration"
	AudioDialogue  AudioKind = "dialogue"
	AudioSilence   AudioKind = "silence"
)

type AudioInfo struct {
	Kind               AudioKind
	Speaker            string
	Text               string
	EstimatedDuration  float64
}

type ImageInfo struct {
	Prompt          string
	StyleTags       []string
	ShotType        string
	CameraAngle     string
	CameraMovement  string
	Composition     string
	Lighting        string
	Mood            string
	Transition      string
}

// StoryboardScene is Stage 2's per-scene output: a Scene plus the
// derived image/audio production plan.
type StoryboardScene struct {
	SceneID            int
	ImageInfo          ImageInfo
	AudioUnits         []AudioInfo
	CharactersResolved map[string]Appearance
	EstimatedDuration  float64
}

type StoryboardChapter struct {
	ChapterID int
	Title     string
	Scenes    []StoryboardScene
}

// Storyboard is Stage 2's output: an AnalyzedText-shaped tree whose
// scenes have been replaced by StoryboardScene.
type Storyboard struct {
	Characters []Character
	Chapters   []StoryboardChapter
	PlotPoints []PlotPoint
}

// TotalScenes returns the scene count across all chapters, used for
// the stage-3 progress band subdivision.
func (s *Storyboard) TotalScenes() int {
	n := 0
	for _, c := range s.Chapters {
		n += len(c.Scenes)
	}
	return n
}

// RenderedAudioUnit is one synthesized audio clip backing a
// StoryboardScene's AudioInfo entry.
type RenderedAudioUnit struct {
	AudioPath        string
	MeasuredDuration float64
}

// RenderedScene is Stage 3's per-scene output.
type RenderedScene struct {
	SceneRef        int
	ChapterID       int
	ImagePath       string
	AudioUnits      []RenderedAudioUnit
	FinalDuration   float64
}

// RenderedChapter groups RenderedScene values by chapter, preserving
// the chapter ordering from the storyboard.
type RenderedChapter struct {
	ChapterID int
	Scenes    []RenderedScene
}

// RenderedStoryboard is Stage 3's full output, scenes always in the
// same order as the input storyboard regardless of completion order.
type RenderedStoryboard struct {
	Chapters []RenderedChapter
}

// FinalVideo is Stage 4's output and the terminal Job.Result.
type FinalVideo struct {
	Path         string
	DurationSec  float64
	ByteSize     int64
	SceneCount   int
	ChapterCount int
}

// EventType tags an Event's payload variant.
type EventType string

const (
	EventProgress  EventType = "progress"
	EventCompleted EventType = "completed"
	EventFailed    EventType = "failed"
)

// Event is one tagged, strictly-sequenced message published on the
// Event Bus for a given job.
type Event struct {
	JobID    uuid.UUID
	Sequence uint64
	Type     EventType

	// progress
	Stage    string
	Progress int
	Message  string

	// completed
	Result *FinalVideo

	// failed
	ErrorKind   ErrorKindName
	ErrorDetail string
}
