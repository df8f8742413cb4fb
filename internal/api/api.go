// Package api is the ambient HTTP/SSE transport shim: a minimal job
// submission endpoint and a progress-stream relay wired to the
// orchestrator Engine and Event Bus. It is explicitly not part of the
// tested pipeline core — a real deployment's transport, auth, and
// persistence-backed job history live outside this module.
package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/novelvideo/internal/pipeline/domain"
	"github.com/yungbote/novelvideo/internal/pipeline/eventbus"
	"github.com/yungbote/novelvideo/internal/pipeline/orchestrator"
	"github.com/yungbote/novelvideo/internal/platform/apierr"
	"github.com/yungbote/novelvideo/internal/platform/ctxutil"
	"github.com/yungbote/novelvideo/internal/platform/logger"
)

func writeAPIErr(c *gin.Context, status int, code string, err error) {
	apiErr := apierr.New(status, code, err)
	c.JSON(status, gin.H{"error": apiErr.Error(), "code": code})
}

// Server wires the orchestrator Engine and Event Bus behind a small
// Gin router, following the teacher's pairing of a job engine with a
// thin HTTP layer.
type Server struct {
	engine *orchestrator.Engine
	bus    eventbus.Bus
	log    *logger.Logger
}

func NewServer(engine *orchestrator.Engine, bus eventbus.Bus, log *logger.Logger) *Server {
	return &Server{engine: engine, bus: bus, log: log}
}

// Router builds the Gin engine exposing POST /jobs and
// GET /jobs/:id/events.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.POST("/jobs", s.submitJob)
	r.GET("/jobs/:id/events", s.streamJobEvents)
	r.GET("/jobs/:id", s.getJob)
	return r
}

type submitRequest struct {
	InputText string         `json:"input_text"`
	Options   optionsRequest `json:"options"`
}

type optionsRequest struct {
	AnalyzerMode           string  `json:"analyzer_mode"`
	MaxCharacters          int     `json:"max_characters"`
	MaxScenes              int     `json:"max_scenes"`
	ChunkSize              int     `json:"chunk_size"`
	DialogueMode           string  `json:"dialogue_mode"`
	DurationMin            float64 `json:"duration_min"`
	DurationMax            float64 `json:"duration_max"`
	CharsPerSecond         float64 `json:"chars_per_second"`
	ActionSeconds          float64 `json:"action_seconds"`
	SilentSceneDuration    float64 `json:"silent_scene_duration"`
	ImageSize              string  `json:"image_size"`
	RetryAttempts          int     `json:"retry_attempts"`
	RequestTimeoutSeconds  int     `json:"request_timeout"`
	MaxParallelScenes      int     `json:"max_parallel_scenes"`
	RetainScratchOnFailure bool    `json:"retain_scratch_on_failure"`
	NarratorVoice          string  `json:"narrator_voice"`
	DefaultVoice           string  `json:"default_voice"`
}

func (o optionsRequest) toDomain() domain.Options {
	return domain.Options{
		AnalyzerMode:           domain.AnalyzerMode(o.AnalyzerMode),
		MaxCharacters:          o.MaxCharacters,
		MaxScenes:              o.MaxScenes,
		ChunkSize:              o.ChunkSize,
		DialogueMode:           domain.DialogueMode(o.DialogueMode),
		DurationMin:            o.DurationMin,
		DurationMax:            o.DurationMax,
		CharsPerSecond:         o.CharsPerSecond,
		ActionSeconds:          o.ActionSeconds,
		SilentSceneDur:         o.SilentSceneDuration,
		ImageSize:              o.ImageSize,
		RetryAttempts:          o.RetryAttempts,
		RequestTimeout:         time.Duration(o.RequestTimeoutSeconds) * time.Second,
		MaxParallelScenes:      o.MaxParallelScenes,
		RetainScratchOnFailure: o.RetainScratchOnFailure,
		NarratorVoice:          o.NarratorVoice,
		DefaultVoice:           o.DefaultVoice,
	}
}

func (s *Server) submitJob(c *gin.Context) {
	var req submitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeAPIErr(c, http.StatusBadRequest, "invalid_request_body", err)
		return
	}

	requestID := uuid.NewString()
	ctx := ctxutil.WithTraceData(c.Request.Context(), &ctxutil.TraceData{RequestID: requestID})

	jobID := s.engine.Submit(ctx, req.InputText, req.Options.toDomain())
	c.Header("X-Request-Id", requestID)
	c.JSON(http.StatusAccepted, gin.H{"job_id": jobID.String()})
}

func (s *Server) getJob(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		writeAPIErr(c, http.StatusBadRequest, "invalid_job_id", err)
		return
	}
	job, ok := s.engine.Job(id)
	if !ok {
		writeAPIErr(c, http.StatusNotFound, "job_not_found", nil)
		return
	}
	c.JSON(http.StatusOK, jobSnapshotJSON(job))
}

func jobSnapshotJSON(j domain.Job) gin.H {
	return gin.H{
		"job_id":      j.ID.String(),
		"status":      string(j.Status),
		"stage":       j.Stage,
		"progress":    j.ProgressPct,
		"message":     j.Message,
	}
}

// streamJobEvents relays the Event Bus's per-job stream as
// text/event-stream, in the wire shapes of spec §6, terminating the
// connection after the terminal event.
func (s *Server) streamJobEvents(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		writeAPIErr(c, http.StatusBadRequest, "invalid_job_id", err)
		return
	}

	ch, cancel := s.bus.Subscribe(id)
	defer cancel()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	heartbeat := time.NewTicker(15 * time.Second)
	defer heartbeat.Stop()

	c.Stream(func(w interface{ Write([]byte) (int, error) }) bool {
		select {
		case evt, ok := <-ch:
			if !ok {
				return false
			}
			c.SSEvent("message", eventToWire(evt))
			return evt.Type == domain.EventProgress
		case <-heartbeat.C:
			c.SSEvent("heartbeat", gin.H{})
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}

func eventToWire(evt domain.Event) gin.H {
	switch evt.Type {
	case domain.EventCompleted:
		result := gin.H{}
		if evt.Result != nil {
			result = gin.H{
				"video_path":   evt.Result.Path,
				"duration":     evt.Result.DurationSec,
				"file_size":    evt.Result.ByteSize,
				"scenes_count": evt.Result.SceneCount,
			}
		}
		return gin.H{"type": "completed", "result": result}
	case domain.EventFailed:
		return gin.H{"type": "failed", "kind": string(evt.ErrorKind), "detail": evt.ErrorDetail}
	default:
		return gin.H{"type": "progress", "stage": evt.Stage, "progress": evt.Progress, "message": evt.Message}
	}
}
