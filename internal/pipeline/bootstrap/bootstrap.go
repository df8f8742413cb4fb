// Package bootstrap wires every pipeline component together from
// environment configuration, the way the teacher's cmd/ entrypoints
// assemble their services at process boot.
package bootstrap

import (
	"context"
	"os"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/yungbote/novelvideo/internal/pipeline/adapters"
	"github.com/yungbote/novelvideo/internal/pipeline/eventbus"
	"github.com/yungbote/novelvideo/internal/pipeline/orchestrator"
	"github.com/yungbote/novelvideo/internal/pipeline/scratch"
	"github.com/yungbote/novelvideo/internal/pipeline/stages/analyze"
	"github.com/yungbote/novelvideo/internal/pipeline/stages/compose"
	"github.com/yungbote/novelvideo/internal/pipeline/stages/render"
	"github.com/yungbote/novelvideo/internal/pipeline/voice"
	"github.com/yungbote/novelvideo/internal/platform/envutil"
	"github.com/yungbote/novelvideo/internal/platform/logger"
)

// EngineConfig holds every process-boot, non-per-job setting: base
// directories, default adapter timeouts, and which backends to wire.
type EngineConfig struct {
	ScratchBase      string
	VideosBase       string
	TextModelBaseURL string
	TextModelAPIKey  string
	TextModel        string
	ImageModelBaseURL string
	ImageModelAPIKey  string
	ImageModel        string
	SpeechModelBaseURL string
	SpeechModelAPIKey  string
	AdapterTimeout     time.Duration
	AdapterMaxRetries  int
	AdapterRatePerSec  float64
	FFmpegPath         string
	FFprobePath        string
	MediaTimeout       time.Duration
	RedisAddr          string
	RedisChannel       string
	VoiceCatalogPath   string
}

// LoadEngineConfig reads every setting from the environment via envutil,
// falling back to the default when a variable is unset or does not
// parse; fallbacks are not logged.
func LoadEngineConfig() EngineConfig {
	return EngineConfig{
		ScratchBase:         envutil.String("NOVELVIDEO_SCRATCH_BASE", "./data/scratch"),
		VideosBase:          envutil.String("NOVELVIDEO_VIDEOS_BASE", "./data/videos"),
		TextModelBaseURL:    envutil.String("NOVELVIDEO_TEXT_MODEL_BASE_URL", "http://localhost:8081"),
		TextModelAPIKey:     envutil.String("NOVELVIDEO_TEXT_MODEL_API_KEY", ""),
		TextModel:           envutil.String("NOVELVIDEO_TEXT_MODEL", "text-understanding-v1"),
		ImageModelBaseURL:   envutil.String("NOVELVIDEO_IMAGE_MODEL_BASE_URL", "http://localhost:8082"),
		ImageModelAPIKey:    envutil.String("NOVELVIDEO_IMAGE_MODEL_API_KEY", ""),
		ImageModel:          envutil.String("NOVELVIDEO_IMAGE_MODEL", "image-synthesis-v1"),
		SpeechModelBaseURL:  envutil.String("NOVELVIDEO_SPEECH_MODEL_BASE_URL", "http://localhost:8083"),
		SpeechModelAPIKey:   envutil.String("NOVELVIDEO_SPEECH_MODEL_API_KEY", ""),
		AdapterTimeout:      envutil.Duration("NOVELVIDEO_ADAPTER_TIMEOUT", 300*time.Second),
		AdapterMaxRetries:   envutil.Int("NOVELVIDEO_ADAPTER_MAX_RETRIES", 3),
		AdapterRatePerSec:   envutil.Float("NOVELVIDEO_ADAPTER_RATE_PER_SEC", 0),
		FFmpegPath:          envutil.String("NOVELVIDEO_FFMPEG_PATH", "ffmpeg"),
		FFprobePath:         envutil.String("NOVELVIDEO_FFPROBE_PATH", "ffprobe"),
		MediaTimeout:        envutil.Duration("NOVELVIDEO_MEDIA_TIMEOUT", 2*time.Minute),
		RedisAddr:           envutil.String("NOVELVIDEO_REDIS_ADDR", ""),
		RedisChannel:        envutil.String("NOVELVIDEO_REDIS_CHANNEL", "novelvideo:events"),
		VoiceCatalogPath:    envutil.String("NOVELVIDEO_VOICE_CATALOG_PATH", ""),
	}
}

// Runtime holds the fully assembled Engine plus anything a transport
// layer needs to reach into (the bus, for SSE relay).
type Runtime struct {
	Engine *orchestrator.Engine
	Bus    eventbus.Bus
}

// Start begins any background work the assembled bus needs (the
// Redis subscribe-and-forward loop, when a RedisBus was wired). It is
// a no-op for the default in-process MemoryBus.
func (r *Runtime) Start(ctx context.Context) error {
	if rb, ok := r.Bus.(*eventbus.RedisBus); ok {
		return rb.StartForwarder(ctx)
	}
	return nil
}

// Build assembles an Engine from cfg: HTTP-backed adapters, an
// in-process or Redis-backed event bus, and every stage.
func Build(cfg EngineConfig, log *logger.Logger) (*Runtime, error) {
	store := scratch.NewStore(cfg.ScratchBase, log)

	var bus eventbus.Bus
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		rb := eventbus.NewRedisBus(rdb, cfg.RedisChannel, log)
		bus = rb
	} else {
		bus = eventbus.NewMemoryBus(log)
	}

	catalog := voice.DefaultCatalog()
	if cfg.VoiceCatalogPath != "" {
		loaded, err := loadCatalogFile(cfg.VoiceCatalogPath)
		if err == nil {
			catalog = loaded
		} else if log != nil {
			log.Warn("falling back to default voice catalog", "path", cfg.VoiceCatalogPath, "error", err.Error())
		}
	}

	textAdapter := adapters.NewHTTPTextUnderstanding(log, cfg.TextModelBaseURL, cfg.TextModelAPIKey, cfg.TextModel, cfg.AdapterTimeout, cfg.AdapterMaxRetries, cfg.AdapterRatePerSec)
	imageAdapter := adapters.NewHTTPImageSynthesis(log, cfg.ImageModelBaseURL, cfg.ImageModelAPIKey, cfg.ImageModel, cfg.AdapterTimeout, cfg.AdapterMaxRetries, cfg.AdapterRatePerSec)
	speechAdapter := adapters.NewHTTPSpeechSynthesis(log, cfg.SpeechModelBaseURL, cfg.SpeechModelAPIKey, cfg.AdapterTimeout, cfg.AdapterMaxRetries, cfg.AdapterRatePerSec)
	muxAdapter := adapters.NewFFmpegMediaMux(log, cfg.FFmpegPath, cfg.FFprobePath, cfg.MediaTimeout)

	analyzer := analyze.NewAnalyzer(textAdapter, log)
	renderer := render.NewRenderer(imageAdapter, speechAdapter, muxAdapter, log)
	composer := compose.NewComposer(muxAdapter, cfg.VideosBase, log)

	engine := orchestrator.NewEngine(orchestrator.Deps{
		Bus:          bus,
		Scratch:      store,
		VoiceCatalog: catalog,
		Analyzer:     analyzer,
		Renderer:     renderer,
		Composer:     composer,
		Log:          log,
	})

	return &Runtime{Engine: engine, Bus: bus}, nil
}

func loadCatalogFile(path string) (*voice.Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return voice.ParseCatalog(data)
}
