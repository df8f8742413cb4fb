package bootstrap

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/yungbote/novelvideo/internal/pipeline/eventbus"
	"github.com/yungbote/novelvideo/internal/platform/logger"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"NOVELVIDEO_SCRATCH_BASE", "NOVELVIDEO_VIDEOS_BASE",
		"NOVELVIDEO_TEXT_MODEL_BASE_URL", "NOVELVIDEO_TEXT_MODEL_API_KEY", "NOVELVIDEO_TEXT_MODEL",
		"NOVELVIDEO_IMAGE_MODEL_BASE_URL", "NOVELVIDEO_IMAGE_MODEL_API_KEY", "NOVELVIDEO_IMAGE_MODEL",
		"NOVELVIDEO_SPEECH_MODEL_BASE_URL", "NOVELVIDEO_SPEECH_MODEL_API_KEY",
		"NOVELVIDEO_ADAPTER_TIMEOUT", "NOVELVIDEO_ADAPTER_MAX_RETRIES",
		"NOVELVIDEO_FFMPEG_PATH", "NOVELVIDEO_FFPROBE_PATH", "NOVELVIDEO_MEDIA_TIMEOUT",
		"NOVELVIDEO_REDIS_ADDR", "NOVELVIDEO_REDIS_CHANNEL", "NOVELVIDEO_VOICE_CATALOG_PATH",
	} {
		t.Setenv(k, "")
	}
}

func TestLoadEngineConfigAppliesDefaultsWhenUnset(t *testing.T) {
	clearEnv(t)
	cfg := LoadEngineConfig()

	if cfg.ScratchBase != "./data/scratch" {
		t.Errorf("ScratchBase = %q", cfg.ScratchBase)
	}
	if cfg.AdapterTimeout != 300*time.Second {
		t.Errorf("AdapterTimeout = %v, want 300s", cfg.AdapterTimeout)
	}
	if cfg.AdapterMaxRetries != 3 {
		t.Errorf("AdapterMaxRetries = %d, want 3", cfg.AdapterMaxRetries)
	}
	if cfg.FFmpegPath != "ffmpeg" || cfg.FFprobePath != "ffprobe" {
		t.Errorf("FFmpegPath/FFprobePath = %q/%q", cfg.FFmpegPath, cfg.FFprobePath)
	}
	if cfg.RedisAddr != "" {
		t.Errorf("RedisAddr = %q, want empty", cfg.RedisAddr)
	}
}

func TestLoadEngineConfigReadsOverridesFromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("NOVELVIDEO_TEXT_MODEL", "custom-model")
	t.Setenv("NOVELVIDEO_ADAPTER_MAX_RETRIES", "9")

	cfg := LoadEngineConfig()
	if cfg.TextModel != "custom-model" {
		t.Errorf("TextModel = %q, want custom-model", cfg.TextModel)
	}
	if cfg.AdapterMaxRetries != 9 {
		t.Errorf("AdapterMaxRetries = %d, want 9", cfg.AdapterMaxRetries)
	}
}

func TestBuildWithEmptyRedisAddrUsesMemoryBus(t *testing.T) {
	clearEnv(t)
	cfg := LoadEngineConfig()
	cfg.ScratchBase = t.TempDir()
	cfg.VideosBase = t.TempDir()

	log, err := logger.New("test")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	defer log.Sync()

	runtime, err := Build(cfg, log)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if _, ok := runtime.Bus.(*eventbus.MemoryBus); !ok {
		t.Fatalf("Bus = %T, want *eventbus.MemoryBus", runtime.Bus)
	}
	if runtime.Engine == nil {
		t.Fatal("expected a non-nil Engine")
	}
}

func TestBuildFallsBackToDefaultCatalogOnInvalidCatalogFile(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	badPath := filepath.Join(dir, "catalog.yaml")
	if err := os.WriteFile(badPath, []byte("not: [valid, yaml"), 0o644); err != nil {
		t.Fatalf("write bad catalog: %v", err)
	}

	cfg := LoadEngineConfig()
	cfg.ScratchBase = t.TempDir()
	cfg.VideosBase = t.TempDir()
	cfg.VoiceCatalogPath = badPath

	log, err := logger.New("test")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	defer log.Sync()

	runtime, err := Build(cfg, log)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if runtime.Engine == nil {
		t.Fatal("expected a non-nil Engine despite the invalid catalog file")
	}
}

func TestLoadCatalogFileReturnsErrorForMissingPath(t *testing.T) {
	_, err := loadCatalogFile(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Fatal("expected an error for a missing catalog file")
	}
}
