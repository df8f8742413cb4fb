package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/novelvideo/internal/pipeline/adapters"
	"github.com/yungbote/novelvideo/internal/pipeline/eventbus"
	"github.com/yungbote/novelvideo/internal/pipeline/orchestrator"
	"github.com/yungbote/novelvideo/internal/pipeline/scratch"
	"github.com/yungbote/novelvideo/internal/pipeline/stages/analyze"
	"github.com/yungbote/novelvideo/internal/pipeline/stages/compose"
	"github.com/yungbote/novelvideo/internal/pipeline/stages/render"
	"github.com/yungbote/novelvideo/internal/pipeline/voice"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	bus := eventbus.NewMemoryBus(nil)
	store := scratch.NewStore(t.TempDir(), nil)
	fakeText := &adapters.FakeTextUnderstanding{}
	engine := orchestrator.NewEngine(orchestrator.Deps{
		Bus:          bus,
		Scratch:      store,
		VoiceCatalog: voice.DefaultCatalog(),
		Analyzer:     analyze.NewAnalyzer(fakeText, nil),
		Renderer:     render.NewRenderer(&adapters.FakeImageSynthesis{}, &adapters.FakeSpeechSynthesis{}, &adapters.FakeMediaMux{ProbeSeconds: 1}, nil),
		Composer:     compose.NewComposer(&adapters.FakeMediaMux{ProbeSeconds: 1}, t.TempDir(), nil),
	})
	return NewServer(engine, bus, nil)
}

func TestSubmitJobReturnsAcceptedWithJobID(t *testing.T) {
	s := newTestServer(t)
	router := s.Router()

	body, _ := json.Marshal(submitRequest{InputText: strings.Repeat("a long novel. ", 50)})
	req := httptest.NewRequest(http.MethodPost, "/jobs", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want %d, body = %s", rec.Code, http.StatusAccepted, rec.Body.String())
	}
	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["job_id"] == "" {
		t.Fatal("expected a non-empty job_id")
	}
}

func TestSubmitJobRejectsMalformedBody(t *testing.T) {
	s := newTestServer(t)
	router := s.Router()

	req := httptest.NewRequest(http.MethodPost, "/jobs", bytes.NewReader([]byte("{not json")))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestGetJobReturnsNotFoundForUnknownID(t *testing.T) {
	s := newTestServer(t)
	router := s.Router()

	req := httptest.NewRequest(http.MethodGet, "/jobs/00000000-0000-0000-0000-000000000000", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestGetJobReturnsBadRequestForMalformedID(t *testing.T) {
	s := newTestServer(t)
	router := s.Router()

	req := httptest.NewRequest(http.MethodGet, "/jobs/not-a-uuid", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestGetJobReturnsSubmittedJobSnapshot(t *testing.T) {
	s := newTestServer(t)
	router := s.Router()

	body, _ := json.Marshal(submitRequest{InputText: strings.Repeat("a long novel. ", 50)})
	submitReq := httptest.NewRequest(http.MethodPost, "/jobs", bytes.NewReader(body))
	submitReq.Header.Set("Content-Type", "application/json")
	submitRec := httptest.NewRecorder()
	router.ServeHTTP(submitRec, submitReq)

	var submitResp map[string]string
	json.Unmarshal(submitRec.Body.Bytes(), &submitResp)
	jobID := submitResp["job_id"]

	var job map[string]interface{}
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		rec := httptest.NewRecorder()
		getReq := httptest.NewRequest(http.MethodGet, "/jobs/"+jobID, nil)
		router.ServeHTTP(rec, getReq)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
		}
		json.Unmarshal(rec.Body.Bytes(), &job)
		if job["job_id"] == jobID {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("job snapshot never matched submitted id: %+v", job)
}
