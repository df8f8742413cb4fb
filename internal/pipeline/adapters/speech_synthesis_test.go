package adapters

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestHTTPSpeechSynthesisDecodesBase64Payload(t *testing.T) {
	raw := []byte("fake-wav-bytes")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req speechWireRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.VoiceID != "voice_1" {
			t.Errorf("VoiceID = %q", req.VoiceID)
		}
		json.NewEncoder(w).Encode(speechWireResponse{
			AudioBase64: base64.StdEncoding.EncodeToString(raw),
			Format:      "wav",
			Duration:    4.5,
		})
	}))
	defer srv.Close()

	a := NewHTTPSpeechSynthesis(nil, srv.URL, "", time.Second, 1, 0)
	result, err := a.SynthesizeSpeech(context.Background(), SpeechRequest{Text: "hello there", VoiceID: "voice_1"})
	if err != nil {
		t.Fatalf("SynthesizeSpeech: %v", err)
	}
	if string(result.AudioBytes) != string(raw) {
		t.Fatalf("AudioBytes = %q, want %q", result.AudioBytes, raw)
	}
	if result.Duration != 4.5 {
		t.Fatalf("Duration = %v, want 4.5", result.Duration)
	}
}

func TestHTTPSpeechSynthesisRejectsEmptyPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(speechWireResponse{AudioBase64: "", Format: "wav"})
	}))
	defer srv.Close()

	a := NewHTTPSpeechSynthesis(nil, srv.URL, "", time.Second, 1, 0)
	_, err := a.SynthesizeSpeech(context.Background(), SpeechRequest{Text: "x", VoiceID: "v"})
	if err == nil {
		t.Fatal("expected an error for an empty audio payload")
	}
}

func TestHTTPSpeechSynthesisDefaultsFormatWhenServerOmitsIt(t *testing.T) {
	raw := []byte("y")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(speechWireResponse{AudioBase64: base64.StdEncoding.EncodeToString(raw)})
	}))
	defer srv.Close()

	a := NewHTTPSpeechSynthesis(nil, srv.URL, "", time.Second, 1, 0)
	result, err := a.SynthesizeSpeech(context.Background(), SpeechRequest{Text: "x", VoiceID: "v"})
	if err != nil {
		t.Fatalf("SynthesizeSpeech: %v", err)
	}
	if result.Format != "wav" {
		t.Fatalf("Format = %q, want default wav", result.Format)
	}
}
