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

func TestHTTPImageSynthesisDecodesBase64Payload(t *testing.T) {
	raw := []byte("fake-png-bytes")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req imageWireRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.Prompt != "a quiet clearing" {
			t.Errorf("Prompt = %q", req.Prompt)
		}
		json.NewEncoder(w).Encode(imageWireResponse{
			ImageBase64: base64.StdEncoding.EncodeToString(raw),
			Format:      "png",
		})
	}))
	defer srv.Close()

	a := NewHTTPImageSynthesis(nil, srv.URL, "", "image-test", time.Second, 1, 0)
	result, err := a.SynthesizeImage(context.Background(), ImageRequest{Prompt: "a quiet clearing", Size: "1024x1024"})
	if err != nil {
		t.Fatalf("SynthesizeImage: %v", err)
	}
	if string(result.ImageBytes) != string(raw) {
		t.Fatalf("ImageBytes = %q, want %q", result.ImageBytes, raw)
	}
	if result.Format != "png" {
		t.Fatalf("Format = %q, want png", result.Format)
	}
}

func TestHTTPImageSynthesisDefaultsFormatWhenServerOmitsIt(t *testing.T) {
	raw := []byte("x")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(imageWireResponse{ImageBase64: base64.StdEncoding.EncodeToString(raw)})
	}))
	defer srv.Close()

	a := NewHTTPImageSynthesis(nil, srv.URL, "", "image-test", time.Second, 1, 0)
	result, err := a.SynthesizeImage(context.Background(), ImageRequest{Prompt: "p"})
	if err != nil {
		t.Fatalf("SynthesizeImage: %v", err)
	}
	if result.Format != "png" {
		t.Fatalf("Format = %q, want default png", result.Format)
	}
}

func TestHTTPImageSynthesisRejectsEmptyPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(imageWireResponse{ImageBase64: "", Format: "png"})
	}))
	defer srv.Close()

	a := NewHTTPImageSynthesis(nil, srv.URL, "", "image-test", time.Second, 1, 0)
	_, err := a.SynthesizeImage(context.Background(), ImageRequest{Prompt: "p"})
	if err == nil {
		t.Fatal("expected an error for an empty image payload")
	}
}

func TestHTTPImageSynthesisRejectsInvalidBase64(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(imageWireResponse{ImageBase64: "not-valid-base64!!", Format: "png"})
	}))
	defer srv.Close()

	a := NewHTTPImageSynthesis(nil, srv.URL, "", "image-test", time.Second, 1, 0)
	_, err := a.SynthesizeImage(context.Background(), ImageRequest{Prompt: "p"})
	if err == nil {
		t.Fatal("expected an error for an undecodable image payload")
	}
}
