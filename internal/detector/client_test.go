package detector

import (
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kozaktomas/photo-dedup/internal/analysis"
)

func testImage() image.Image {
	img := image.NewRGBA(image.Rect(0, 0, 16, 16))
	for y := range 16 {
		for x := range 16 {
			img.Set(x, y, color.RGBA{R: 200, G: 100, B: 50, A: 255})
		}
	}
	return img
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()

	checkUpload := func(w http.ResponseWriter, r *http.Request) bool {
		file, header, err := r.FormFile("file")
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return false
		}
		defer file.Close()
		if ct := header.Header.Get("Content-Type"); ct != "image/jpeg" {
			http.Error(w, "unexpected content type "+ct, http.StatusBadRequest)
			return false
		}
		if _, err := jpeg.Decode(file); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return false
		}
		return true
	}

	mux.HandleFunc("POST /detect/objects", func(w http.ResponseWriter, r *http.Request) {
		if !checkUpload(w, r) {
			return
		}
		w.Write([]byte(`{"objects":[{"labels":[{"text":"Person","confidence":0.93},{"text":"Fashion good","confidence":0.4}]}]}`))
	})
	mux.HandleFunc("POST /detect/pose", func(w http.ResponseWriter, r *http.Request) {
		if !checkUpload(w, r) {
			return
		}
		w.Write([]byte(`{"landmarks":[{"x":10.5,"y":20},{"x":11,"y":21.25}]}`))
	})
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func TestClientDetect(t *testing.T) {
	server := newTestServer(t)
	c := NewClient(server.URL + "/")

	detections, err := c.Detect(context.Background(), testImage())
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	if !analysis.HasPerson(detections) {
		t.Errorf("expected a person in %+v", detections)
	}
	if got := detections[0].Labels[0].Confidence; got != 0.93 {
		t.Errorf("confidence = %v, want 0.93", got)
	}
}

func TestClientDetectPose(t *testing.T) {
	server := newTestServer(t)
	c := NewClient(server.URL)

	landmarks, err := c.DetectPose(context.Background(), testImage())
	if err != nil {
		t.Fatalf("DetectPose failed: %v", err)
	}
	if len(landmarks) != 2 {
		t.Fatalf("got %d landmarks, want 2", len(landmarks))
	}
	if landmarks[0].X != 10.5 || landmarks[1].Y != 21.25 {
		t.Errorf("unexpected landmarks %+v", landmarks)
	}
}

func TestClientHealth(t *testing.T) {
	server := newTestServer(t)
	if err := NewClient(server.URL).Health(context.Background()); err != nil {
		t.Errorf("Health failed: %v", err)
	}
}

func TestClientServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model crashed", http.StatusInternalServerError)
	}))
	defer server.Close()

	c := NewClient(server.URL)
	if _, err := c.Detect(context.Background(), testImage()); err == nil {
		t.Error("expected error for 500 response")
	}
	if err := c.Health(context.Background()); err == nil {
		t.Error("expected unhealthy detector")
	}
}

func TestNone(t *testing.T) {
	var d None
	detections, err := d.Detect(context.Background(), testImage())
	if err != nil || analysis.HasPerson(detections) {
		t.Errorf("Detect() = %v, %v", detections, err)
	}
	landmarks, err := d.DetectPose(context.Background(), testImage())
	if err != nil || len(landmarks) != 0 {
		t.Errorf("DetectPose() = %v, %v", landmarks, err)
	}
}
