package assets

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestClientUpload(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/upload" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
		}
		if _, _, err := r.FormFile("file"); err != nil {
			t.Errorf("missing file part: %v", err)
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"url":"https://images.example.com/abc.png","public_id":"abc"}`))
	}))
	defer server.Close()

	path := filepath.Join(t.TempDir(), "avatar.png")
	if err := os.WriteFile(path, []byte("img"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	client := NewClient(server.URL, "test-key", 5*time.Second)
	url, handle, err := client.Upload(context.Background(), path)
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if url != "https://images.example.com/abc.png" || handle != "abc" {
		t.Fatalf("unexpected result: %q %q", url, handle)
	}
	if gotAuth != "Bearer test-key" {
		t.Fatalf("expected bearer auth, got %q", gotAuth)
	}
}

func TestClientUploadRemoteError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	path := filepath.Join(t.TempDir(), "avatar.png")
	if err := os.WriteFile(path, []byte("img"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	client := NewClient(server.URL, "test-key", 5*time.Second)
	if _, _, err := client.Upload(context.Background(), path); err == nil {
		t.Fatalf("expected upload error")
	}
}

func TestClientDelete(t *testing.T) {
	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-key", 5*time.Second)
	if err := client.Delete(context.Background(), "abc"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if gotPath != "/assets/abc" {
		t.Fatalf("unexpected path %q", gotPath)
	}
}

func TestClientDeleteGoneIsOK(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-key", 5*time.Second)
	// Deleting an already-deleted asset must not fail a rollback.
	if err := client.Delete(context.Background(), "gone"); err != nil {
		t.Fatalf("delete: %v", err)
	}
}
