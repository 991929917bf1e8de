// Package assets talks to the hosted image service and coordinates
// multi-asset uploads with compensating deletes.
package assets

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

// Asset is one uploaded remote object. DeleteHandle is the opaque id the
// image service accepts for deletion; it is stored alongside the URL so
// profile updates can clean up superseded assets.
type Asset struct {
	Role         string
	URL          string
	DeleteHandle string
}

// Storage is the remote object-storage contract consumed by the coordinator
// and the profile-update handlers.
type Storage interface {
	Upload(ctx context.Context, localPath string) (url, deleteHandle string, err error)
	Delete(ctx context.Context, deleteHandle string) error
}

type uploadResponse struct {
	URL      string `json:"url"`
	PublicID string `json:"public_id"`
}

// Client uploads to a cloudinary-style hosted image endpoint.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: timeout},
	}
}

func (c *Client) Upload(ctx context.Context, localPath string) (string, string, error) {
	file, err := os.Open(localPath)
	if err != nil {
		return "", "", fmt.Errorf("open %s: %w", localPath, err)
	}
	defer file.Close()

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		part, err := mw.CreateFormFile("file", filepath.Base(localPath))
		if err != nil {
			pw.CloseWithError(err)
			return
		}
		if _, err := io.Copy(part, file); err != nil {
			pw.CloseWithError(err)
			return
		}
		pw.CloseWithError(mw.Close())
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/upload", pr)
	if err != nil {
		return "", "", err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", "", fmt.Errorf("upload request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", "", fmt.Errorf("upload failed: status %d: %s", resp.StatusCode, body)
	}

	var out uploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", "", fmt.Errorf("decode upload response: %w", err)
	}
	if out.URL == "" || out.PublicID == "" {
		return "", "", fmt.Errorf("upload response missing url or public_id")
	}
	return out.URL, out.PublicID, nil
}

func (c *Client) Delete(ctx context.Context, deleteHandle string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+"/assets/"+deleteHandle, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("delete request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusNotFound {
		return fmt.Errorf("delete failed: status %d", resp.StatusCode)
	}
	return nil
}
