package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ComfyBackend talks to a local ComfyUI wrapper server that exposes a
// one-shot generation endpoint and a memory-release endpoint.
type ComfyBackend struct {
	client  *http.Client
	baseURL string
}

func NewComfyBackend(client *http.Client, baseURL string) *ComfyBackend {
	if client == nil {
		client = http.DefaultClient
	}
	if baseURL == "" {
		baseURL = "http://localhost:8000"
	}
	return &ComfyBackend{client: client, baseURL: baseURL}
}

// IsAvailable probes the server root.
func (b *ComfyBackend) IsAvailable(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.baseURL, nil)
	if err != nil {
		return false
	}
	resp, err := b.client.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

type comfyGenerateRequest struct {
	Prompt  string `json:"prompt"`
	Width   int    `json:"width"`
	Height  int    `json:"height"`
	Quality string `json:"quality"`
}

// Generate renders one image and returns its bytes. The server is asked
// to release model memory afterwards so the chat model can reload.
func (b *ComfyBackend) Generate(ctx context.Context, prompt string, opts ImageOptions) ([]byte, error) {
	payload, err := json.Marshal(comfyGenerateRequest{
		Prompt:  prompt,
		Width:   opts.Width,
		Height:  opts.Height,
		Quality: opts.Quality,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+"/generate", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("image generation request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("image generation returned status %d", resp.StatusCode)
	}

	image, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading generated image: %w", err)
	}

	if err := b.free(ctx); err != nil {
		// Generation succeeded; a failed release only costs memory.
		return image, nil
	}
	return image, nil
}

// free asks the server to unload models and give memory back, then waits
// for the release to take effect.
func (b *ComfyBackend) free(ctx context.Context) error {
	payload := []byte(`{"unload_models":true,"free_memory":true}`)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+"/free", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()

	select {
	case <-time.After(3 * time.Second):
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}
