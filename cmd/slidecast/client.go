package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"slidecast/internal/daemon"
	"slidecast/internal/render"
)

type apiClient struct {
	base string
	http *http.Client
}

func newAPIClient(addr string) (*apiClient, error) {
	trimmed := strings.TrimSpace(addr)
	if trimmed == "" {
		return nil, errors.New("daemon API address is not configured (set paths.api_bind or pass --api)")
	}
	if !strings.Contains(trimmed, "://") {
		trimmed = "http://" + trimmed
	}
	return &apiClient{
		base: strings.TrimRight(trimmed, "/"),
		http: &http.Client{Timeout: 30 * time.Second},
	}, nil
}

type statusResponse struct {
	daemon.Status
	Recent []daemon.JobRecord `json:"recent_jobs"`
}

func (c *apiClient) Submit(ctx context.Context, job *render.Job) (string, error) {
	body, err := json.Marshal(job)
	if err != nil {
		return "", fmt.Errorf("encode job: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/api/render", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	var resp struct {
		ID string `json:"id"`
	}
	if err := c.do(req, http.StatusAccepted, &resp); err != nil {
		return "", err
	}
	return resp.ID, nil
}

func (c *apiClient) Job(ctx context.Context, id string) (*daemon.JobRecord, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/api/render/"+id, nil)
	if err != nil {
		return nil, err
	}
	var record daemon.JobRecord
	if err := c.do(req, http.StatusOK, &record); err != nil {
		return nil, err
	}
	return &record, nil
}

func (c *apiClient) Status(ctx context.Context) (*statusResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/api/status", nil)
	if err != nil {
		return nil, err
	}
	var status statusResponse
	if err := c.do(req, http.StatusOK, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

func (c *apiClient) do(req *http.Request, wantStatus int, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("is the daemon running? %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != wantStatus {
		return errorFromResponse(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func errorFromResponse(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(data, &payload); err == nil && payload.Error != "" {
		return fmt.Errorf("daemon: %s", payload.Error)
	}
	return fmt.Errorf("daemon returned %s", resp.Status)
}
