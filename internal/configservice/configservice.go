// Package configservice is the HTTP client for the external config
// service that owns workspaces, dimensions, experiments (releases), and
// default_config (properties), per §6.
package configservice

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/skyline-ota/releasectl/internal/domain"
	"github.com/skyline-ota/releasectl/internal/domainerrors"
)

// Client talks to the external config service over HTTP.
type Client struct {
	baseURL    string
	authToken  string
	workspace  string
	httpClient *http.Client
	maxRetries int
}

// Config carries the subset of internal/config.ConfigServiceConfig the
// client needs; kept decoupled from the config package to avoid an
// import cycle.
type Config struct {
	BaseURL    string
	AuthToken  string
	Workspace  string
	Timeout    time.Duration
	MaxRetries int
}

// New builds a Client.
func New(cfg Config) *Client {
	return &Client{
		baseURL:    cfg.BaseURL,
		authToken:  cfg.AuthToken,
		workspace:  cfg.Workspace,
		maxRetries: cfg.MaxRetries,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

// CreateWorkspace implements §6 create_workspace.
func (c *Client) CreateWorkspace(ctx context.Context, org, app string) error {
	return c.do(ctx, http.MethodPost, fmt.Sprintf("/organisations/%s/applications/%s/workspaces", org, app), nil, nil)
}

// ListDimensions implements §6 dimension list.
func (c *Client) ListDimensions(org, app string, page, count int) ([]domain.Dimension, error) {
	var out []domain.Dimension
	path := fmt.Sprintf("/organisations/%s/applications/%s/dimension?page=%d&count=%d", org, app, page, count)
	if err := c.do(context.Background(), http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetDimension implements §6 dimension get.
func (c *Client) GetDimension(org, app, name string) (domain.Dimension, error) {
	var out domain.Dimension
	path := fmt.Sprintf("/organisations/%s/applications/%s/dimension/%s", org, app, name)
	if err := c.do(context.Background(), http.MethodGet, path, nil, &out); err != nil {
		return domain.Dimension{}, err
	}
	return out, nil
}

// CreateDimension implements §6 dimension create.
func (c *Client) CreateDimension(org, app string, d domain.Dimension) error {
	path := fmt.Sprintf("/organisations/%s/applications/%s/dimension", org, app)
	return c.do(context.Background(), http.MethodPost, path, d, nil)
}

// UpdateDimension implements §6 dimension update.
func (c *Client) UpdateDimension(org, app, name string, position *int, changeReason string) error {
	path := fmt.Sprintf("/organisations/%s/applications/%s/dimension/%s", org, app, name)
	body := map[string]any{"position": position, "change_reason": changeReason}
	return c.do(context.Background(), http.MethodPatch, path, body, nil)
}

// DeleteDimension implements §6 dimension delete.
func (c *Client) DeleteDimension(org, app, name string) error {
	path := fmt.Sprintf("/organisations/%s/applications/%s/dimension/%s", org, app, name)
	return c.do(context.Background(), http.MethodDelete, path, nil, nil)
}

// WeightRecompute implements §6 dimension weight_recompute.
func (c *Client) WeightRecompute(org, app string) error {
	path := fmt.Sprintf("/organisations/%s/applications/%s/dimension/weight_recompute", org, app)
	return c.do(context.Background(), http.MethodPost, path, nil, nil)
}

// ListProperties implements §6 default_config list.
func (c *Client) ListProperties(org, app string) ([]domain.Property, error) {
	var out []domain.Property
	path := fmt.Sprintf("/organisations/%s/applications/%s/config/properties", org, app)
	if err := c.do(context.Background(), http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateProperty implements §6 default_config create.
func (c *Client) CreateProperty(org, app string, p domain.Property) error {
	path := fmt.Sprintf("/organisations/%s/applications/%s/config/properties", org, app)
	return c.do(context.Background(), http.MethodPost, path, p, nil)
}

// UpdateProperty implements §6 default_config update.
func (c *Client) UpdateProperty(org, app string, p domain.Property) error {
	path := fmt.Sprintf("/organisations/%s/applications/%s/config/properties/%s", org, app, p.Key)
	return c.do(context.Background(), http.MethodPut, path, p, nil)
}

// DeleteProperty implements §6 default_config delete.
func (c *Client) DeleteProperty(org, app, key string) error {
	path := fmt.Sprintf("/organisations/%s/applications/%s/config/properties/%s", org, app, key)
	return c.do(context.Background(), http.MethodDelete, path, nil, nil)
}

// CreateContext implements §6 create_context.
func (c *Client) CreateContext(org, app string, override map[string]any) (string, error) {
	var out struct {
		ContextID string `json:"context_id"`
	}
	path := fmt.Sprintf("/organisations/%s/applications/%s/context", org, app)
	if err := c.do(context.Background(), http.MethodPost, path, override, &out); err != nil {
		return "", err
	}
	return out.ContextID, nil
}

// CreateExperiment implements §6 experiment create: a control variant
// carrying the baseline overrides and an experimental variant carrying the
// new package+config overrides, scoped to contextID.
func (c *Client) CreateExperiment(org, app, contextID string, controlOverrides, experimentalOverrides map[string]any) (string, error) {
	var out struct {
		ExperimentID string `json:"experiment_id"`
	}
	path := fmt.Sprintf("/organisations/%s/applications/%s/experiment", org, app)
	body := map[string]any{
		"context_id": contextID,
		"variants": []map[string]any{
			{"id": "control", "type": "CONTROL", "overrides": controlOverrides},
			{"id": "experimental", "type": "EXPERIMENTAL", "overrides": experimentalOverrides},
		},
	}
	if err := c.do(context.Background(), http.MethodPost, path, body, &out); err != nil {
		return "", err
	}
	return out.ExperimentID, nil
}

// RampExperiment implements §6 experiment ramp.
func (c *Client) RampExperiment(org, app, experimentID string, trafficPercentage int) error {
	path := fmt.Sprintf("/organisations/%s/applications/%s/experiment/%s/ramp", org, app, experimentID)
	return c.do(context.Background(), http.MethodPatch, path, map[string]any{"traffic_percentage": trafficPercentage}, nil)
}

// ConcludeExperiment implements §6 experiment conclude.
func (c *Client) ConcludeExperiment(org, app, experimentID, winnerVariantID string) error {
	path := fmt.Sprintf("/organisations/%s/applications/%s/experiment/%s/conclude", org, app, experimentID)
	return c.do(context.Background(), http.MethodPatch, path, map[string]any{"winner_variant_id": winnerVariantID}, nil)
}

// ApplicableVariants implements §6 experiment applicable_variants.
func (c *Client) ApplicableVariants(org, app string, context map[string]any, toss int) ([]string, error) {
	var out []string
	path := fmt.Sprintf("/organisations/%s/applications/%s/experiment/applicable_variants?toss=%d", org, app, toss)
	if err := c.do(context.Background(), http.MethodPost, path, context, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Exists implements releaseview.DimensionLookup by delegating to
// GetDimension: a release view may only reference dimensions the
// workspace actually defines (§4.9).
func (c *Client) Exists(org, app, name string) (bool, error) {
	_, err := c.GetDimension(org, app, name)
	if err != nil {
		if errors.Is(err, domainerrors.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// GetResolvedConfig implements §6 get_resolved_config.
func (c *Client) GetResolvedConfig(org, app string, context map[string]any) (map[string]any, error) {
	var out map[string]any
	path := fmt.Sprintf("/organisations/%s/applications/%s/resolved_config", org, app)
	if err := c.do(context.Background(), http.MethodPost, path, context, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%w: %v", domainerrors.ErrInternal, err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("%w: %v", domainerrors.ErrInternal, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.authToken)
	}
	if c.workspace != "" {
		req.Header.Set("x-workspace", c.workspace)
	}

	var resp *http.Response
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		resp, lastErr = c.httpClient.Do(req)
		if lastErr == nil {
			break
		}
	}
	if lastErr != nil {
		return fmt.Errorf("%w: %v", domainerrors.ErrDependencyFailure, lastErr)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: %s %s", domainerrors.ErrNotFound, method, path)
	}
	if resp.StatusCode >= 400 && resp.StatusCode < 500 {
		return fmt.Errorf("%w: %s %s returned %d", domainerrors.ErrBadRequest, method, path, resp.StatusCode)
	}
	if resp.StatusCode >= 500 {
		return fmt.Errorf("%w: %s %s returned %d", domainerrors.ErrDependencyFailure, method, path, resp.StatusCode)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("%w: %v", domainerrors.ErrInternal, err)
		}
	}
	return nil
}
