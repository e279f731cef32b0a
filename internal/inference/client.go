package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Client is an HTTP client for the model runner's JSON API.
type Client struct {
	baseURL string
	client  *http.Client
}

// NewClient creates a runner client. The timeout bounds every call,
// including generation.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

// Health pings the runner. A connection failure maps to ErrDependencyMissing
// so callers can distinguish "runner absent" from other faults.
func (c *Client) Health(ctx context.Context) (*HealthInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/health", nil)
	if err != nil {
		return nil, fmt.Errorf("inference: build health request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDependencyMissing, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: health returned %d", ErrDependencyMissing, resp.StatusCode)
	}
	var info HealthInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("inference: decode health response: %w", err)
	}
	return &info, nil
}

// Load asks the runner to load the model described by req. Loading is
// idempotent on the runner side; repeated loads of the same model return
// the same model ID.
func (c *Client) Load(ctx context.Context, req LoadRequest) (*LoadResult, error) {
	var result LoadResult
	if err := c.post(ctx, "/v1/models/load", req, &result); err != nil {
		return nil, err
	}
	if result.ModelID == "" {
		return nil, fmt.Errorf("inference: load %s: runner returned no model id", req.Repo)
	}
	return &result, nil
}

// Model returns an Engine bound to a loaded model ID.
func (c *Client) Model(modelID string) Engine {
	return &modelEngine{client: c, modelID: modelID}
}

// post sends a JSON request and decodes the JSON response into out.
func (c *Client) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("inference: marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("inference: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("inference: %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("inference: %s returned %d: %s", path, resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("inference: decode %s response: %w", path, err)
	}
	return nil
}

// modelEngine implements Engine over the runner API for one model.
type modelEngine struct {
	client  *Client
	modelID string
}

type tokenizeRequest struct {
	Model string `json:"model"`
	Text  string `json:"text"`
}

type tokenizeResponse struct {
	IDs []int `json:"ids"`
}

func (e *modelEngine) Tokenize(ctx context.Context, text string) ([]int, error) {
	var resp tokenizeResponse
	if err := e.client.post(ctx, "/v1/tokenize", tokenizeRequest{Model: e.modelID, Text: text}, &resp); err != nil {
		return nil, err
	}
	return resp.IDs, nil
}

type generateRequest struct {
	Model    string    `json:"model"`
	InputIDs []int     `json:"input_ids"`
	Params   GenParams `json:"params"`
}

type generateResponse struct {
	OutputIDs []int `json:"output_ids"`
}

func (e *modelEngine) Generate(ctx context.Context, ids []int, params GenParams) ([]int, error) {
	var resp generateResponse
	if err := e.client.post(ctx, "/v1/generate", generateRequest{Model: e.modelID, InputIDs: ids, Params: params}, &resp); err != nil {
		return nil, err
	}
	return resp.OutputIDs, nil
}

type decodeRequest struct {
	Model             string `json:"model"`
	IDs               []int  `json:"ids"`
	SkipSpecialTokens bool   `json:"skip_special_tokens"`
}

type decodeResponse struct {
	Text string `json:"text"`
}

func (e *modelEngine) Decode(ctx context.Context, ids []int) (string, error) {
	var resp decodeResponse
	req := decodeRequest{Model: e.modelID, IDs: ids, SkipSpecialTokens: true}
	if err := e.client.post(ctx, "/v1/decode", req, &resp); err != nil {
		return "", err
	}
	return resp.Text, nil
}
