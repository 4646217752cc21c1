// Package client is the Go client for the gateway API. It serves the
// practice CLI but is usable by anything that wants to drive an
// attempt programmatically.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/reha-link/rehalink-platform/internal/assignment"
)

var ErrUnavailable = errors.New("gateway unavailable")

type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if strings.TrimSpace(e.Message) == "" {
		return fmt.Sprintf("request failed with status %d", e.StatusCode)
	}
	return e.Message
}

// HTTPClient implements assignment.Source and the session backend over
// the gateway's patient endpoints.
type HTTPClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

func NewHTTPClient(baseURL string, httpClient *http.Client) *HTTPClient {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = "http://127.0.0.1:8080"
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &HTTPClient{baseURL: baseURL, httpClient: httpClient}
}

// Login obtains and retains a bearer token for subsequent calls.
func (c *HTTPClient) Login(ctx context.Context, username, password string) (role string, err error) {
	var resp struct {
		AccessToken string `json:"access_token"`
		Role        string `json:"role"`
	}
	err = c.doJSON(ctx, http.MethodPost, "/auth/login",
		map[string]string{"username": username, "password": password}, &resp)
	if err != nil {
		return "", err
	}
	c.token = resp.AccessToken
	return resp.Role, nil
}

func (c *HTTPClient) ListAssigned(ctx context.Context, topic int) ([]assignment.Summary, error) {
	path := "/patient/assignments"
	if topic > 0 {
		path += "?topic=" + strconv.Itoa(topic)
	}
	var out []assignment.Summary
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *HTTPClient) GetV2(ctx context.Context, id int64) (assignment.V2Payload, error) {
	var p assignment.V2Payload
	err := c.doJSON(ctx, http.MethodGet, "/patient/assignments/v2/"+strconv.FormatInt(id, 10), nil, &p)
	return p, err
}

func (c *HTTPClient) GetLegacy(ctx context.Context, id int64) (assignment.LegacyPayload, error) {
	var p assignment.LegacyPayload
	err := c.doJSON(ctx, http.MethodGet, "/patient/assignments/"+strconv.FormatInt(id, 10), nil, &p)
	return p, err
}

func (c *HTTPClient) Start(ctx context.Context, assignmentID int64) (string, error) {
	var resp struct {
		RecordID string `json:"record_id"`
	}
	err := c.doJSON(ctx, http.MethodPost, recordPath(assignmentID, "start"), map[string]any{}, &resp)
	return resp.RecordID, err
}

func (c *HTTPClient) SaveChoice(ctx context.Context, assignmentID, itemID int64, choiceIndex int, isCorrect bool) error {
	return c.doJSON(ctx, http.MethodPost, recordPath(assignmentID, "mcq"), map[string]any{
		"item_id":      itemID,
		"choice_index": choiceIndex,
		"is_correct":   isCorrect,
	}, nil)
}

func (c *HTTPClient) SaveWriting(ctx context.Context, assignmentID, itemID int64, text string) error {
	return c.doJSON(ctx, http.MethodPost, recordPath(assignmentID, "writing"), map[string]any{
		"item_id":     itemID,
		"answer_text": text,
	}, nil)
}

func (c *HTTPClient) Finish(ctx context.Context, assignmentID int64, score *int) error {
	return c.doJSON(ctx, http.MethodPost, recordPath(assignmentID, "finish"), map[string]any{
		"score": score,
	}, nil)
}

func recordPath(assignmentID int64, op string) string {
	return "/patient/records/" + strconv.FormatInt(assignmentID, 10) + "/" + op
}

func (c *HTTPClient) doJSON(ctx context.Context, method, path string, requestBody any, responseBody any) error {
	var body io.Reader
	if requestBody != nil {
		encoded, err := json.Marshal(requestBody)
		if err != nil {
			return err
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if requestBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		apiErr := APIError{StatusCode: resp.StatusCode}
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		if s := strings.TrimSpace(string(msg)); s != "" {
			apiErr.Message = s
		} else {
			apiErr.Message = resp.Status
		}
		return &apiErr
	}
	if responseBody == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(responseBody)
}
