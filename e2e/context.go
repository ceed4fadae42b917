package e2e

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

// TestContext holds the state of one scenario: the last response and the
// values saved between steps.
type TestContext struct {
	baseURL string
	client  *http.Client
	runID   string

	lastStatus int
	lastBody   []byte
	saved      map[string]any
}

// NewTestContext creates a context against baseURL. runID keeps record ids
// unique across runs against the same databases.
func NewTestContext(baseURL, runID string) *TestContext {
	return &TestContext{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 10 * time.Second},
		runID:   runID,
		saved:   make(map[string]any),
	}
}

// Reset clears per-scenario state.
func (tc *TestContext) Reset() {
	tc.lastStatus = 0
	tc.lastBody = nil
	tc.saved = make(map[string]any)
}

// ID scopes a record id to this run.
func (tc *TestContext) ID(alias string) string {
	return alias + "-" + tc.runID
}

func (tc *TestContext) GET(path string) error {
	return tc.do(http.MethodGet, path, nil)
}

func (tc *TestContext) POST(path string, body interface{}) error {
	return tc.do(http.MethodPost, path, body)
}

func (tc *TestContext) POSTRaw(path, body string) error {
	return tc.send(http.MethodPost, path, strings.NewReader(body))
}

func (tc *TestContext) DELETE(path string) error {
	return tc.do(http.MethodDelete, path, nil)
}

func (tc *TestContext) do(method, path string, body interface{}) error {
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
		r = bytes.NewReader(b)
	}
	return tc.send(method, path, r)
}

func (tc *TestContext) send(method, path string, body io.Reader) error {
	req, err := http.NewRequestWithContext(context.Background(), method, tc.baseURL+path, body)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := tc.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	tc.lastStatus = resp.StatusCode
	tc.lastBody, err = io.ReadAll(resp.Body)
	return err
}

func (tc *TestContext) GetLastStatus() int {
	return tc.lastStatus
}

func (tc *TestContext) GetLastBody() []byte {
	return tc.lastBody
}

// GetResponseField reads a top-level field of the last JSON response.
// Numbers come back as json.Number.
func (tc *TestContext) GetResponseField(field string) (interface{}, error) {
	dec := json.NewDecoder(bytes.NewReader(tc.lastBody))
	dec.UseNumber()
	var body map[string]interface{}
	if err := dec.Decode(&body); err != nil {
		return nil, fmt.Errorf("response is not a JSON object: %s", tc.lastBody)
	}
	v, ok := body[field]
	if !ok {
		return nil, fmt.Errorf("response has no field %q: %s", field, tc.lastBody)
	}
	return v, nil
}

func (tc *TestContext) Save(key string, value any) {
	tc.saved[key] = value
}

func (tc *TestContext) Saved(key string) (any, bool) {
	v, ok := tc.saved[key]
	return v, ok
}
