// Package supermemory implements the write-only backup sink over the
// Supermemory document API. The board never reads anything back from
// it; forwarded documents exist for external disaster recovery only.
package supermemory

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/harrisonrobin/kanba/pkg/model"
)

const (
	DefaultBaseURL = "https://api.supermemory.ai/v3"
	apiKeyEnv      = "SUPERMEMORY_API_KEY"
)

var ErrNoAPIKey = errors.New("SUPERMEMORY_API_KEY not found")

// Client is a Supermemory API client.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a client with the given API key. The HTTP client
// carries a hard timeout so a stalled remote cannot block a board
// operation past the engine's own deadline.
func NewClient(apiKey string) *Client {
	return &Client{
		baseURL:    DefaultBaseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// WithBaseURL points the client at a different API endpoint.
func (c *Client) WithBaseURL(url string) *Client {
	c.baseURL = strings.TrimRight(url, "/")
	return c
}

// LoadAPIKey resolves the API key from the environment, falling back to
// the given keys.env file.
func LoadAPIKey(keysFile string) (string, error) {
	if key := os.Getenv(apiKeyEnv); key != "" {
		return key, nil
	}
	if keysFile != "" {
		if _, err := os.Stat(keysFile); err == nil {
			env, err := godotenv.Read(keysFile)
			if err != nil {
				return "", fmt.Errorf("failed to read %s: %w", keysFile, err)
			}
			if key := env[apiKeyEnv]; key != "" {
				return key, nil
			}
		}
	}
	return "", ErrNoAPIKey
}

type document struct {
	Content  string    `json:"content"`
	Metadata *metadata `json:"metadata,omitempty"`
}

type metadata struct {
	Tags []string `json:"tags,omitempty"`
}

// Store writes one document to the remote store. Only success or
// failure is consumed from the response.
func (c *Client) Store(ctx context.Context, content string, tags []string) error {
	content = strings.TrimSpace(content)
	if content == "" {
		return errors.New("document content cannot be empty")
	}

	doc := document{Content: content}
	if len(tags) > 0 {
		doc.Metadata = &metadata{Tags: tags}
	}
	body, err := json.Marshal(doc)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/documents", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("supermemory request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("supermemory API error: %s", resp.Status)
	}
	return nil
}

// Put forwards one task snapshot, tagged so external tooling can slice
// the backup by project, column, priority and task id.
func (c *Client) Put(ctx context.Context, t model.Task) error {
	return c.Store(ctx, taskContent(t), taskTags(t))
}

func taskContent(t model.Task) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Task: %s\n", t.Title)
	fmt.Fprintf(&b, "ID: %d\n", t.ID)
	fmt.Fprintf(&b, "Column: %s\n", t.Column)
	fmt.Fprintf(&b, "Priority: %s\n", t.Priority)
	fmt.Fprintf(&b, "Description: %s\n", t.Description)
	fmt.Fprintf(&b, "Status: %s", taskStatus(t, time.Now()))
	return b.String()
}

func taskTags(t model.Task) []string {
	tags := []string{
		"project-kanban",
		"task",
		"col-" + string(t.Column),
		"priority-" + string(t.Priority),
		fmt.Sprintf("task-%d", t.ID),
	}
	return append(tags, t.Tags...)
}

// taskStatus renders a human-readable workflow status for the document
// body.
func taskStatus(t model.Task, now time.Time) string {
	switch t.Column {
	case model.Done:
		if t.ActualHours != nil {
			return fmt.Sprintf("Completed in %.2fh", *t.ActualHours)
		}
		return "Completed"
	case model.Progress:
		if t.StartTime != nil {
			hours := now.Sub(t.StartTime.Time).Hours()
			return fmt.Sprintf("In progress (%.1fh)", hours)
		}
		return "In progress"
	case model.NextUp:
		return "Next up"
	default:
		return "Backlog"
	}
}
