package extraction

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/Amsanan/elterngeld-wizard-61894-sub000/internal/form"
	"github.com/Amsanan/elterngeld-wizard-61894-sub000/internal/mapping"
)

const (
	// DefaultMaxAttempts bounds the retry loop against the collaborators.
	DefaultMaxAttempts = 3
	// defaultBackoff is the first retry delay; it doubles per attempt.
	defaultBackoff = 500 * time.Millisecond
	// defaultTimeout caps one collaborator round trip.
	defaultTimeout = 60 * time.Second
)

// Error wraps a collaborator failure with enough context to retry or
// skip the affected step. It is scoped to one request and never aborts
// the workflow as a whole.
type Error struct {
	Operation    string
	DocumentType string
	Attempts     int
	Err          error
}

func (e *Error) Error() string {
	return fmt.Sprintf("extraction collaborator %s failed for %s after %d attempts: %v",
		e.Operation, e.DocumentType, e.Attempts, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// ExtractRequest asks the extraction service to read one raw document.
type ExtractRequest struct {
	DocumentType  string `json:"document_type"`
	Discriminator string `json:"discriminator,omitempty"`
	Content       string `json:"content"` // base64 document bytes
}

// ExtractResult is the extraction service's response: a flat value bag
// plus per-field confidence scores.
type ExtractResult struct {
	Fields           map[string]any     `json:"fields"`
	ConfidenceScores map[string]float64 `json:"confidence_scores"`
}

// classifyRequest sends field geometry to the semantic classifier.
type classifyRequest struct {
	Fields []FieldGeometry `json:"fields"`
}

// FieldGeometry is the classifier's view of one template field.
type FieldGeometry struct {
	DestinationFieldName string            `json:"destination_field_name"`
	Page                 int               `json:"page"`
	Bounds               *form.BoundingBox `json:"bounds,omitempty"`
}

// classifyResponse wraps the classifier's result list.
type classifyResponse struct {
	Results []mapping.ClassifierResult `json:"results"`
}

// Client calls the extraction and classifier collaborators with bounded
// exponential backoff.
type Client struct {
	extractionURL string
	classifierURL string
	maxAttempts   int
	backoff       time.Duration
	httpClient    *http.Client
}

// NewClient creates a collaborator client. maxAttempts values below one
// fall back to the default.
func NewClient(extractionURL, classifierURL string, maxAttempts int) *Client {
	if maxAttempts < 1 {
		maxAttempts = DefaultMaxAttempts
	}
	return &Client{
		extractionURL: extractionURL,
		classifierURL: classifierURL,
		maxAttempts:   maxAttempts,
		backoff:       defaultBackoff,
		httpClient:    &http.Client{Timeout: defaultTimeout},
	}
}

// Extract submits raw document bytes and returns the extracted row.
func (c *Client) Extract(ctx context.Context, documentType, discriminator string, content []byte) (*ExtractResult, error) {
	req := ExtractRequest{
		DocumentType:  documentType,
		Discriminator: discriminator,
		Content:       base64.StdEncoding.EncodeToString(content),
	}

	var result ExtractResult
	if attempts, err := c.post(ctx, c.extractionURL, req, &result); err != nil {
		return nil, &Error{
			Operation:    "extract",
			DocumentType: documentType,
			Attempts:     attempts,
			Err:          err,
		}
	}
	if result.Fields == nil {
		result.Fields = make(map[string]any)
	}
	return &result, nil
}

// Classify submits template field geometry and returns the classifier's
// semantic labels, ready to feed into the mapping resolver.
func (c *Client) Classify(ctx context.Context, fields []FieldGeometry) ([]mapping.ClassifierResult, error) {
	var resp classifyResponse
	if attempts, err := c.post(ctx, c.classifierURL, classifyRequest{Fields: fields}, &resp); err != nil {
		return nil, &Error{
			Operation:    "classify",
			DocumentType: "template",
			Attempts:     attempts,
			Err:          err,
		}
	}
	return resp.Results, nil
}

// post performs one JSON round trip with retries and reports how many
// attempts were actually made. The backoff doubles per attempt; context
// cancellation ends the loop early.
func (c *Client) post(ctx context.Context, url string, body, out any) (int, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return 0, fmt.Errorf("failed to encode request: %w", err)
	}

	var lastErr error
	delay := c.backoff
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return attempt - 1, ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
		}

		lastErr = c.doPost(ctx, url, payload, out)
		if lastErr == nil {
			return attempt, nil
		}
	}
	return c.maxAttempts, lastErr
}

func (c *Client) doPost(ctx context.Context, url string, payload []byte, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
