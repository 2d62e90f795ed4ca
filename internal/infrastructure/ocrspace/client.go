package ocrspace

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/discounthunter/backend/internal/domain"
)

// DefaultBaseURL is the OCR.space parse endpoint
const DefaultBaseURL = "https://api.ocr.space/parse/image"

const maxResponseBytes = 1 << 20

// parseResponse is the subset of the OCR.space reply we read
type parseResponse struct {
	ParsedResults []struct {
		ParsedText string `json:"ParsedText"`
	} `json:"ParsedResults"`
	IsErroredOnProcessing bool            `json:"IsErroredOnProcessing"`
	ErrorMessage          json.RawMessage `json:"ErrorMessage"`
}

// Client handles communication with the OCR.space API
type Client struct {
	httpClient *http.Client
	apiKey     string
	baseURL    string
	language   string
}

// NewClient creates a new OCR.space client
func NewClient(apiKey, baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		// Deadlines come from the request context
		httpClient: &http.Client{},
		apiKey:     apiKey,
		baseURL:    baseURL,
		language:   "eng",
	}
}

// Recognize uploads an image and returns the recognised text of every page joined by newlines
func (c *Client) Recognize(ctx context.Context, filename string, image []byte) (string, error) {
	if filename == "" {
		filename = "image.jpg"
	}

	body, contentType, err := c.buildForm(filename, image)
	if err != nil {
		return "", fmt.Errorf("build upload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, body)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrOCRFailure, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", fmt.Errorf("%w: read response: %v", domain.ErrOCRFailure, err)
	}

	if resp.StatusCode != http.StatusOK {
		log.Printf("[OCR] Provider error - Status: %d, Body: %s", resp.StatusCode, string(raw))
		return "", fmt.Errorf("%w: status %d", domain.ErrOCRFailure, resp.StatusCode)
	}

	var parsed parseResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("%w: failed to decode response: %v", domain.ErrOCRFailure, err)
	}
	if parsed.IsErroredOnProcessing {
		return "", fmt.Errorf("%w: %s", domain.ErrOCRFailure, string(parsed.ErrorMessage))
	}

	texts := make([]string, 0, len(parsed.ParsedResults))
	for _, r := range parsed.ParsedResults {
		texts = append(texts, r.ParsedText)
	}
	text := strings.TrimSpace(strings.Join(texts, "\n"))

	log.Printf("[OCR] Recognised %d characters from %s", len(text), filename)
	return text, nil
}

func (c *Client) buildForm(filename string, image []byte) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	if err := w.WriteField("apikey", c.apiKey); err != nil {
		return nil, "", err
	}
	if err := w.WriteField("language", c.language); err != nil {
		return nil, "", err
	}
	part, err := w.CreateFormFile("file", filename)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(image); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}
