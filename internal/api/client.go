package api

import (
	"bytes"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

// Client is the HTTP client used by the log-shipping agent to talk to the
// service.
type Client struct {
	baseURL    string
	userID     string
	httpClient *http.Client
}

// UploadOutcome is the parsed response to a log upload.
type UploadOutcome struct {
	Success     bool   `json:"success"`
	IsDuplicate bool   `json:"isDuplicate"`
	LogFileID   uint   `json:"logFileId"`
	Message     string `json:"message"`
	Error       string `json:"error"`
}

// NewClient creates an API client bound to one user identity.
func NewClient(baseURL, userID string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		userID:     userID,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

// Healthcheck checks if the service is reachable.
func (c *Client) Healthcheck() error {
	resp, err := c.httpClient.Get(c.baseURL + "/healthcheck")
	if err != nil {
		return fmt.Errorf("healthcheck request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("healthcheck returned status %d", resp.StatusCode)
	}
	return nil
}

// Upload sends one log file as a multipart form. A duplicate upload is
// reported through the outcome, not as an error.
func (c *Client) Upload(filename string, content []byte) (UploadOutcome, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return UploadOutcome{}, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(content); err != nil {
		return UploadOutcome{}, fmt.Errorf("failed to write form file: %w", err)
	}
	if err := writer.Close(); err != nil {
		return UploadOutcome{}, fmt.Errorf("failed to finalize form: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, c.baseURL+"/api/v1/logs", body)
	if err != nil {
		return UploadOutcome{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set(userIDHeader, c.userID)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return UploadOutcome{}, fmt.Errorf("upload request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return UploadOutcome{}, fmt.Errorf("failed to read response: %w", err)
	}

	var outcome UploadOutcome
	if err := json.Unmarshal(raw, &outcome); err != nil {
		return UploadOutcome{}, fmt.Errorf("upload returned status %d with unreadable body", resp.StatusCode)
	}

	switch resp.StatusCode {
	case http.StatusCreated, http.StatusOK:
		return outcome, nil
	default:
		return outcome, fmt.Errorf("upload returned status %d: %s", resp.StatusCode, outcome.Error)
	}
}
