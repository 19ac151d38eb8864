package resume

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"internmatch/internal/models"
)

// OCRClient talks to the external resume-extraction service. The
// service contract is a stable JSON boundary: a multipart POST of the
// file returns {"ocrDraft": {skills, certifications, projects,
// education}}.
type OCRClient struct {
	baseURL string
	client  *http.Client
}

// NewOCRClient creates an OCRClient targeting the given base URL.
func NewOCRClient(baseURL string) *OCRClient {
	return &OCRClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 2 * time.Minute},
	}
}

type ocrResponse struct {
	OcrDraft models.OCRDraft `json:"ocrDraft"`
}

// Extract posts the resume file to the extraction service and returns
// the draft it produced.
func (c *OCRClient) Extract(ctx context.Context, filename, mime string, data []byte) (models.OCRDraft, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return models.OCRDraft{}, fmt.Errorf("failed to build multipart body: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return models.OCRDraft{}, fmt.Errorf("failed to write file part: %w", err)
	}
	if err := writer.Close(); err != nil {
		return models.OCRDraft{}, fmt.Errorf("failed to finish multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/extract/", &body)
	if err != nil {
		return models.OCRDraft{}, fmt.Errorf("failed to build OCR request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.client.Do(req)
	if err != nil {
		return models.OCRDraft{}, fmt.Errorf("OCR service unavailable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return models.OCRDraft{}, fmt.Errorf("OCR service returned status %d", resp.StatusCode)
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return models.OCRDraft{}, fmt.Errorf("failed to read OCR response: %w", err)
	}

	var out ocrResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return models.OCRDraft{}, fmt.Errorf("failed to decode OCR response: %w", err)
	}
	return out.OcrDraft, nil
}
