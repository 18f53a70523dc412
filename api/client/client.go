package client

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/aouyang1/photobooth/api/models"
)

type BoothClient struct {
	baseURL string
	client  *http.Client
}

func NewBoothClient(baseURL string) *BoothClient {
	return &BoothClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

func (bc *BoothClient) get(path string, out any) error {
	url := fmt.Sprintf("%s%s", bc.baseURL, path)
	req, err := http.NewRequest("GET", url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := bc.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var errResp models.ErrorResponse
		if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error != "" {
			return fmt.Errorf("server error: %s", errResp.Error)
		}
		return fmt.Errorf("server returned status %d: %s", resp.StatusCode, string(body))
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

// ListExports returns one page of exported collages, newest first.
func (bc *BoothClient) ListExports(page, limit int) (*models.ExportListResponse, error) {
	var resp models.ExportListResponse
	if err := bc.get(fmt.Sprintf("/exports?page=%d&limit=%d", page, limit), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Layouts returns the layout catalog with the frames of each layout.
func (bc *BoothClient) Layouts() ([]models.LayoutResponse, error) {
	var resp []models.LayoutResponse
	if err := bc.get("/layouts", &resp); err != nil {
		return nil, err
	}
	return resp, nil
}
