package storage

import (
	"fmt"
	"mime/multipart"

	"github.com/go-resty/resty/v2"
)

// UploadResult describes an object stored by the media vault.
type UploadResult struct {
	PublicID string `json:"public_id"`
	URL      string `json:"secure_url"`
	Bytes    int64  `json:"bytes"`
	Format   string `json:"format"`
}

// Client is the object storage primitive used by the media upload
// coordinator. Implementations must be safe for concurrent use.
type Client interface {
	Upload(file *multipart.FileHeader, folder, resourceType string) (*UploadResult, error)
	Delete(publicID, resourceType string) error
}

type uploadResponse struct {
	Status  string       `json:"status"`
	Message string       `json:"message"`
	Data    UploadResult `json:"data"`
}

type deleteResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// HTTPClient talks to the media vault REST API.
type HTTPClient struct {
	client *resty.Client
}

// NewHTTPClient builds a storage client for the given base URL and credentials.
func NewHTTPClient(baseURL, apiKey, apiSecret string) *HTTPClient {
	c := resty.New().
		SetBaseURL(baseURL).
		SetBasicAuth(apiKey, apiSecret)
	return &HTTPClient{client: c}
}

// Upload streams the multipart file to the vault and returns the stored
// object's reference.
func (h *HTTPClient) Upload(file *multipart.FileHeader, folder, resourceType string) (*UploadResult, error) {
	src, err := file.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open upload %s: %v", file.Filename, err)
	}
	defer src.Close()

	var result uploadResponse
	resp, err := h.client.R().
		SetFileReader("file", file.Filename, src).
		SetFormData(map[string]string{
			"folder":        folder,
			"resource_type": resourceType,
		}).
		SetResult(&result).
		Post("/upload")
	if err != nil {
		return nil, fmt.Errorf("upload request failed: %v", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("upload failed with status %d: %s", resp.StatusCode(), resp.String())
	}

	return &result.Data, nil
}

// Delete removes an object by its public id.
func (h *HTTPClient) Delete(publicID, resourceType string) error {
	var result deleteResponse
	resp, err := h.client.R().
		SetFormData(map[string]string{
			"public_id":     publicID,
			"resource_type": resourceType,
		}).
		SetResult(&result).
		Post("/destroy")
	if err != nil {
		return fmt.Errorf("delete request failed: %v", err)
	}
	if resp.IsError() {
		return fmt.Errorf("delete failed with status %d: %s", resp.StatusCode(), resp.String())
	}
	return nil
}
