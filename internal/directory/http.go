package directory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
)

// HTTPClient talks to the device registry over its REST API.
type HTTPClient struct {
	APIKey     string
	BaseURL    string
	HTTPClient *http.Client
}

// NewHTTPClient returns a registry client that uses the given API key and base URL.
func NewHTTPClient(apiKey, baseURL string) *HTTPClient {
	return &HTTPClient{
		APIKey:     apiKey,
		BaseURL:    baseURL,
		HTTPClient: &http.Client{Timeout: defaultTimeout},
	}
}

// GetDevice returns the registry record for the given serial number.
func (c *HTTPClient) GetDevice(ctx context.Context, serialNumber string) (*DeviceRecord, error) {
	resp, err := c.do(ctx, http.MethodGet, "/devices/"+url.PathEscape(serialNumber), nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, ErrDeviceNotFound
	default:
		return nil, statusError(resp)
	}
	var rec DeviceRecord
	if err := json.NewDecoder(resp.Body).Decode(&rec); err != nil {
		return nil, fmt.Errorf("%w: decode device record: %v", ErrRPC, err)
	}
	return &rec, nil
}

// MoveDeviceToOrgUnit moves the device into orgUnit.
func (c *HTTPClient) MoveDeviceToOrgUnit(ctx context.Context, chromeDeviceID, orgUnit string) error {
	body := map[string]string{"orgUnitPath": orgUnit}
	resp, err := c.do(ctx, http.MethodPost, "/devices/"+url.PathEscape(chromeDeviceID)+"/move", body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	switch resp.StatusCode {
	case http.StatusOK, http.StatusNoContent:
		return nil
	case http.StatusForbidden:
		// The registry rejects moves into the guest OU when guest mode is
		// disabled domain-wide.
		return ErrGuestModeDisabled
	case http.StatusNotFound:
		return ErrDeviceNotFound
	default:
		return statusError(resp)
	}
}

// GivenName returns the display given name for userEmail.
func (c *HTTPClient) GivenName(ctx context.Context, userEmail string) (string, error) {
	resp, err := c.do(ctx, http.MethodGet, "/users/"+url.PathEscape(userEmail)+"/name", nil)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", statusError(resp)
	}
	var out struct {
		GivenName string `json:"givenName"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("%w: decode name: %v", ErrRPC, err)
	}
	return out.GivenName, nil
}

func (c *HTTPClient) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	if c.APIKey == "" {
		return nil, fmt.Errorf("%w: API key not configured", ErrRPC)
	}
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", c.APIKey)
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRPC, err)
	}
	return resp, nil
}

func statusError(resp *http.Response) error {
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return fmt.Errorf("%w: status=%d body=%s", ErrRPC, resp.StatusCode, string(b))
}
