// Package geocode resolves street addresses with the Google Geocoding API.
package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

const DefaultEndpoint = "https://maps.googleapis.com/maps/api/geocode/json"

var (
	// ErrNoResults means the provider answered but knows no such address.
	ErrNoResults = errors.New("geocode: no results for address")
	// ErrUpstream covers transport failures and error statuses from the provider.
	ErrUpstream = errors.New("geocode: upstream failure")
)

type GoogleClient struct {
	apiKey   string
	endpoint string
	http     *http.Client
}

func NewGoogleClient(apiKey string, timeout time.Duration) *GoogleClient {
	return &GoogleClient{
		apiKey:   apiKey,
		endpoint: DefaultEndpoint,
		http:     &http.Client{Timeout: timeout},
	}
}

// WithEndpoint points the client at another base URL.
func (c *GoogleClient) WithEndpoint(endpoint string) *GoogleClient {
	c.endpoint = endpoint
	return c
}

type geocodeResponse struct {
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message"`
	Results      []struct {
		Geometry struct {
			Location struct {
				Lat float64 `json:"lat"`
				Lng float64 `json:"lng"`
			} `json:"location"`
		} `json:"geometry"`
	} `json:"results"`
}

func (c *GoogleClient) Geocode(ctx context.Context, address string) (float64, float64, error) {
	q := url.Values{}
	q.Set("address", address)
	q.Set("key", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: building request: %v", ErrUpstream, err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, 0, fmt.Errorf("%w: http status %d", ErrUpstream, resp.StatusCode)
	}
	var body geocodeResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return 0, 0, fmt.Errorf("%w: decoding response: %v", ErrUpstream, err)
	}

	switch body.Status {
	case "OK":
	case "ZERO_RESULTS":
		return 0, 0, fmt.Errorf("%w: %q", ErrNoResults, address)
	default:
		return 0, 0, fmt.Errorf("%w: status %s %s", ErrUpstream, body.Status, body.ErrorMessage)
	}
	if len(body.Results) == 0 {
		return 0, 0, fmt.Errorf("%w: %q", ErrNoResults, address)
	}
	loc := body.Results[0].Geometry.Location
	return loc.Lat, loc.Lng, nil
}
