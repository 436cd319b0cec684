package chart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"

	"github.com/muni-health/muni/backend/internal/config"
)

// ErrNoImage is returned when the query result carries no image pod.
var ErrNoImage = errors.New("query result has no image")

// Client relays the chart query to the math-query API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	appID      string
	query      string
	format     string
}

// NewClient creates a relay client from configuration.
func NewClient(cfg config.ChartConfig) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		baseURL:    cfg.BaseURL,
		appID:      cfg.AppID,
		query:      cfg.Query,
		format:     cfg.Format,
	}
}

// Fetch runs the configured query and returns the upstream JSON verbatim,
// whatever the upstream status. Only transport failures and non-JSON bodies
// are errors.
func (c *Client) Fetch(ctx context.Context) (json.RawMessage, error) {
	endpoint, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid chart base url: %w", err)
	}

	params := endpoint.Query()
	params.Set("input", c.query)
	params.Set("format", c.format)
	params.Set("output", "JSON")
	params.Set("appid", c.appID)
	endpoint.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build chart request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("chart request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read chart response: %w", err)
	}
	if !json.Valid(body) {
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("chart api returned status %d", resp.StatusCode)
		}
		return nil, errors.New("chart api returned invalid json")
	}
	if resp.StatusCode != http.StatusOK {
		log.Printf("[chart] relaying upstream status %d body", resp.StatusCode)
	}

	return json.RawMessage(body), nil
}

// ImageURL fetches the query result and extracts the first pod's image.
func (c *Client) ImageURL(ctx context.Context) (string, error) {
	raw, err := c.Fetch(ctx)
	if err != nil {
		return "", err
	}
	return ExtractImageURL(raw)
}

type queryResult struct {
	QueryResult struct {
		Pods []struct {
			Subpods []struct {
				Img struct {
					Src string `json:"src"`
				} `json:"img"`
			} `json:"subpods"`
		} `json:"pods"`
	} `json:"queryresult"`
}

// ExtractImageURL reads queryresult.pods[0].subpods[0].img.src.
func ExtractImageURL(raw []byte) (string, error) {
	var result queryResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return "", fmt.Errorf("decode chart response: %w", err)
	}

	pods := result.QueryResult.Pods
	if len(pods) == 0 || len(pods[0].Subpods) == 0 || pods[0].Subpods[0].Img.Src == "" {
		return "", ErrNoImage
	}
	return pods[0].Subpods[0].Img.Src, nil
}
