// Package plantid calls a Plant.id style identification API.
package plantid

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"plantscan/internal/domain"
	"plantscan/internal/infra"
)

// ErrMissingAPIKey indicates that the client was configured without credentials.
var ErrMissingAPIKey = errors.New("plantid: api key is required")

const providerName = "plant.id"

// Options configures the client.
type Options struct {
	APIKey         string
	BaseURL        string
	Language       string
	HTTPClient     *http.Client
	Logger         *infra.Logger
	RequestTimeout time.Duration
}

// Client performs identification requests.
type Client struct {
	apiKey     string
	baseURL    string
	language   string
	httpClient *http.Client
	logger     *infra.Logger
}

type identificationRequest struct {
	Images        []string `json:"images"`
	Latitude      *float64 `json:"latitude,omitempty"`
	Longitude     *float64 `json:"longitude,omitempty"`
	SimilarImages bool     `json:"similar_images"`
}

type identificationResponse struct {
	AccessToken string `json:"access_token"`
	Status      string `json:"status"`
	Result      struct {
		IsPlant struct {
			Probability float64 `json:"probability"`
			Binary      bool    `json:"binary"`
		} `json:"is_plant"`
		Classification struct {
			Suggestions []struct {
				ID          string  `json:"id"`
				Name        string  `json:"name"`
				Probability float64 `json:"probability"`
				Details     struct {
					CommonNames []string `json:"common_names"`
				} `json:"details"`
			} `json:"suggestions"`
		} `json:"classification"`
	} `json:"result"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// NewClient constructs a client with defaults for unset options.
func NewClient(opts Options) (*Client, error) {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.RequestTimeout
		if timeout <= 0 {
			timeout = 45 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		baseURL = "https://plant.id/api/v3"
	}
	language := strings.TrimSpace(opts.Language)
	if language == "" {
		language = "en"
	}
	var logger *infra.Logger
	if opts.Logger != nil {
		logger = opts.Logger
	} else {
		discard := zerolog.New(io.Discard)
		logger = &discard
	}
	return &Client{
		apiKey:     strings.TrimSpace(opts.APIKey),
		baseURL:    baseURL,
		language:   language,
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

// HasCredentials reports whether the client can perform remote calls.
func (c *Client) HasCredentials() bool {
	return c.apiKey != ""
}

// Identify submits one image and returns ranked suggestions.
//
// HTTP 429 maps to domain.ErrRateLimited, 5xx and transport failures to
// domain.ErrServiceUnavailable and an expired context deadline to
// domain.ErrIdentificationTimeout.
func (c *Client) Identify(ctx context.Context, img domain.ImageHandle) (*domain.Identification, error) {
	if !c.HasCredentials() {
		return nil, fmt.Errorf("%w: %w", domain.ErrConfiguration, ErrMissingAPIKey)
	}
	if len(img.Data) == 0 {
		return nil, errors.New("plantid: image data is required")
	}
	mime := strings.TrimSpace(img.MIMEType)
	if mime == "" {
		mime = http.DetectContentType(img.Data)
	}
	payload := identificationRequest{
		Images:    []string{"data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(img.Data)},
		Latitude:  img.Latitude,
		Longitude: img.Longitude,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("plantid: encode request: %w", err)
	}
	endpoint := c.baseURL + "/identification?details=common_names&language=" + c.language
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("plantid: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Api-Key", c.apiKey)

	started := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %w", domain.ErrIdentificationTimeout, err)
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: plantid: http request: %w", domain.ErrServiceUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: plantid: read response: %w", domain.ErrServiceUnavailable, err)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, fmt.Errorf("%w: plantid: %s", domain.ErrRateLimited, errorDetail(raw, resp.StatusCode))
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("%w: plantid: %s", domain.ErrServiceUnavailable, errorDetail(raw, resp.StatusCode))
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("%w: plantid: %s", domain.ErrConfiguration, errorDetail(raw, resp.StatusCode))
	case resp.StatusCode >= 300:
		return nil, fmt.Errorf("plantid: %s", errorDetail(raw, resp.StatusCode))
	}

	var decoded identificationResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("%w: plantid: decode response: %w", domain.ErrServiceUnavailable, err)
	}
	out := &domain.Identification{
		Provider:  providerName,
		RequestID: decoded.AccessToken,
		IsPlant:   decoded.Result.IsPlant.Binary,
	}
	for _, s := range decoded.Result.Classification.Suggestions {
		name := strings.TrimSpace(s.Name)
		if name == "" {
			continue
		}
		out.Suggestions = append(out.Suggestions, domain.Suggestion{
			Name:        name,
			CommonNames: s.Details.CommonNames,
			Probability: s.Probability,
		})
	}
	sort.SliceStable(out.Suggestions, func(i, j int) bool {
		return out.Suggestions[i].Probability > out.Suggestions[j].Probability
	})

	c.logger.Debug().
		Str("access_token", decoded.AccessToken).
		Int("suggestions", len(out.Suggestions)).
		Dur("latency", time.Since(started)).
		Msg("plantid: identification completed")
	return out, nil
}

func errorDetail(raw []byte, status int) string {
	var detail errorResponse
	if err := json.Unmarshal(raw, &detail); err == nil {
		if msg := firstNonEmpty(detail.Error, detail.Message); msg != "" {
			return fmt.Sprintf("status %d: %s", status, msg)
		}
	}
	return fmt.Sprintf("status %d: %s", status, strings.TrimSpace(string(raw)))
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
