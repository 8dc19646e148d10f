package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/nerdherd/push-relay/internal/domain"
)

// maxResponseBytes bounds how much of an FCM response is relayed.
const maxResponseBytes = 1 << 20

// FCMProvider delivers messages through the FCM HTTP v1 API.
// The base URL is injected from config so tests can point to a local mock.
type FCMProvider struct {
	baseURL    string
	httpClient *http.Client
}

func NewFCMProvider(baseURL string, timeout time.Duration) *FCMProvider {
	return &FCMProvider{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Send posts the message to the project's send endpoint. The backend's status,
// content type and body come back untouched; only transport failures are errors.
func (p *FCMProvider) Send(ctx context.Context, projectID string, tok *oauth2.Token, msg *SendRequest) (*domain.DeliveryOutcome, error) {
	body, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("marshal message: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v1/projects/%s/messages:send", p.baseURL, url.PathEscape(projectID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	tok.SetAuthHeader(req)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	return &domain.DeliveryOutcome{
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        string(raw),
	}, nil
}

// fcmError is the subset of an FCM v1 error body needed to spot dead tokens.
type fcmError struct {
	Error struct {
		Details []struct {
			ErrorCode string `json:"errorCode"`
		} `json:"details"`
	} `json:"error"`
}

// IsUnregistered reports whether FCM rejected the message because the device
// token is no longer registered.
func IsUnregistered(out *domain.DeliveryOutcome) bool {
	if out == nil || out.StatusCode != http.StatusNotFound {
		return false
	}
	var e fcmError
	if err := json.Unmarshal([]byte(out.Body), &e); err != nil {
		return false
	}
	for _, d := range e.Error.Details {
		if d.ErrorCode == "UNREGISTERED" {
			return true
		}
	}
	return false
}

// compile-time check that FCMProvider implements Provider
var _ Provider = (*FCMProvider)(nil)
