package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/oauth2"

	"github.com/nerdherd/push-relay/internal/domain"
)

// Fixed delivery hints attached to every message.
const (
	androidPriority    = "high"
	defaultSound       = "default"
	flutterClickAction = "FLUTTER_NOTIFICATION_CLICK"
	apnsPriority       = "10"
	apnsBadge          = 1
)

// SendRequest is the JSON body of an FCM v1 messages:send call.
type SendRequest struct {
	Message Message `json:"message"`
}

type Message struct {
	Token        string            `json:"token"`
	Notification Notification      `json:"notification"`
	Data         map[string]string `json:"data"`
	Android      AndroidConfig     `json:"android"`
	APNS         APNSConfig        `json:"apns"`
}

type Notification struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

type AndroidConfig struct {
	Priority     string              `json:"priority"`
	Notification AndroidNotification `json:"notification"`
}

type AndroidNotification struct {
	Sound       string `json:"sound"`
	ClickAction string `json:"click_action"`
}

type APNSConfig struct {
	Headers map[string]string `json:"headers"`
	Payload APNSPayload       `json:"payload"`
}

type APNSPayload struct {
	Aps Aps `json:"aps"`
}

type Aps struct {
	Alert Notification `json:"alert"`
	Sound string       `json:"sound"`
	Badge int          `json:"badge"`
}

// Provider abstracts delivery to the push backend.
// Mocking this interface in tests gives full control over backend behaviour
// without making real HTTP calls.
type Provider interface {
	Send(ctx context.Context, projectID string, tok *oauth2.Token, req *SendRequest) (*domain.DeliveryOutcome, error)
}

// Compose maps a push request onto the FCM v1 message for one device.
// Title and body appear both in the generic block and in the APNs alert.
func Compose(req *domain.PushRequest, target, bundleID string) *SendRequest {
	data := make(map[string]string, len(req.Data))
	for k, v := range req.Data {
		data[k] = Stringify(v)
	}

	n := Notification{Title: req.Title, Body: req.Body}
	return &SendRequest{Message: Message{
		Token:        target,
		Notification: n,
		Data:         data,
		Android: AndroidConfig{
			Priority: androidPriority,
			Notification: AndroidNotification{
				Sound:       defaultSound,
				ClickAction: flutterClickAction,
			},
		},
		APNS: APNSConfig{
			Headers: map[string]string{
				"apns-priority": apnsPriority,
				"apns-topic":    bundleID,
			},
			Payload: APNSPayload{Aps: Aps{
				Alert: n,
				Sound: defaultSound,
				Badge: apnsBadge,
			}},
		},
	}}
}

// Stringify renders a decoded JSON value as text. FCM rejects non-string
// values in the data block.
func Stringify(v any) string {
	switch x := v.(type) {
	case nil:
		return "null"
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return strconv.FormatInt(i, 10)
		}
		if f, err := x.Float64(); err == nil {
			return strconv.FormatFloat(f, 'f', -1, 64)
		}
		return x.String()
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case int, int32, int64, uint, uint32, uint64:
		return fmt.Sprint(x)
	default:
		var buf bytes.Buffer
		enc := json.NewEncoder(&buf)
		enc.SetEscapeHTML(false)
		if err := enc.Encode(x); err != nil {
			return fmt.Sprint(x)
		}
		return strings.TrimSuffix(buf.String(), "\n")
	}
}
