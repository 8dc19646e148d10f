package domain_test

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/nerdherd/push-relay/internal/domain"
)

func TestDecodePushRequest(t *testing.T) {
	t.Run("direct envelope", func(t *testing.T) {
		req, err := domain.DecodePushRequest(strings.NewReader(
			`{"user_id":"u1","title":"Hi","body":"There","data":{"count":3}}`))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if req.UserID != "u1" || req.Title != "Hi" || req.Body != "There" {
			t.Fatalf("unexpected request: %+v", req)
		}
		if n, ok := req.Data["count"].(json.Number); !ok || n.String() != "3" {
			t.Fatalf("expected count to decode as json.Number 3, got %#v", req.Data["count"])
		}
	})

	t.Run("record envelope resolves nested user id", func(t *testing.T) {
		req, err := domain.DecodePushRequest(strings.NewReader(
			`{"type":"INSERT","record":{"user_id":"u1","title":"t","body":"b"}}`))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if req.UserID != "u1" {
			t.Fatalf("expected user id u1, got %q", req.UserID)
		}
		if req.Data == nil {
			t.Fatal("expected a non-nil data map")
		}
	})

	t.Run("record type is copied into data", func(t *testing.T) {
		req, err := domain.DecodePushRequest(strings.NewReader(
			`{"record":{"user_id":"u1","type":"session_invite","data":{"session_id":"s9"}}}`))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if req.Data["type"] != "session_invite" {
			t.Fatalf("expected data.type=session_invite, got %v", req.Data["type"])
		}
		if req.Data["session_id"] != "s9" {
			t.Fatalf("expected session_id to survive, got %v", req.Data["session_id"])
		}
	})

	t.Run("record wins over top-level fields", func(t *testing.T) {
		req, err := domain.DecodePushRequest(strings.NewReader(
			`{"user_id":"outer","record":{"user_id":"inner"}}`))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if req.UserID != "inner" {
			t.Fatalf("expected inner, got %q", req.UserID)
		}
	})

	t.Run("malformed body", func(t *testing.T) {
		for _, body := range []string{"", "   ", "{not json", "[1,2]"} {
			_, err := domain.DecodePushRequest(strings.NewReader(body))
			if !errors.Is(err, domain.ErrInvalidBody) {
				t.Fatalf("body %q: expected ErrInvalidBody, got %v", body, err)
			}
		}
	})
}

func TestPushRequest_Validate(t *testing.T) {
	tests := []struct {
		name string
		body string
		want error
	}{
		{"direct with user id", `{"user_id":"u1"}`, nil},
		{"record with user id", `{"record":{"user_id":"u1"}}`, nil},
		{"direct without user id", `{"title":"t"}`, domain.ErrMissingRecipient},
		{"record without user id", `{"record":{"title":"t"}}`, domain.ErrMissingRecipient},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req, err := domain.DecodePushRequest(strings.NewReader(tc.body))
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			if err := req.Validate(); err != tc.want {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestServiceAccount_Validate(t *testing.T) {
	ok := domain.ServiceAccount{ClientEmail: "svc@p.iam.gserviceaccount.com", PrivateKey: "k"}
	if err := ok.Validate(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	for _, sa := range []domain.ServiceAccount{
		{PrivateKey: "k"},
		{ClientEmail: "svc@p.iam.gserviceaccount.com"},
	} {
		if err := sa.Validate(); err != domain.ErrIncompleteAccount {
			t.Fatalf("expected ErrIncompleteAccount for %+v, got %v", sa, err)
		}
	}
}

func TestTypedErrorsMatchSentinels(t *testing.T) {
	parseErr := &domain.CredentialParseError{Failures: []domain.TierFailure{
		{Tier: "strict", Reason: "bad"},
		{Tier: "extract", Reason: "no client_email"},
	}}
	if !errors.Is(parseErr, domain.ErrCredentialParse) {
		t.Fatal("expected CredentialParseError to match ErrCredentialParse")
	}
	if !strings.Contains(parseErr.Error(), "strict: bad") || !strings.Contains(parseErr.Error(), "extract: no client_email") {
		t.Fatalf("expected every tier in the message, got %q", parseErr.Error())
	}

	keyErr := &domain.KeyImportError{Step: "decode", Err: errors.New("boom")}
	if !errors.Is(keyErr, domain.ErrKeyImport) {
		t.Fatal("expected KeyImportError to match ErrKeyImport")
	}

	exErr := &domain.TokenExchangeError{StatusCode: 400, Body: `{"error":"invalid_grant"}`}
	if !errors.Is(exErr, domain.ErrTokenExchange) {
		t.Fatal("expected TokenExchangeError to match ErrTokenExchange")
	}
	if !strings.Contains(exErr.Error(), `{"error":"invalid_grant"}`) {
		t.Fatalf("expected body in message, got %q", exErr.Error())
	}
}
