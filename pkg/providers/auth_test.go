package providers

import (
	"context"
	"net/http"
	"testing"
)

func TestStaticTokenSource_RejectsPlaceholderToken(t *testing.T) {
	src := NewStaticTokenSource("<ANTHROPIC_API_KEY>", "providers.anthropic.api_key")
	if _, err := src.Token(context.Background()); err == nil {
		t.Fatalf("expected placeholder token to be rejected")
	}
}

func TestStaticTokenSource_RejectsEnvReferenceToken(t *testing.T) {
	src := NewStaticTokenSource("${OPENROUTER_API_KEY}", "providers.openrouter.api_key")
	if _, err := src.Token(context.Background()); err == nil {
		t.Fatalf("expected env reference token to be rejected")
	}
}

func TestHeaderKeyAuth_SetsVendorHeader(t *testing.T) {
	req, _ := http.NewRequest(http.MethodPost, "http://example.invalid", nil)
	auth := NewHeaderKeyAuth("x-api-key", NewStaticTokenSource("sk-ant", "test"))
	if err := auth.Apply(context.Background(), req); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if got := req.Header.Get("x-api-key"); got != "sk-ant" {
		t.Fatalf("expected x-api-key header, got %q", got)
	}
	if req.Header.Get("Authorization") != "" {
		t.Fatalf("header auth must not set Authorization")
	}
}

func TestAPIKeyAuth_EmptyTokenFails(t *testing.T) {
	req, _ := http.NewRequest(http.MethodPost, "http://example.invalid", nil)
	auth := NewAPIKeyAuth(NewStaticTokenSource("  ", "providers.openai.api_key"))
	if err := auth.Apply(context.Background(), req); err == nil {
		t.Fatalf("expected empty token error")
	}
}

func TestAPIKeyAuth_SetsBearer(t *testing.T) {
	req, _ := http.NewRequest(http.MethodPost, "http://example.invalid", nil)
	auth := NewAPIKeyAuth(NewStaticTokenSource(" or-key ", "test"))
	if err := auth.Apply(context.Background(), req); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if got := req.Header.Get("Authorization"); got != "Bearer or-key" {
		t.Fatalf("Authorization = %q", got)
	}
	if auth.Mode() != authModeAPIKey {
		t.Fatalf("Mode = %q", auth.Mode())
	}
}
