package ml

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"PulseWatch/internal/config"
	"PulseWatch/internal/domain"
)

func TestSubmitDecodesVerdict(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/classify" {
			t.Errorf("path = %s", r.URL.Path)
		}
		var req map[string]string
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req["text"] != "Senate passes the bill" {
			t.Errorf("text = %q", req["text"])
		}
		_, _ = w.Write([]byte(`{"sentiment":"positive","sentiment_score":0.7,"key_topics":["legislation"],"summary":"Good news."}`))
	}))
	defer srv.Close()

	client := NewClient(config.MLConfig{InferenceURL: srv.URL + "/"})
	raw, err := client.Submit(context.Background(), "Senate passes the bill")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if raw.Label != "positive" || raw.Score != 0.7 || raw.Topics[0] != "legislation" {
		t.Fatalf("unexpected verdict %+v", raw)
	}
}

func TestSubmitMapsStatuses(t *testing.T) {
	t.Parallel()

	cases := []struct {
		status   int
		body     string
		want     error
		terminal bool
	}{
		{http.StatusUnauthorized, "", domain.ErrInvalidCredentials, true},
		{http.StatusRequestEntityTooLarge, "", domain.ErrInputTooLarge, true},
		{http.StatusOK, "not json", domain.ErrMalformedResponse, false},
		{http.StatusBadGateway, "", nil, false},
	}
	for _, tc := range cases {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(tc.status)
			_, _ = w.Write([]byte(tc.body))
		}))

		_, err := NewClient(config.MLConfig{InferenceURL: srv.URL}).Submit(context.Background(), "x")
		srv.Close()

		if err == nil {
			t.Fatalf("status %d: expected error", tc.status)
		}
		if tc.want != nil && !errors.Is(err, tc.want) {
			t.Fatalf("status %d: expected %v, got %v", tc.status, tc.want, err)
		}
		if domain.IsTerminal(err) != tc.terminal {
			t.Fatalf("status %d: terminal = %v", tc.status, domain.IsTerminal(err))
		}
	}
}
