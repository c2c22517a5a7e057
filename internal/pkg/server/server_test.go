package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-logr/logr"

	"github.com/encircle/slack-alerter/internal/pkg/alerting"
	"github.com/encircle/slack-alerter/internal/pkg/config"
	"github.com/encircle/slack-alerter/internal/pkg/match"
)

// fakeAlerter records the batches it receives and returns err.
type fakeAlerter struct {
	batches [][]match.Record
	err     error
}

func (f *fakeAlerter) Alert(_ context.Context, matches []match.Record) error {
	f.batches = append(f.batches, matches)
	return f.err
}

func (f *fakeAlerter) Info() map[string]string {
	return map[string]string{"type": "fake"}
}

func newTestMux(a alerting.Alerter) *http.ServeMux {
	mux := http.NewServeMux()
	New(a, logr.Discard()).RegisterRoutes(mux)
	return mux
}

func TestAlert(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		alertErr    error
		wantStatus  int
		wantBatches int
		wantMatches int
	}{
		{
			name:        "array",
			body:        `[{"_id":"a"},{"_id":"b"}]`,
			wantStatus:  http.StatusOK,
			wantBatches: 1,
			wantMatches: 2,
		},
		{
			name:        "single object",
			body:        `{"_id":"a"}`,
			wantStatus:  http.StatusOK,
			wantBatches: 1,
			wantMatches: 1,
		},
		{
			name:       "invalid json",
			body:       `[{"_id":`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:        "formatting error",
			body:        `[{"_id":"a"}]`,
			alertErr:    fmt.Errorf("building message 1 of 1: %w", &alerting.FormattingError{Key: "_index", Err: alerting.ErrMissingKey}),
			wantStatus:  http.StatusUnprocessableEntity,
			wantBatches: 1,
			wantMatches: 1,
		},
		{
			name:        "delivery error",
			body:        `[{"_id":"a"}]`,
			alertErr:    &alerting.DeliveryError{StatusCode: 500, Err: errors.New("unexpected status 500")},
			wantStatus:  http.StatusBadGateway,
			wantBatches: 1,
			wantMatches: 1,
		},
		{
			name:        "other error",
			body:        `[{"_id":"a"}]`,
			alertErr:    errors.New("boom"),
			wantStatus:  http.StatusInternalServerError,
			wantBatches: 1,
			wantMatches: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &fakeAlerter{err: tt.alertErr}
			mux := newTestMux(fake)

			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/alert", strings.NewReader(tt.body))
			mux.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d (body %s)", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if len(fake.batches) != tt.wantBatches {
				t.Fatalf("batches = %d, want %d", len(fake.batches), tt.wantBatches)
			}
			if tt.wantBatches > 0 && len(fake.batches[0]) != tt.wantMatches {
				t.Errorf("matches = %d, want %d", len(fake.batches[0]), tt.wantMatches)
			}

			var resp alertResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatalf("response is not JSON: %v", err)
			}
			if tt.wantStatus == http.StatusOK && resp.Status != "sent" {
				t.Errorf("status field = %q, want sent", resp.Status)
			}
		})
	}
}

func TestAlert_DeadlineDuringPost(t *testing.T) {
	hook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	t.Cleanup(hook.Close)

	cfg := config.DefaultAlerting()
	cfg.WebhookURL = hook.URL
	cfg.Channel = "#alerts"
	cfg.KibanaBaseURL = "http://kibana.example.com"
	cfg.IssueTrackerBaseURL = "http://phabricator.example.com"
	d, err := alerting.New(cfg)
	if err != nil {
		t.Fatalf("alerting.New() error = %v", err)
	}
	mux := newTestMux(d)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	body := `[{"_index":"i","_type":"t","_id":"a","@timestamp":"1970-01-01T00:00:00.000000Z"}]`
	req := httptest.NewRequest(http.MethodPost, "/alert", strings.NewReader(body)).WithContext(ctx)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503 (body %s)", rec.Code, rec.Body.String())
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"formatting", &alerting.FormattingError{Key: "_id", Err: alerting.ErrMissingKey}, http.StatusUnprocessableEntity},
		{"delivery", &alerting.DeliveryError{StatusCode: 500, Err: errors.New("unexpected status 500")}, http.StatusBadGateway},
		{"delivery canceled", &alerting.DeliveryError{Err: fmt.Errorf("sending request: %w", context.Canceled)}, http.StatusServiceUnavailable},
		{"delivery deadline", fmt.Errorf("sending message 1 of 1: %w", &alerting.DeliveryError{Err: context.DeadlineExceeded}), http.StatusServiceUnavailable},
		{"canceled before post", fmt.Errorf("dispatch interrupted: %w", context.Canceled), http.StatusServiceUnavailable},
		{"other", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := statusFor(tt.err); got != tt.want {
				t.Errorf("statusFor() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestAlert_MethodNotAllowed(t *testing.T) {
	mux := newTestMux(&fakeAlerter{})

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/alert", nil))

	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", rec.Code)
	}
}

func TestAlert_BodyTooLarge(t *testing.T) {
	fake := &fakeAlerter{}
	mux := newTestMux(fake)

	body := "[" + strings.Repeat(" ", maxBodySize) + "]"
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/alert", strings.NewReader(body)))

	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("status = %d, want 413", rec.Code)
	}
	if len(fake.batches) != 0 {
		t.Error("oversized body should not be dispatched")
	}
}

func TestHealthAndInfo(t *testing.T) {
	mux := newTestMux(&fakeAlerter{})

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("healthz status = %d, want 200", rec.Code)
	}

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/info", nil))
	var info map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &info); err != nil {
		t.Fatalf("info is not JSON: %v", err)
	}
	if info["type"] != "fake" {
		t.Errorf("info = %v", info)
	}
}

func TestRun_ShutsDownOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- Run(ctx, "127.0.0.1:0", http.NewServeMux(), logr.Discard())
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run() did not return after cancel")
	}
}
