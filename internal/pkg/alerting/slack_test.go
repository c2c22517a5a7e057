package alerting

import (
	"encoding/json"
	"errors"
	"math"
	"testing"

	"github.com/encircle/slack-alerter/internal/pkg/config"
	"github.com/encircle/slack-alerter/internal/pkg/match"
)

const (
	testKibanaURL = "http://kibana.example.com"
	testTitleLink = "http://kibana.example.com/app/kibana#/doc/logstash-*/logstash-1970.01.01/logstash?id=AAAAA"
	testPhabValue = "<http://phabricator.example.com?" +
		"description=http%3A%2F%2Fkibana.example.com%2Fapp%2Fkibana%23%2Fdoc%2Flogstash-%2A%2Flogstash-1970.01.01%2Flogstash%3Fid%3DAAAAA" +
		"&title=Test+log+message|Create task>"
)

func testConfig(webhookURL string) config.AlertingConfig {
	cfg := config.DefaultAlerting()
	cfg.WebhookURL = webhookURL
	cfg.Channel = "example-channel"
	cfg.KibanaBaseURL = testKibanaURL
	cfg.IssueTrackerBaseURL = "http://phabricator.example.com"
	return cfg
}

// testMatch returns the canonical match used across the formatter tests.
func testMatch() match.Record {
	return match.Object(
		match.M("_index", match.Str("logstash-1970.01.01")),
		match.M("_type", match.Str("logstash")),
		match.M("_id", match.Str("AAAAA")),
		match.M("@timestamp", match.Str("1970-01-01T00:00:00.000000Z")),
		match.M("configuration", match.Object(
			match.M("port", match.Num(8888)),
			match.M("script", match.Str("webserver")),
			match.M("host", match.Str("host1.example.com")),
		)),
		match.M("message", match.Str("Test log message")),
		match.M("params", match.Object(
			match.M("auth", match.Object(
				match.M("user_email", match.Str("alice@example.com")),
			)),
		)),
	)
}

// minimalMatch carries only the keys the formatter requires.
func minimalMatch(extra ...match.Member) match.Record {
	members := []match.Member{
		match.M("_index", match.Str("logstash-1970.01.01")),
		match.M("_type", match.Str("logstash")),
		match.M("_id", match.Str("AAAAA")),
		match.M("@timestamp", match.Str("1970-01-01T00:00:00.000000Z")),
	}
	return match.Object(append(members, extra...)...)
}

func TestFormatAuthorName(t *testing.T) {
	tests := []struct {
		name    string
		rec     match.Record
		want    *string
		wantErr bool
	}{
		{
			name: "no configuration",
			rec:  minimalMatch(),
			want: nil,
		},
		{
			name: "extras after script",
			rec:  testMatch(),
			want: ptr("host1.example.com (webserver, port=8888)"),
		},
		{
			name: "no extras",
			rec: minimalMatch(match.M("configuration", match.Object(
				match.M("host", match.Str("h")),
				match.M("script", match.Str("s")),
			))),
			want: ptr("h (s)"),
		},
		{
			name: "extras keep record order",
			rec: minimalMatch(match.M("configuration", match.Object(
				match.M("zone", match.Str("b")),
				match.M("host", match.Str("h")),
				match.M("debug", match.Bool(true)),
				match.M("script", match.Str("s")),
				match.M("args", match.Array(match.Str("x"), match.Num(1))),
			))),
			want: ptr(`h (s, zone=b, debug=true, args=["x",1])`),
		},
		{
			name: "configuration is null",
			rec:  minimalMatch(match.M("configuration", match.Null())),
			want: nil,
		},
		{
			name:    "configuration not an object",
			rec:     minimalMatch(match.M("configuration", match.Str("oops"))),
			wantErr: true,
		},
		{
			name: "missing script",
			rec: minimalMatch(match.M("configuration", match.Object(
				match.M("host", match.Str("h")),
			))),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := formatAuthorName(tt.rec)
			if tt.wantErr {
				var ferr *FormattingError
				if !errors.As(err, &ferr) {
					t.Fatalf("error = %v, want *FormattingError", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("formatAuthorName() error = %v", err)
			}
			if (got == nil) != (tt.want == nil) {
				t.Fatalf("author = %v, want %v", deref(got), deref(tt.want))
			}
			if got != nil && *got != *tt.want {
				t.Errorf("author = %q, want %q", *got, *tt.want)
			}
		})
	}
}

func TestFormatTitle(t *testing.T) {
	if got := formatTitle(testMatch()); got != "Test log message" {
		t.Errorf("title = %q, want %q", got, "Test log message")
	}
	if got := formatTitle(minimalMatch()); got != "Kibana URL" {
		t.Errorf("title = %q, want %q", got, "Kibana URL")
	}
	if got := formatTitle(minimalMatch(match.M("message", match.Null()))); got != "Kibana URL" {
		t.Errorf("null message title = %q, want %q", got, "Kibana URL")
	}
	if got := formatTitle(minimalMatch(match.M("message", match.Num(42)))); got != "42" {
		t.Errorf("numeric message title = %q, want %q", got, "42")
	}
}

func TestFormatTitleLink(t *testing.T) {
	f := NewFormatter(testConfig("http://slack.example.com"))

	got, err := f.formatTitleLink(testMatch())
	if err != nil {
		t.Fatalf("formatTitleLink() error = %v", err)
	}
	if got != testTitleLink {
		t.Errorf("title_link = %q, want %q", got, testTitleLink)
	}

	noID := match.Object(
		match.M("_index", match.Str("i")),
		match.M("_type", match.Str("t")),
	)
	_, err = f.formatTitleLink(noID)
	var ferr *FormattingError
	if !errors.As(err, &ferr) || ferr.Key != "_id" || !errors.Is(err, ErrMissingKey) {
		t.Errorf("error = %v, want missing _id", err)
	}
}

func TestFormatFields(t *testing.T) {
	f := NewFormatter(testConfig("http://slack.example.com"))

	tests := []struct {
		name      string
		rec       match.Record
		wantEmail string
	}{
		{name: "with email", rec: testMatch(), wantEmail: "alice@example.com"},
		{name: "no params", rec: minimalMatch()},
		{
			name: "params without auth",
			rec:  minimalMatch(match.M("params", match.Object(match.M("query", match.Str("q"))))),
		},
		{
			name: "params not an object",
			rec:  minimalMatch(match.M("params", match.Str("flat"))),
		},
		{
			name: "email not a string",
			rec: minimalMatch(match.M("params", match.Object(
				match.M("auth", match.Object(match.M("user_email", match.Null()))),
			))),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fields := f.formatFields(tt.rec, "Test log message", testTitleLink)

			if fields[0].Title != "Phabricator" || !fields[0].Short {
				t.Errorf("first field = %+v, want short Phabricator field", fields[0])
			}
			if fields[0].Value != testPhabValue {
				t.Errorf("Phabricator value = %q, want %q", fields[0].Value, testPhabValue)
			}

			if tt.wantEmail == "" {
				if len(fields) != 1 {
					t.Errorf("fields = %+v, want only Phabricator", fields)
				}
				return
			}
			if len(fields) != 2 {
				t.Fatalf("fields = %+v, want 2", fields)
			}
			want := Field{Title: "User Email", Value: tt.wantEmail, Short: true}
			if fields[1] != want {
				t.Errorf("email field = %+v, want %+v", fields[1], want)
			}
		})
	}
}

func TestFormatTimestamp(t *testing.T) {
	tests := []struct {
		name    string
		ts      match.Value
		want    float64
		wantErr bool
	}{
		{name: "epoch", ts: match.Str("1970-01-01T00:00:00.000000Z"), want: 0},
		{name: "milliseconds", ts: match.Str("1970-01-01T00:00:00.000Z"), want: 0},
		{name: "fractional", ts: match.Str("1970-01-01T00:00:01.500000Z"), want: 1.5},
		{name: "microseconds", ts: match.Str("2017-03-01T12:00:00.123456Z"), want: 1488369600.123456},
		{name: "no fraction", ts: match.Str("1970-01-01T00:00:00Z"), wantErr: true},
		{name: "offset instead of Z", ts: match.Str("1970-01-01T00:00:00.000+01:00"), wantErr: true},
		{name: "garbage", ts: match.Str("yesterday"), wantErr: true},
		{name: "number", ts: match.Num(0), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := formatTimestamp(match.Object(match.M("@timestamp", tt.ts)))
			if tt.wantErr {
				var ferr *FormattingError
				if !errors.As(err, &ferr) {
					t.Fatalf("error = %v, want *FormattingError", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("formatTimestamp() error = %v", err)
			}
			if math.Abs(got-tt.want) > 1e-7 {
				t.Errorf("ts = %v, want %v", got, tt.want)
			}
		})
	}

	epoch, err := formatTimestamp(minimalMatch())
	if err != nil || epoch != 0 {
		t.Errorf("epoch ts = %v (err %v), want exactly 0", epoch, err)
	}

	if _, err := formatTimestamp(match.Object()); !errors.Is(err, ErrMissingKey) {
		t.Errorf("missing @timestamp error = %v, want ErrMissingKey", err)
	}
}

func TestBuildPayload(t *testing.T) {
	cfg := testConfig("http://slack.example.com")
	cfg.DisplayName = ""
	cfg.Icon = ""
	f := NewFormatter(cfg)

	payload, err := f.BuildPayload([]match.Record{testMatch(), minimalMatch()})
	if err != nil {
		t.Fatalf("BuildPayload() error = %v", err)
	}

	if payload.Username != "elastalert" || payload.IconEmoji != ":rage:" || payload.Channel != "example-channel" {
		t.Errorf("payload header = %q %q %q", payload.Username, payload.IconEmoji, payload.Channel)
	}
	if len(payload.Attachments) != 2 {
		t.Fatalf("attachments = %d, want 2", len(payload.Attachments))
	}
	for _, a := range payload.Attachments {
		if a.Color != "danger" {
			t.Errorf("color = %q, want danger", a.Color)
		}
	}
	if payload.Attachments[1].AuthorName != nil {
		t.Errorf("second author = %q, want nil", *payload.Attachments[1].AuthorName)
	}

	body, err := json.Marshal(payload.Attachments[1])
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	var raw map[string]any
	if err := json.Unmarshal(body, &raw); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if v, ok := raw["author_name"]; !ok || v != nil {
		t.Errorf("author_name = %v (present %v), want JSON null", v, ok)
	}
	if _, ok := raw["ts"].(float64); !ok {
		t.Errorf("ts = %T, want JSON number", raw["ts"])
	}
}

func TestBuildPayload_FailsOnBadRecord(t *testing.T) {
	f := NewFormatter(testConfig("http://slack.example.com"))

	bad := match.Object(match.M("_index", match.Str("i")))
	if _, err := f.BuildPayload([]match.Record{testMatch(), bad}); err == nil {
		t.Error("BuildPayload() should fail when any record is malformed")
	}
}

func ptr(s string) *string { return &s }

func deref(s *string) string {
	if s == nil {
		return "<nil>"
	}
	return *s
}
