package alerting

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/encircle/slack-alerter/internal/pkg/config"
	"github.com/encircle/slack-alerter/internal/pkg/match"
)

const (
	// attachmentColor marks every match attachment as an error.
	attachmentColor = "danger"

	// defaultTitle is used for matches without a message.
	defaultTitle = "Kibana URL"

	// timestampLayout is the ElastAlert @timestamp format. Parsing accepts
	// one to nine fractional digits.
	timestampLayout = "2006-01-02T15:04:05.999999999Z"
)

// Payload is the JSON body posted to the Slack webhook. One Payload carries one chunk of matches.
type Payload struct {
	Username    string       `json:"username"`
	Channel     string       `json:"channel"`
	IconEmoji   string       `json:"icon_emoji"`
	Attachments []Attachment `json:"attachments"`
}

// Attachment renders a single match.
type Attachment struct {
	AuthorName *string `json:"author_name"`
	Title      string  `json:"title"`
	TitleLink  string  `json:"title_link"`
	Fields     []Field `json:"fields"`
	Timestamp  float64 `json:"ts"`
	Color      string  `json:"color"`
}

// Field is a short title/value pair shown under an attachment.
type Field struct {
	Title string `json:"title"`
	Value string `json:"value"`
	Short bool   `json:"short"`
}

// Formatter turns match records into Slack payloads.
type Formatter struct {
	username     string
	channel      string
	icon         string
	kibanaURL    string
	issueTracker string
}

// NewFormatter creates a Formatter. Empty display name or icon fall back to the defaults.
func NewFormatter(cfg config.AlertingConfig) *Formatter {
	f := &Formatter{
		username:     cfg.DisplayName,
		channel:      cfg.Channel,
		icon:         cfg.Icon,
		kibanaURL:    cfg.KibanaBaseURL,
		issueTracker: cfg.IssueTrackerBaseURL,
	}
	if f.username == "" {
		f.username = config.DefaultDisplayName
	}
	if f.icon == "" {
		f.icon = config.DefaultIcon
	}
	return f
}

// BuildPayload formats every record of chunk, in order, into a single payload.
func (f *Formatter) BuildPayload(chunk []match.Record) (Payload, error) {
	attachments := make([]Attachment, 0, len(chunk))
	for _, rec := range chunk {
		a, err := f.buildAttachment(rec)
		if err != nil {
			return Payload{}, err
		}
		attachments = append(attachments, a)
	}

	return Payload{
		Username:    f.username,
		Channel:     f.channel,
		IconEmoji:   f.icon,
		Attachments: attachments,
	}, nil
}

func (f *Formatter) buildAttachment(rec match.Record) (Attachment, error) {
	author, err := formatAuthorName(rec)
	if err != nil {
		return Attachment{}, err
	}

	link, err := f.formatTitleLink(rec)
	if err != nil {
		return Attachment{}, err
	}

	ts, err := formatTimestamp(rec)
	if err != nil {
		return Attachment{}, err
	}

	title := formatTitle(rec)

	return Attachment{
		AuthorName: author,
		Title:      title,
		TitleLink:  link,
		Fields:     f.formatFields(rec, title, link),
		Timestamp:  ts,
		Color:      attachmentColor,
	}, nil
}

// formatAuthorName renders "host (script, key=value, ...)" from the configuration
// object, keeping its member order. A record with absent or null configuration has no author.
func formatAuthorName(rec match.Record) (*string, error) {
	conf, ok := rec.Get("configuration")
	if !ok || conf.IsNull() {
		return nil, nil
	}
	if conf.Kind() != match.KindObject {
		return nil, &FormattingError{
			Key: "configuration",
			Err: fmt.Errorf("expected object, got %s", conf.Kind()),
		}
	}

	host, ok := conf.Get("host")
	if !ok {
		return nil, &FormattingError{Key: "configuration.host", Err: ErrMissingKey}
	}
	script, ok := conf.Get("script")
	if !ok {
		return nil, &FormattingError{Key: "configuration.script", Err: ErrMissingKey}
	}

	parts := []string{script.Text()}
	for _, m := range conf.Members() {
		if m.Key == "host" || m.Key == "script" {
			continue
		}
		parts = append(parts, m.Key+"="+m.Value.Text())
	}

	author := fmt.Sprintf("%s (%s)", host.Text(), strings.Join(parts, ", "))
	return &author, nil
}

// formatTitle uses the match message, falling back to defaultTitle when it is absent or null.
func formatTitle(rec match.Record) string {
	if msg, ok := rec.Get("message"); ok && !msg.IsNull() {
		return msg.Text()
	}
	return defaultTitle
}

func (f *Formatter) formatTitleLink(rec match.Record) (string, error) {
	var ids [3]string
	for i, key := range []string{"_index", "_type", "_id"} {
		v, ok := rec.Get(key)
		if !ok {
			return "", &FormattingError{Key: key, Err: ErrMissingKey}
		}
		ids[i] = v.Text()
	}
	return fmt.Sprintf("%s/app/kibana#/doc/logstash-*/%s/%s?id=%s", f.kibanaURL, ids[0], ids[1], ids[2]), nil
}

func (f *Formatter) formatFields(rec match.Record, title, link string) []Field {
	query := url.Values{
		"title":       {title},
		"description": {link},
	}

	fields := []Field{
		{
			Title: "Phabricator",
			Value: fmt.Sprintf("<%s?%s|Create task>", f.issueTracker, query.Encode()),
			Short: true,
		},
	}

	if email, ok := rec.StringAt("params", "auth", "user_email"); ok {
		fields = append(fields, Field{
			Title: "User Email",
			Value: email,
			Short: true,
		})
	}

	return fields
}

// formatTimestamp converts @timestamp to seconds since the epoch with
// microsecond precision.
func formatTimestamp(rec match.Record) (float64, error) {
	v, ok := rec.Get("@timestamp")
	if !ok {
		return 0, &FormattingError{Key: "@timestamp", Err: ErrMissingKey}
	}
	raw, ok := v.AsString()
	if !ok {
		return 0, &FormattingError{Key: "@timestamp", Err: fmt.Errorf("expected string, got %s", v.Kind())}
	}
	if !strings.Contains(raw, ".") {
		return 0, &FormattingError{Key: "@timestamp", Err: fmt.Errorf("%q has no fractional seconds", raw)}
	}

	t, err := time.Parse(timestampLayout, raw)
	if err != nil {
		return 0, &FormattingError{Key: "@timestamp", Err: err}
	}

	micros := t.UnixMicro()
	return float64(micros/1e6) + float64(micros%1e6)/1e6, nil
}
