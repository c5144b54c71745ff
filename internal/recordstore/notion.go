package recordstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/fyrsmithlabs/decisiond/internal/decision"
)

const (
	notionVersion        = "2022-06-28"
	defaultNotionBaseURL = "https://api.notion.com/v1"
	notionPageBaseURL    = "https://www.notion.so/"
	maxNotionErrorBody   = 4096
)

// Notion database property names.
const (
	propTitle      = "Name"
	propSummary    = "Summary"
	propTag        = "Tag"
	propThread     = "Thread"
	propChannel    = "Channel"
	propRecordedAt = "Recorded At"
)

// NotionConfig configures the Notion database backend.
type NotionConfig struct {
	Token      string
	DatabaseID string
	BaseURL    string
	HTTPClient *http.Client
}

// NotionStore keeps records as pages of a Notion database.
// Deleting archives the page.
type NotionStore struct {
	token      string
	databaseID string
	baseURL    string
	httpClient *http.Client
}

// NewNotionStore creates a Notion backend.
func NewNotionStore(cfg NotionConfig) (*NotionStore, error) {
	if cfg.Token == "" || cfg.DatabaseID == "" {
		return nil, errors.New("notion token and database id required")
	}
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultNotionBaseURL
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &NotionStore{
		token:      cfg.Token,
		databaseID: cfg.DatabaseID,
		baseURL:    baseURL,
		httpClient: client,
	}, nil
}

type notionText struct {
	Text      *notionTextContent `json:"text,omitempty"`
	PlainText string             `json:"plain_text,omitempty"`
}

type notionTextContent struct {
	Content string `json:"content"`
}

type notionProperty struct {
	Title    []notionText  `json:"title,omitempty"`
	RichText []notionText  `json:"rich_text,omitempty"`
	Select   *notionSelect `json:"select,omitempty"`
	Date     *notionDate   `json:"date,omitempty"`
}

type notionSelect struct {
	Name string `json:"name"`
}

type notionDate struct {
	Start string `json:"start"`
}

type notionPage struct {
	ID         string                    `json:"id"`
	Archived   bool                      `json:"archived"`
	Properties map[string]notionProperty `json:"properties"`
}

type notionQueryResponse struct {
	Results    []notionPage `json:"results"`
	HasMore    bool         `json:"has_more"`
	NextCursor string       `json:"next_cursor"`
}

type notionError struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *notionError) Error() string {
	return fmt.Sprintf("notion API error (status %d, %s): %s", e.Status, e.Code, e.Message)
}

func textValue(s string) []notionText {
	return []notionText{{Text: &notionTextContent{Content: s}}}
}

func plain(texts []notionText) string {
	var b strings.Builder
	for _, t := range texts {
		if t.PlainText != "" {
			b.WriteString(t.PlainText)
		} else if t.Text != nil {
			b.WriteString(t.Text.Content)
		}
	}
	return b.String()
}

// properties renders the set fields of f.
func properties(f decision.Fields) map[string]notionProperty {
	props := make(map[string]notionProperty)
	if f.Title != nil {
		props[propTitle] = notionProperty{Title: textValue(decision.TruncateTitle(*f.Title))}
	}
	if f.Summary != nil {
		props[propSummary] = notionProperty{RichText: textValue(*f.Summary)}
	}
	if f.Tag != nil && *f.Tag != "" {
		props[propTag] = notionProperty{Select: &notionSelect{Name: *f.Tag}}
	}
	if f.SourceThread != nil {
		props[propThread] = notionProperty{RichText: textValue(*f.SourceThread)}
	}
	if f.SourceChannel != nil {
		props[propChannel] = notionProperty{RichText: textValue(*f.SourceChannel)}
	}
	if f.RecordedAt != nil {
		props[propRecordedAt] = notionProperty{Date: &notionDate{Start: f.RecordedAt.UTC().Format(time.RFC3339)}}
	}
	return props
}

func (p notionPage) record() decision.Record {
	r := decision.Record{
		ID:            p.ID,
		Title:         plain(p.Properties[propTitle].Title),
		Summary:       plain(p.Properties[propSummary].RichText),
		SourceThread:  plain(p.Properties[propThread].RichText),
		SourceChannel: plain(p.Properties[propChannel].RichText),
	}
	if sel := p.Properties[propTag].Select; sel != nil {
		r.Tag = sel.Name
	}
	if d := p.Properties[propRecordedAt].Date; d != nil {
		if t, err := time.Parse(time.RFC3339, d.Start); err == nil {
			r.RecordedAt = t
		}
	}
	return r
}

func (n *NotionStore) Create(ctx context.Context, f decision.Fields) (string, error) {
	body := map[string]any{
		"parent":     map[string]string{"database_id": n.databaseID},
		"properties": properties(f),
	}
	var page notionPage
	if err := n.do(ctx, http.MethodPost, "/pages", body, &page); err != nil {
		return "", fmt.Errorf("failed to create notion page: %w", err)
	}
	return page.ID, nil
}

func (n *NotionStore) List(ctx context.Context) ([]decision.Record, error) {
	var records []decision.Record
	cursor := ""
	for {
		body := map[string]any{
			"page_size": 100,
			"sorts":     []map[string]string{{"timestamp": "created_time", "direction": "ascending"}},
		}
		if cursor != "" {
			body["start_cursor"] = cursor
		}

		var resp notionQueryResponse
		if err := n.do(ctx, http.MethodPost, "/databases/"+n.databaseID+"/query", body, &resp); err != nil {
			return nil, fmt.Errorf("failed to query notion database: %w", err)
		}
		for _, p := range resp.Results {
			if !p.Archived {
				records = append(records, p.record())
			}
		}
		if !resp.HasMore || resp.NextCursor == "" {
			return records, nil
		}
		cursor = resp.NextCursor
	}
}

func (n *NotionStore) Update(ctx context.Context, id string, f decision.Fields) error {
	props := properties(f)
	if len(props) == 0 {
		return nil
	}
	if err := n.do(ctx, http.MethodPatch, "/pages/"+id, map[string]any{"properties": props}, nil); err != nil {
		return fmt.Errorf("failed to update notion page: %w", err)
	}
	return nil
}

func (n *NotionStore) Delete(ctx context.Context, id string) error {
	if err := n.do(ctx, http.MethodPatch, "/pages/"+id, map[string]any{"archived": true}, nil); err != nil {
		return fmt.Errorf("failed to archive notion page: %w", err)
	}
	return nil
}

// Link returns the page URL for a record.
func (n *NotionStore) Link(id string) string {
	if id == "" {
		return ""
	}
	return notionPageBaseURL + strings.ReplaceAll(id, "-", "")
}

func (n *NotionStore) do(ctx context.Context, method, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, n.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+n.token)
	req.Header.Set("Notion-Version", notionVersion)
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxNotionErrorBody))
		apiErr := &notionError{Status: resp.StatusCode}
		if json.Unmarshal(raw, apiErr) != nil || apiErr.Message == "" {
			apiErr.Message = strings.TrimSpace(string(raw))
		}
		apiErr.Status = resp.StatusCode
		if resp.StatusCode == http.StatusNotFound {
			return fmt.Errorf("%w: %v", decision.ErrNotFound, apiErr)
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
