package slack

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	defaultAPIBaseURL = "https://slack.com/api"
	defaultTimeout    = 15 * time.Second
	repliesPageSize   = "200"
	maxRepliesPages   = 10
)

// Message is one message of a conversation thread.
type Message struct {
	User    string `json:"user"`
	BotID   string `json:"bot_id,omitempty"`
	Subtype string `json:"subtype,omitempty"`
	Text    string `json:"text"`
	TS      string `json:"ts"`
}

// APIError is a Web API response with ok=false.
type APIError struct {
	Method string
	Code   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("slack %s: %s", e.Method, e.Code)
}

// ClientConfig configures the Web API client.
type ClientConfig struct {
	Token      string
	BaseURL    string
	RateLimit  float64 // requests per second, 0 = unlimited
	HTTPClient *http.Client
}

// Client calls the Slack Web API with a bot token.
type Client struct {
	token      string
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter

	botMu sync.Mutex
	botID string
}

// NewClient creates a client.
func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.Token == "" {
		return nil, errors.New("slack bot token required")
	}
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultAPIBaseURL
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: defaultTimeout}
	}
	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), 5)
	}
	return &Client{token: cfg.Token, baseURL: baseURL, httpClient: hc, limiter: limiter}, nil
}

// PostMessage posts text into a thread.
func (c *Client) PostMessage(ctx context.Context, channel, thread, text string) error {
	params := url.Values{
		"channel":      {channel},
		"text":         {text},
		"unfurl_links": {"false"},
	}
	if thread != "" {
		params.Set("thread_ts", thread)
	}
	return c.call(ctx, "chat.postMessage", params, nil)
}

// ThreadMessages returns the messages of a thread, oldest first.
func (c *Client) ThreadMessages(ctx context.Context, channel, thread string) ([]Message, error) {
	var all []Message
	cursor := ""
	for page := 0; page < maxRepliesPages; page++ {
		params := url.Values{
			"channel": {channel},
			"ts":      {thread},
			"limit":   {repliesPageSize},
		}
		if cursor != "" {
			params.Set("cursor", cursor)
		}
		var resp struct {
			Messages []Message `json:"messages"`
			Metadata struct {
				NextCursor string `json:"next_cursor"`
			} `json:"response_metadata"`
		}
		if err := c.call(ctx, "conversations.replies", params, &resp); err != nil {
			return nil, err
		}
		all = append(all, resp.Messages...)
		if resp.Metadata.NextCursor == "" {
			break
		}
		cursor = resp.Metadata.NextCursor
	}
	return all, nil
}

// ChannelName returns the display name of a channel.
func (c *Client) ChannelName(ctx context.Context, channel string) (string, error) {
	var resp struct {
		Channel struct {
			Name string `json:"name"`
		} `json:"channel"`
	}
	if err := c.call(ctx, "conversations.info", url.Values{"channel": {channel}}, &resp); err != nil {
		return "", err
	}
	return resp.Channel.Name, nil
}

// Permalink returns a link to the message ts.
func (c *Client) Permalink(ctx context.Context, channel, ts string) (string, error) {
	var resp struct {
		Permalink string `json:"permalink"`
	}
	if err := c.call(ctx, "chat.getPermalink", url.Values{"channel": {channel}, "message_ts": {ts}}, &resp); err != nil {
		return "", err
	}
	return resp.Permalink, nil
}

// BotUserID returns the bot's own user id. The first successful answer
// is cached.
func (c *Client) BotUserID(ctx context.Context) (string, error) {
	c.botMu.Lock()
	defer c.botMu.Unlock()
	if c.botID != "" {
		return c.botID, nil
	}
	var resp struct {
		UserID string `json:"user_id"`
	}
	if err := c.call(ctx, "auth.test", url.Values{}, &resp); err != nil {
		return "", err
	}
	c.botID = resp.UserID
	return c.botID, nil
}

func (c *Client) call(ctx context.Context, method string, params url.Values, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("slack %s: rate limiter: %w", method, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/"+method, strings.NewReader(params.Encode()))
	if err != nil {
		return fmt.Errorf("slack %s: create request: %w", method, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("slack %s: request failed: %w", method, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return &APIError{Method: method, Code: "ratelimited (retry after " + resp.Header.Get("Retry-After") + "s)"}
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("slack %s: status %d: %s", method, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return fmt.Errorf("slack %s: read response: %w", method, err)
	}
	var status struct {
		OK    bool   `json:"ok"`
		Error string `json:"error"`
	}
	if err := json.Unmarshal(raw, &status); err != nil {
		return fmt.Errorf("slack %s: decode response: %w", method, err)
	}
	if !status.OK {
		return &APIError{Method: method, Code: status.Error}
	}
	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("slack %s: decode response: %w", method, err)
		}
	}
	return nil
}
