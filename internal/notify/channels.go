package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

const fileTimestampLayout = "20060102_150405"

// ConsoleChannel prints notifications to a writer, typically stdout.
type ConsoleChannel struct {
	mu  sync.Mutex
	out io.Writer
}

var _ Channel = (*ConsoleChannel)(nil)

func NewConsoleChannel(out io.Writer) *ConsoleChannel {
	if out == nil {
		out = os.Stdout
	}
	return &ConsoleChannel{out: out}
}

func (c *ConsoleChannel) Send(_ context.Context, n Notification) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	rule := strings.Repeat("=", 60)
	_, err := fmt.Fprintf(c.out, "\n%s\n%s ALERT: %s\nTime: %s\n%s\n%s\n%s\n\n",
		rule,
		strings.ToUpper(n.Priority),
		n.Title,
		n.Timestamp.UTC().Format("2006-01-02 15:04 UTC"),
		rule,
		n.Message,
		rule,
	)
	return err
}

// FileChannel writes each notification as a timestamped JSON file in a
// directory, created on first use.
type FileChannel struct {
	dir string
}

var _ Channel = (*FileChannel)(nil)

func NewFileChannel(dir string) *FileChannel {
	return &FileChannel{dir: dir}
}

func (c *FileChannel) Send(_ context.Context, n Notification) error {
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return fmt.Errorf("create notification dir: %w", err)
	}
	name := fmt.Sprintf("%s_%s.json", n.Timestamp.UTC().Format(fileTimestampLayout), n.Type)
	body, err := json.MarshalIndent(n, "", "  ")
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}
	path := filepath.Join(c.dir, name)
	if err := os.WriteFile(path, body, 0o644); err != nil {
		return fmt.Errorf("write notification %s: %w", path, err)
	}
	return nil
}

// WebhookChannel posts notifications as JSON to an HTTP endpoint
// (Discord, Telegram bridge, or any collector accepting JSON).
type WebhookChannel struct {
	url    string
	client *http.Client
}

var _ Channel = (*WebhookChannel)(nil)

// WebhookOption configures a WebhookChannel.
type WebhookOption func(*WebhookChannel)

// WithWebhookHTTPClient overrides the HTTP client used for delivery.
func WithWebhookHTTPClient(client *http.Client) WebhookOption {
	return func(c *WebhookChannel) {
		c.client = client
	}
}

func NewWebhookChannel(url string, opts ...WebhookOption) *WebhookChannel {
	c := &WebhookChannel{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *WebhookChannel) Send(ctx context.Context, n Notification) error {
	body, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}
