package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"mediagrab/internal/config"
	"mediagrab/internal/jobs"
)

const userAgent = "mediagrab/1.0"

// Service defines the notification surface used by the daemon.
type Service interface {
	NotifyJobCompleted(ctx context.Context, job jobs.Job) error
	NotifyJobFailed(ctx context.Context, job jobs.Job) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	if cfg == nil {
		return noopService{}
	}
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}
	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: cfg.NotifyTimeout()},
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
}

func (n *ntfyService) NotifyJobCompleted(ctx context.Context, job jobs.Job) error {
	message := fmt.Sprintf("Downloaded: %s", jobDisplayName(job))
	if job.Filename != "" && job.Filename != job.Title {
		message = fmt.Sprintf("%s\nFile: %s", message, job.Filename)
	}
	return n.send(ctx, payload{
		title:   "mediagrab - Download Complete",
		message: message,
		tags:    []string{"mediagrab", job.Type, "completed"},
	})
}

func (n *ntfyService) NotifyJobFailed(ctx context.Context, job jobs.Job) error {
	var builder strings.Builder
	builder.WriteString("Download failed: ")
	builder.WriteString(jobDisplayName(job))
	if msg := strings.TrimSpace(job.Error); msg != "" {
		builder.WriteString("\n")
		builder.WriteString(msg)
	}
	return n.send(ctx, payload{
		title:    "mediagrab - Download Failed",
		message:  builder.String(),
		tags:     []string{"mediagrab", "error", "alert"},
		priority: "high",
	})
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	return n.send(ctx, payload{
		title:    "mediagrab - Test",
		message:  "Notification system test",
		tags:     []string{"mediagrab", "test"},
		priority: "low",
	})
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func jobDisplayName(job jobs.Job) string {
	for _, candidate := range []string{job.Title, job.Filename, job.URL} {
		if candidate = strings.TrimSpace(candidate); candidate != "" {
			return candidate
		}
	}
	return job.ID
}

type noopService struct{}

func (noopService) NotifyJobCompleted(context.Context, jobs.Job) error { return nil }
func (noopService) NotifyJobFailed(context.Context, jobs.Job) error    { return nil }
func (noopService) TestNotification(context.Context) error             { return nil }
