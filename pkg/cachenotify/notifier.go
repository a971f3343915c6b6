// Package cachenotify tells the repository cache service that a branch moved.
//
// Notifications are fire-and-forget from the caller's point of view: Notify
// starts the request on its own goroutine and returns immediately. The
// returned channel is the only way to observe the result; failures are also
// logged. Requests are never retried.
package cachenotify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	nooptrace "go.opentelemetry.io/otel/trace/noop"
)

const (
	// CachePath is the cache-update endpoint relative to the service base URL.
	CachePath = "/api/v2/repositories/cache"

	// DefaultTimeout bounds a single notification request.
	DefaultTimeout = 30 * time.Second

	maxDrainBytes = 64 * 1024
)

var (
	// ErrInvalidBaseURL is returned when the base URL is not an absolute http(s) URL.
	ErrInvalidBaseURL = errors.New("invalid cache service base URL")

	// ErrUnexpectedStatus is returned for non-2xx responses.
	ErrUnexpectedStatus = errors.New("unexpected cache service status")
)

// Target identifies the repository branch the cache should refresh.
type Target struct {
	Owner  string
	Repo   string
	Branch string
}

// GitURL returns the GitHub clone URL of the target repository.
func (t Target) GitURL() string {
	return "https://github.com/" + url.PathEscape(t.Owner) + "/" + url.PathEscape(t.Repo) + ".git"
}

// Options configure a Notifier.
type Options struct {
	BaseURL string
	Timeout time.Duration

	// LegacyQuery joins the branch parameter with a second '?' instead of '&',
	// reproducing the URL older cache service clients sent.
	LegacyQuery bool

	Client *http.Client
	Logger *slog.Logger
	Tracer trace.Tracer
}

// Notifier posts cache-update requests for a single target.
type Notifier struct {
	endpoint string
	target   Target
	timeout  time.Duration
	client   *http.Client
	logger   *slog.Logger
	tracer   trace.Tracer
}

// New creates a Notifier for target.
func New(opts Options, target Target) (*Notifier, error) {
	base, err := url.Parse(strings.TrimRight(opts.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidBaseURL, err)
	}

	if (base.Scheme != "http" && base.Scheme != "https") || base.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidBaseURL, opts.BaseURL)
	}

	n := &Notifier{
		endpoint: BuildURL(base.String(), target, opts.LegacyQuery),
		target:   target,
		timeout:  opts.Timeout,
		client:   opts.Client,
		logger:   opts.Logger,
		tracer:   opts.Tracer,
	}

	if n.timeout <= 0 {
		n.timeout = DefaultTimeout
	}

	if n.client == nil {
		n.client = &http.Client{}
	}

	if n.logger == nil {
		n.logger = slog.Default()
	}

	if n.tracer == nil {
		n.tracer = nooptrace.NewTracerProvider().Tracer("cachenotify")
	}

	return n, nil
}

// BuildURL returns the cache-update URL for target under base.
// The git URL is left unescaped; ':' and '/' are valid in a query component.
func BuildURL(base string, target Target, legacy bool) string {
	sep := "&"
	branch := url.QueryEscape(target.Branch)

	if legacy {
		sep = "?"
		branch = target.Branch
	}

	return strings.TrimRight(base, "/") + CachePath + "?dfScmUrl=" + target.GitURL() + sep + "branch=" + branch
}

// URL returns the endpoint this notifier posts to.
func (n *Notifier) URL() string { return n.endpoint }

// Notify posts the cache update in the background. The returned channel is
// buffered and receives exactly one value: nil on success or the failure.
func (n *Notifier) Notify(ctx context.Context) <-chan error {
	done := make(chan error, 1)

	go func() {
		done <- n.post(ctx)
	}()

	return done
}

func (n *Notifier) post(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	ctx, span := n.tracer.Start(ctx, "cache.notify",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			semconv.HTTPRequestMethodKey.String(http.MethodPost),
			attribute.String("cache.branch", n.target.Branch),
			attribute.String("cache.git_url", n.target.GitURL()),
		),
	)
	defer span.End()

	start := time.Now()

	err := n.do(ctx, span)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		n.logger.ErrorContext(ctx, "cache notification failed",
			"branch", n.target.Branch, "url", n.endpoint, "error", err)

		return err
	}

	n.logger.InfoContext(ctx, "cache notified",
		"branch", n.target.Branch, "duration", time.Since(start).Round(time.Millisecond))

	return nil
}

func (n *Notifier) do(ctx context.Context, span trace.Span) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, http.NoBody)
	if err != nil {
		return fmt.Errorf("build cache request: %w", err)
	}

	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("post cache update: %w", err)
	}
	defer resp.Body.Close()

	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxDrainBytes))

	span.SetAttributes(semconv.HTTPResponseStatusCode(resp.StatusCode))

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("%w: %s", ErrUnexpectedStatus, resp.Status)
	}

	return nil
}
