// Package feed downloads and parses the gzip TSV title and name feeds
package feed

import (
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/mantonx/medialibrary/internal/logger"
	"github.com/mantonx/medialibrary/internal/metrics"
	gobreaker "github.com/sony/gobreaker/v2"
)

// Feed file names relative to the base URL
const (
	RatingsFeed    = "title.ratings.tsv.gz"
	BasicsFeed     = "title.basics.tsv.gz"
	PrincipalsFeed = "title.principals.tsv.gz"
	NamesFeed      = "name.basics.tsv.gz"
)

const breakerName = "feed-download"

// ErrInvalidLimit is returned when asking for a non-positive number of titles
var ErrInvalidLimit = errors.New("limit must be positive")

// FeedError identifies which download failed
type FeedError struct {
	Feed string
	Err  error
}

func (e *FeedError) Error() string {
	return fmt.Sprintf("feed %s: %v", e.Feed, e.Err)
}

func (e *FeedError) Unwrap() error {
	return e.Err
}

// StatusError is a non-2xx response from the feed host
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d", e.StatusCode)
}

// Client opens feed files over HTTP. Repeated failures open a circuit
// breaker so a dead feed host is not hammered by every scheduled run.
type Client struct {
	baseURL string
	http    *http.Client
	breaker *gobreaker.CircuitBreaker[*http.Response]
	log     hclog.Logger
}

// NewClient creates a feed client. timeout bounds a whole download, body included.
func NewClient(baseURL string, timeout time.Duration) *Client {
	log := logger.Named("feed")
	metrics.FeedBreakerState.WithLabelValues(breakerName).Set(0)

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		log:     log,
		breaker: gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
			Name:        breakerName,
			MaxRequests: 1,
			Interval:    10 * time.Minute,
			Timeout:     5 * time.Minute,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 3
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				log.Warn("circuit breaker state change", "name", name, "from", from.String(), "to", to.String())
				metrics.FeedBreakerState.WithLabelValues(name).Set(float64(to))
			},
		}),
	}
}

// Open downloads one feed and returns the decompressed stream. The caller closes it.
func (c *Client) Open(ctx context.Context, feed string) (io.ReadCloser, error) {
	url := c.baseURL + "/" + feed

	resp, err := c.breaker.Execute(func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		resp, err := c.http.Do(req)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
			resp.Body.Close()
			return nil, &StatusError{StatusCode: resp.StatusCode}
		}
		return resp, nil
	})
	if err != nil {
		result := "failure"
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			result = "rejected"
		}
		metrics.RecordFeedDownload(feed, result)
		return nil, &FeedError{Feed: feed, Err: err}
	}

	gz, err := gzip.NewReader(resp.Body)
	if err != nil {
		resp.Body.Close()
		metrics.RecordFeedDownload(feed, "failure")
		return nil, &FeedError{Feed: feed, Err: fmt.Errorf("gzip: %w", err)}
	}

	metrics.RecordFeedDownload(feed, "success")
	c.log.Debug("feed opened", "feed", feed, "url", url)
	return &gzipBody{Reader: gz, body: resp.Body}, nil
}

type gzipBody struct {
	*gzip.Reader
	body io.ReadCloser
}

func (g *gzipBody) Close() error {
	gzErr := g.Reader.Close()
	if err := g.body.Close(); err != nil {
		return err
	}
	return gzErr
}
