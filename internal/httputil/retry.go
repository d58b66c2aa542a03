// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package httputil provides HTTP helpers shared by the remote clients.
package httputil

import (
	"context"
	"io"
	"math"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// RetryBaseDelay controls the base duration for exponential backoff on
// HTTP 429 responses. Tests override this to avoid real sleeps.
var RetryBaseDelay = 10 * time.Second

const defaultMaxRetries = 5

// Retrier executes requests and retries on HTTP 429 (Too Many Requests)
// with exponential backoff: RetryBaseDelay, doubled on every attempt.
type Retrier struct {
	Client     *http.Client
	MaxRetries int
	Log        *zap.Logger
}

// Do sends req. After MaxRetries rate-limited attempts the last 429
// response is returned so the caller can inspect it. Requests with a body
// must set GetBody (http.NewRequest does so for bytes and strings readers).
func (r *Retrier) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	client := r.Client
	if client == nil {
		client = http.DefaultClient
	}
	maxRetries := r.MaxRetries
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}
	log := r.Log
	if log == nil {
		log = zap.NewNop()
	}

	for attempt := 0; ; attempt++ {
		attemptReq := req.Clone(ctx)
		if req.Body != nil && req.GetBody != nil && attempt > 0 {
			body, err := req.GetBody()
			if err != nil {
				return nil, err
			}
			attemptReq.Body = body
		}

		resp, err := client.Do(attemptReq)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode != http.StatusTooManyRequests || attempt >= maxRetries {
			return resp, nil
		}

		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()

		backoff := time.Duration(math.Pow(2, float64(attempt))) * RetryBaseDelay
		log.Debug("rate limited, backing off",
			zap.String("url", req.URL.Redacted()),
			zap.Duration("backoff", backoff),
			zap.Int("attempt", attempt+1),
			zap.Int("max_retries", maxRetries))

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
	}
}

// DoWithRetry is the one-shot form of Retrier.Do.
func DoWithRetry(ctx context.Context, client *http.Client, req *http.Request, maxRetries int) (*http.Response, error) {
	r := Retrier{Client: client, MaxRetries: maxRetries}
	return r.Do(ctx, req)
}
