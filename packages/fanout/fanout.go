// Package fanout dispatches independent request/response cycles
// concurrently. Each cycle owns its request and its decoded response;
// nothing is shared between cycles and no completion order is assumed.
package fanout

import (
	"context"

	"github.com/abdul-hamid-achik/reqflow/packages/http"
	"github.com/abdul-hamid-achik/reqflow/packages/response"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// DefaultConcurrency is the number of cycles in flight when none is set.
const DefaultConcurrency = 5

type options struct {
	concurrency int
	rate        float64
}

type Option func(*options)

// WithConcurrency bounds the number of cycles in flight.
func WithConcurrency(n int) Option {
	return func(o *options) {
		o.concurrency = n
	}
}

// WithRate caps dispatch at perSecond cycles per second. Zero means no cap.
func WithRate(perSecond float64) Option {
	return func(o *options) {
		o.rate = perSecond
	}
}

// Each calls fn for every index in [0, n), honouring the concurrency and
// rate options, and returns the per-index errors. A cycle that could not
// start because ctx ended gets ctx's error.
func Each(ctx context.Context, n int, fn func(ctx context.Context, i int) error, opts ...Option) []error {
	o := &options{concurrency: DefaultConcurrency}
	for _, opt := range opts {
		opt(o)
	}
	if o.concurrency < 1 {
		o.concurrency = DefaultConcurrency
	}

	var limiter *rate.Limiter
	if o.rate > 0 {
		limiter = rate.NewLimiter(rate.Limit(o.rate), 1)
	}

	errs := make([]error, n)
	var g errgroup.Group
	g.SetLimit(o.concurrency)

	for i := 0; i < n; i++ {
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				for j := i; j < n; j++ {
					errs[j] = err
				}
				break
			}
		}
		if err := ctx.Err(); err != nil {
			for j := i; j < n; j++ {
				errs[j] = err
			}
			break
		}

		g.Go(func() error {
			errs[i] = fn(ctx, i)
			return nil
		})
	}

	_ = g.Wait()
	return errs
}

// Call is one cycle: a request and the decoding options for its response.
type Call struct {
	Request *http.Request
	Options []response.Option
}

// Result is the outcome of the Call at the same index.
type Result struct {
	Response *response.Response
	Err      error
}

// Run sends every call through client and decodes each response on its
// own. Results are indexed like calls.
func Run(ctx context.Context, client *http.Client, calls []Call, opts ...Option) []Result {
	results := make([]Result, len(calls))
	errs := Each(ctx, len(calls), func(ctx context.Context, i int) error {
		raw, err := client.Do(ctx, calls[i].Request)
		if err != nil {
			return err
		}
		resp, err := response.New(raw, calls[i].Options...)
		if err != nil {
			return err
		}
		results[i].Response = resp
		return nil
	}, opts...)

	for i, err := range errs {
		results[i].Err = err
	}
	return results
}
