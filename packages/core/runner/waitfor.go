package runner

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/abdul-hamid-achik/reqflow/packages/core/env"
	"github.com/abdul-hamid-achik/reqflow/packages/core/parser"
	"github.com/abdul-hamid-achik/reqflow/packages/http"
)

const probeTimeout = 5 * time.Second

// waitForService polls cfg.URL until it answers with cfg.Status, the
// timeout elapses or ctx ends.
func (r *Runner) waitForService(ctx context.Context, cfg *parser.WaitFor, resolver *env.Resolver, log logrus.FieldLogger) error {
	url := resolver.Resolve(cfg.URL)
	log = log.WithFields(logrus.Fields{"url": url, "status": cfg.Status})
	log.WithField("timeout", cfg.Timeout).Info("waiting for service")

	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	// Probes bypass the recorder.
	probe := http.NewClient(
		http.WithTimeout(probeTimeout),
		http.WithValidateSSL(r.config.ValidateSSL),
		http.WithLogger(r.logger),
	)

	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()

	var lastErr error
	var lastStatus int
	for {
		raw, err := probe.Do(ctx, http.NewRequest("GET", url))
		if err == nil {
			lastStatus = raw.StatusCode
			if raw.StatusCode == cfg.Status {
				log.Info("service is ready")
				return nil
			}
		} else {
			lastErr = err
		}

		select {
		case <-ctx.Done():
			if lastStatus != 0 {
				return fmt.Errorf("service %s not ready after %v: got status %d, expected %d", url, cfg.Timeout, lastStatus, cfg.Status)
			}
			return fmt.Errorf("service %s not ready after %v: %w", url, cfg.Timeout, lastErr)
		case <-ticker.C:
		}
	}
}
