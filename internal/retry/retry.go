// Package retry implements the bounded reconnect policy shared by the
// startup database connect and the audit consumer: at most three attempts
// with exponential backoff, and only for transient "unavailable" style
// failures. Record CRUD paths never retry; a transient failure there
// surfaces to the caller as service unavailable.
package retry

import (
	"context"
	"database/sql/driver"
	"errors"
	"log"
	"net"
	"strings"
	"time"
)

// MaxAttempts bounds how many times Do runs the operation.
const MaxAttempts = 3

// sleep is swapped out in tests to avoid real backoff waits.
var sleep = func(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Transient reports whether err belongs to the retryable error class:
// connection-level failures and deadline expiry. Anything else (bad
// credentials, constraint violations, malformed input) is permanent and
// retrying would only repeat it.
func Transient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, driver.ErrBadConn) {
		return true
	}
	var nerr net.Error
	if errors.As(err, &nerr) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, s := range []string{"unavailable", "deadline exceeded", "connection refused", "connection reset", "broken pipe", "i/o timeout"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

// Do runs op up to MaxAttempts times, sleeping 2^attempt seconds between
// tries. It returns the last error when attempts are exhausted, the
// operation fails permanently, or the context ends during backoff. name
// tags the retry log lines.
func Do(ctx context.Context, name string, op func(context.Context) error) error {
	var err error
	for attempt := 1; attempt <= MaxAttempts; attempt++ {
		if err = op(ctx); err == nil {
			return nil
		}
		if !Transient(err) || attempt == MaxAttempts {
			return err
		}
		d := time.Duration(1<<uint(attempt)) * time.Second
		log.Printf("%s: attempt %d/%d failed: %v; retrying in %s", name, attempt, MaxAttempts, err, d)
		if serr := sleep(ctx, d); serr != nil {
			return err
		}
	}
	return err
}
