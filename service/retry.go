package service

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	log "github.com/sirupsen/logrus"
)

// retryInitialInterval is the first wait between attempts of a conflicting transaction
const retryInitialInterval = 50 * time.Millisecond

// withRetry runs fn again while it fails with ErrTransientStore, up to
// maxRetries extra attempts with jittered exponential backoff. Other errors
// are returned immediately. onRetry may be nil.
func withRetry(ctx context.Context, op string, maxRetries int, onRetry func(), fn func() error) error {
	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = retryInitialInterval
	expo.MaxInterval = time.Second
	expo.MaxElapsedTime = 0

	var policy backoff.BackOff = expo
	if maxRetries >= 0 {
		policy = backoff.WithMaxRetries(expo, uint64(maxRetries))
	}

	attempt := func() error {
		err := fn()
		if err == nil || errors.Is(err, ErrTransientStore) {
			return err
		}
		return backoff.Permanent(err)
	}

	notify := func(err error, wait time.Duration) {
		log.WithFields(log.Fields{
			"operation": op,
			"wait":      wait,
		}).WithError(err).Warn("Transient store failure, retrying")
		if onRetry != nil {
			onRetry()
		}
	}

	return backoff.RetryNotify(attempt, backoff.WithContext(policy, ctx), notify)
}

// inTransaction runs fn inside a fresh unit of work, committing on success
// and rolling back on failure. Events published on the unit of work are
// delivered only after the commit.
func inTransaction(ctx context.Context, factory UnitOfWorkFactory, fn func(uow UnitOfWork) error) error {
	uow := factory.Create()
	if err := uow.Begin(ctx); err != nil {
		return err
	}
	defer uow.Rollback()

	if err := fn(uow); err != nil {
		return err
	}

	return uow.Commit()
}
