package opendkim

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/synqronlabs/opendkim/dkim"
)

// Resolve runs the registered handler of every pending operation and posts
// the results. Handlers run concurrently; results are posted only after all
// of them have returned, so a failed handler leaves every operation pending.
func (s *Session) Resolve(ctx context.Context) error {
	ops, err := s.PendingOperations()
	if err != nil || len(ops) == 0 {
		return err
	}
	hs := s.engine.registry()

	results := make([]result, len(ops))
	eg, ctx := errgroup.WithContext(ctx)
	for i, op := range ops {
		eg.Go(func() error {
			res, err := hs.run(ctx, s, op)
			if err != nil {
				return fmt.Errorf("%s handler: %w", op.Kind, err)
			}
			results[i] = res
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return err
	}

	for i, op := range ops {
		if err := s.post(op.Kind, results[i]); err != nil {
			return err
		}
	}
	return nil
}

// Run calls step until it stops asking to try again, resolving pending
// operations in between. It gives up with ErrRetryLimit after Config.MaxRetries
// attempts.
func (s *Session) Run(ctx context.Context, step func() error) error {
	for range s.engine.cfg.MaxRetries {
		err := step()
		if !errors.Is(err, dkim.StatCBTryAgain) {
			return err
		}
		if err := s.Resolve(ctx); err != nil {
			return err
		}
	}
	return fmt.Errorf("%w: %s", ErrRetryLimit, s.id)
}

// ProcessMessage feeds a complete raw message and runs EOM, resolving
// callbacks along the way.
func (s *Session) ProcessMessage(ctx context.Context, msg []byte) (testKey bool, err error) {
	sent := false
	err = s.Run(ctx, func() error {
		if sent {
			return s.Chunk(ctx, nil)
		}
		sent = true
		return s.Chunk(ctx, msg)
	})
	if err != nil {
		return false, err
	}
	if err := s.Run(ctx, func() error { return s.Chunk(ctx, nil) }); err != nil {
		return false, err
	}
	err = s.Run(ctx, func() error {
		var err error
		testKey, err = s.EOM(ctx)
		return err
	})
	return testKey, err
}
