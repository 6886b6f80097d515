package repo

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// StartWatch polls the wish table every interval and wakes the standing
// subscriptions when its count or newest timestamp moves. It is needed only
// when other processes write to the same database; the Store already wakes
// subscriptions for its own writes. The baseline is read before StartWatch
// returns. Call stop once to end polling and wait for it. interval <= 0
// disables watching.
func (s *Store) StartWatch(ctx context.Context, interval time.Duration) (stop func()) {
	if interval <= 0 {
		return func() {}
	}
	ctx, cancel := context.WithCancel(ctx)
	seen := s.readWatermark(ctx)
	done := make(chan struct{})

	go func() {
		defer close(done)
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
			}
			n, latest, err := s.WishStats(ctx)
			if err != nil {
				if ctx.Err() == nil {
					log.Warn().Err(err).Msg("wish watch poll failed")
				}
				continue
			}
			if now := (watermark{n, latest}); !now.equal(seen) {
				seen = now
				s.notify()
			}
		}
	}()

	return func() {
		cancel()
		<-done
	}
}

type watermark struct {
	count  int64
	latest *time.Time
}

func (w watermark) equal(o watermark) bool {
	if w.count != o.count || (w.latest == nil) != (o.latest == nil) {
		return false
	}
	return w.latest == nil || w.latest.Equal(*o.latest)
}

// readWatermark reads the current stats. A failed read yields a mark no poll
// can match, so the first good poll wakes subscribers.
func (s *Store) readWatermark(ctx context.Context) watermark {
	n, latest, err := s.WishStats(ctx)
	if err != nil {
		return watermark{count: -1}
	}
	return watermark{n, latest}
}
