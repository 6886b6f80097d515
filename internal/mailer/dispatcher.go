package mailer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/tbourn/go-wishwall-backend/internal/domain"
)

var mailsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "wish_mail_jobs_total",
		Help: "Notification jobs processed by outcome.",
	},
	[]string{"outcome"},
)

func init() {
	prometheus.MustRegister(mailsTotal)
}

// Queue is the store side of the notification queue.
type Queue interface {
	ListMailJobs(ctx context.Context, limit int) ([]domain.MailJob, error)
	DeleteMailJob(ctx context.Context, id string) error
}

// ReplayPurger drops expired submission replays.
type ReplayPurger interface {
	PurgeReplays(ctx context.Context) (int64, error)
}

// Dispatcher periodically delivers queued jobs.
type Dispatcher struct {
	Queue  Queue
	Sender Sender
	Batch  int
	// Purger, when set, is swept after every tick.
	Purger ReplayPurger
	// Timeout bounds one tick. Zero means one minute.
	Timeout time.Duration

	cron *cron.Cron
}

// NewDispatcher wires queue to sender, batch jobs per tick.
func NewDispatcher(q Queue, s Sender, batch int) *Dispatcher {
	if batch < 1 {
		batch = 1
	}
	return &Dispatcher{Queue: q, Sender: s, Batch: batch}
}

// DispatchOnce sends up to Batch jobs in queue order. A job is deleted only
// after its send succeeded. Individual failures are collected and the rest of
// the batch still runs.
func (d *Dispatcher) DispatchOnce(ctx context.Context) (sent int, err error) {
	jobs, err := d.Queue.ListMailJobs(ctx, d.Batch)
	if err != nil {
		return 0, fmt.Errorf("list mail jobs: %w", err)
	}
	var errs []error
	for _, j := range jobs {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
		if serr := d.Sender.Send(ctx, j.Recipient, j.Subject, j.HTML); serr != nil {
			mailsTotal.WithLabelValues("send_failed").Inc()
			errs = append(errs, fmt.Errorf("job %s: %w", j.ID, serr))
			continue
		}
		if derr := d.Queue.DeleteMailJob(ctx, j.ID); derr != nil {
			mailsTotal.WithLabelValues("delete_failed").Inc()
			errs = append(errs, fmt.Errorf("job %s delete: %w", j.ID, derr))
			continue
		}
		mailsTotal.WithLabelValues("sent").Inc()
		sent++
	}
	return sent, errors.Join(errs...)
}

// Start schedules DispatchOnce on spec. Overlapping ticks are skipped.
func (d *Dispatcher) Start(spec string) error {
	l := cronLogger{log.With().Str("component", "mailer").Logger()}
	c := cron.New(cron.WithLogger(l), cron.WithChain(cron.Recover(l), cron.SkipIfStillRunning(l)))
	if _, err := c.AddFunc(spec, d.tick); err != nil {
		return fmt.Errorf("schedule mailer: %w", err)
	}
	d.cron = c
	c.Start()
	return nil
}

// Stop halts scheduling and waits for a running tick, or until ctx ends.
func (d *Dispatcher) Stop(ctx context.Context) {
	if d.cron == nil {
		return
	}
	select {
	case <-d.cron.Stop().Done():
	case <-ctx.Done():
	}
}

func (d *Dispatcher) tick() {
	timeout := d.Timeout
	if timeout <= 0 {
		timeout = time.Minute
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	sent, err := d.DispatchOnce(ctx)
	switch {
	case err != nil:
		log.Warn().Err(err).Int("sent", sent).Msg("mail dispatch incomplete")
	case sent > 0:
		log.Info().Int("sent", sent).Msg("mail dispatch")
	}

	if d.Purger == nil {
		return
	}
	if n, err := d.Purger.PurgeReplays(ctx); err != nil {
		log.Warn().Err(err).Msg("replay purge failed")
	} else if n > 0 {
		log.Debug().Int64("purged", n).Msg("expired replays purged")
	}
}

// cronLogger adapts zerolog to cron.Logger.
type cronLogger struct{ l zerolog.Logger }

func (c cronLogger) Info(msg string, kv ...interface{}) {
	c.l.Debug().Fields(kv).Msg(msg)
}

func (c cronLogger) Error(err error, msg string, kv ...interface{}) {
	c.l.Error().Err(err).Fields(kv).Msg(msg)
}
