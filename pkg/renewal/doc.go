// Package renewal provides a background worker driving the unattended parts
// of the subscription lifecycle: auto-renewal inside the seven-day window,
// grace-period stamping once a subscription passes its end date, and
// will-expire notifications through the event sink.
//
// The worker pulls candidates from a Source and classifies each one against
// the injected clock, so the backing query stays coarse and cheap. A sweep
// runs on an interval (or on demand via Sweep for cron-driven deployments):
//
//	worker, err := renewal.New(svc, source,
//		renewal.WithInterval(15*time.Minute),
//		renewal.WithSink(sink),
//	)
//	if err != nil {
//		return err
//	}
//	go worker.Run(ctx)
//
// Exactly one worker instance should run per deployment; candidates are
// processed sequentially so auto-renewals are never attempted concurrently
// for the same subscription.
package renewal
