package auction

import "time"

// RunUnwindSweep walks open auctions once emergency shutdown is active
// and submits a cancellation request for each, at most budget per
// invocation. The time-boxed lock converts at-least-once delivery of
// sweep steps into effectively-at-most-once processing per window; the
// persisted cursor resumes across steps without reprocessing or
// starving entries. Returns how many auctions were processed.
func (e *Engine) RunUnwindSweep(now time.Time) (int, error) {
	if !e.deps.Shutdown.IsShutdown() {
		return 0, nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	locked, err := e.store.TryAcquireSweepLock(now, e.cfg.SweepLockDuration)
	if err != nil {
		return 0, err
	}
	if !locked {
		e.logger.Debug("unwind sweep lock held, skipping step")
		return 0, nil
	}

	budget, err := e.store.SweepBudget()
	if err != nil {
		return 0, err
	}
	var start AuctionID
	if cursor, ok, err := e.store.SweepCursor(); err != nil {
		return 0, err
	} else if ok {
		start = cursor
	}

	processed := 0
	exhausted := true
	var last AuctionID
	err = e.store.AscendAuctions(start, func(a *CollateralAuction) bool {
		if processed >= budget {
			exhausted = false
			return false
		}
		// Fire and forget: the cancellation happens when the submitted
		// work is processed, through the validated Cancel path. A
		// duplicate delivery just fails with ErrAuctionNotExists.
		if err := e.deps.Submitter.SubmitCancel(a.ID); err != nil {
			e.logger.Warn("cancel submission failed", "auction", a.ID, "error", err)
		} else {
			e.metrics.sweepSubmissions.Inc()
		}
		processed++
		last = a.ID
		return true
	})
	if err != nil {
		return processed, err
	}

	if exhausted {
		err = e.store.ClearSweepCursor()
	} else {
		err = e.store.SetSweepCursor(last + 1)
	}
	if err != nil {
		return processed, err
	}
	e.logger.Info("unwind sweep step", "processed", processed, "resuming", !exhausted)
	return processed, nil
}
