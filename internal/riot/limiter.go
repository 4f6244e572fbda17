package riot

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Budget enforces Riot's dual rate-limit windows (a short per-second cap
// and a longer per-two-minutes cap) using two independent token buckets,
// using golang.org/x/time/rate for both. A request is admitted only once
// both limiters allow it.
type Budget struct {
	short *rate.Limiter
	long  *rate.Limiter

	// marginFraction is the proactive safety margin: a
	// request is held back, without even issuing a Wait, once the long
	// window's available tokens drop below marginFraction of its burst.
	marginFraction float64
}

// NewBudget builds a Budget from Riot's dual rate limits given as numbers;
// it parses no headers. The header value "20:1,100:120", for example,
// corresponds to shortLimit=20 over 1s and longLimit=100 over 120s.
func NewBudget(shortLimit int, shortWindowSeconds int, longLimit int, longWindowSeconds int, marginFraction float64) *Budget {
	if marginFraction <= 0 {
		marginFraction = 0.1
	}
	return &Budget{
		short: rate.NewLimiter(rate.Limit(float64(shortLimit)/float64(shortWindowSeconds)), shortLimit),
		long: rate.NewLimiter(rate.Limit(float64(longLimit)/float64(longWindowSeconds)), longLimit),
		marginFraction: marginFraction,
	}
}

// Saturated reports whether the long window's remaining tokens have fallen
// below the configured safety margin, without consuming a token. The
// Collection Engine checks this before dispatching a worker so a
// near-exhausted budget visibly slows fan-out instead of piling up
// blocked Wait calls.
func (b *Budget) Saturated() bool {
	return b.long.TokensAt(time.Now()) < float64(b.long.Burst())*b.marginFraction
}

// Wait blocks until both the short and long windows admit one request, or
// ctx is cancelled first. The proactive margin check runs before any
// token is consumed: when the long window has dipped below the safety
// margin, the caller sleeps until the window refills past it, so a
// near-exhausted budget slows down before the remote API ever sees the
// overrun.
func (b *Budget) Wait(ctx context.Context) error {
	if err := b.waitForMargin(ctx); err != nil {
		return err
	}
	if err := b.long.Wait(ctx); err != nil {
		return err
	}
	return b.short.Wait(ctx)
}

func (b *Budget) waitForMargin(ctx context.Context) error {
	now := time.Now()
	margin := float64(b.long.Burst()) * b.marginFraction
	tokens := b.long.TokensAt(now)
	if tokens >= margin {
		return nil
	}

	need := margin - tokens
	delay := time.Duration(need / float64(b.long.Limit()) * float64(time.Second))
	if delay <= 0 {
		return nil
	}
	t := time.NewTimer(delay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
