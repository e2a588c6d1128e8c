// Package cancel provides the cooperative cancellation flag polled by long-running
// simulations. A simulation never blocks on the flag; it only reads it at fixed
// points and returns early once it is set.
package cancel

import (
	"context"
	"sync/atomic"
)

// Checker reports whether the work it guards should stop.
type Checker interface {
	Cancelled() bool
}

// Token is a shared, settable cancellation flag. The zero value is ready to use.
// Safe for concurrent use.
type Token struct {
	flag atomic.Bool
}

// New returns an unset token.
func New() *Token {
	return &Token{}
}

// Cancel sets the flag. Calling it more than once is harmless.
func (t *Token) Cancel() {
	t.flag.Store(true)
}

// Cancelled reports whether Cancel has been called. A nil token is never cancelled.
func (t *Token) Cancelled() bool {
	if t == nil {
		return false
	}
	return t.flag.Load()
}

type ctxChecker struct {
	ctx context.Context
}

func (c ctxChecker) Cancelled() bool {
	return c.ctx.Err() != nil
}

// FromContext adapts a context so that cancellation or deadline expiry of ctx
// is observed as a set flag.
func FromContext(ctx context.Context) Checker {
	return ctxChecker{ctx: ctx}
}

type anyOf []Checker

func (a anyOf) Cancelled() bool {
	for _, c := range a {
		if c != nil && c.Cancelled() {
			return true
		}
	}
	return false
}

// Any returns a checker that is cancelled as soon as one of cs is.
func Any(cs ...Checker) Checker {
	return anyOf(cs)
}

type never struct{}

func (never) Cancelled() bool { return false }

// Never is a checker that is never cancelled.
var Never Checker = never{}

// IsCancelled is a nil-tolerant helper for callers holding a possibly nil Checker.
func IsCancelled(c Checker) bool {
	return c != nil && c.Cancelled()
}
