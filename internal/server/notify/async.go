package notify

import (
	"context"
	"sync"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/logging"
)

// Notifier matches services.Notifier.
type Notifier interface {
	SendOTP(ctx context.Context, email, code string) error
	SendGeneratedPassword(ctx context.Context, email, password string) error
}

// DefaultSendTimeout bounds a single background delivery.
const DefaultSendTimeout = 30 * time.Second

// Async delivers notifications in the background so requests never wait on
// the mail provider. Failures are logged. Wait drains pending deliveries
// on shutdown.
type Async struct {
	next    Notifier
	log     logging.Logger
	timeout time.Duration

	wg sync.WaitGroup
}

func NewAsync(next Notifier, log logging.Logger, timeout time.Duration) *Async {
	if log == nil {
		log = logging.Nop{}
	}
	if timeout <= 0 {
		timeout = DefaultSendTimeout
	}
	return &Async{next: next, log: log.With("module", "notify"), timeout: timeout}
}

func (a *Async) SendOTP(ctx context.Context, email, code string) error {
	a.dispatch(ctx, "otp", email, func(ctx context.Context) error {
		return a.next.SendOTP(ctx, email, code)
	})
	return nil
}

func (a *Async) SendGeneratedPassword(ctx context.Context, email, password string) error {
	a.dispatch(ctx, "generated password", email, func(ctx context.Context) error {
		return a.next.SendGeneratedPassword(ctx, email, password)
	})
	return nil
}

func (a *Async) dispatch(ctx context.Context, kind, email string, send func(context.Context) error) {
	// detach from the request so a finished response does not cancel delivery
	ctx = context.WithoutCancel(ctx)

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()

		ctx, cancel := context.WithTimeout(ctx, a.timeout)
		defer cancel()

		if err := send(ctx); err != nil {
			a.log.Error(ctx, "notification failed", "kind", kind, "email", email, "error", err)
			return
		}
		a.log.Debug(ctx, "notification sent", "kind", kind, "email", email)
	}()
}

// Wait blocks until pending deliveries finish or ctx is done.
func (a *Async) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
