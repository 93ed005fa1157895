package service

import (
	"context"
	"time"
)

// Notifier delivers the "2FA enabled" notice. Calls are detached from the
// request and failures are only logged.
type Notifier interface {
	NotifyTwoFactorEnabled(ctx context.Context, email, firstName string) error
}

// QRRenderer turns a provisioning URI into an image data URL.
type QRRenderer interface {
	RenderDataURL(uri string) (string, error)
}

// Observer receives one event per exposed operation, labelled by
// operation name and Kind(err).
type Observer interface {
	Observe(op, outcome string)
}

type nopObserver struct{}

func (nopObserver) Observe(string, string) {}

func observerOr(o Observer) Observer {
	if o == nil {
		return nopObserver{}
	}
	return o
}

func nowOr(now func() time.Time) time.Time {
	if now == nil {
		return time.Now().UTC()
	}
	return now().UTC()
}

const defaultNotifyTimeout = 10 * time.Second
