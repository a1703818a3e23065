package nats

import (
	"context"
	"errors"
	"testing"

	"github.com/nats-io/nats.go"

	"github.com/clinicore/medical-assistant/internal/core/domain"
)

func TestClassifyNATSErrorRetryableOnConnectionLoss(t *testing.T) {
	for _, err := range []error{nats.ErrNoServers, nats.ErrTimeout, nats.ErrConnectionClosed, nats.ErrDisconnected} {
		class := classifyNATSError(err)
		if !class.Retryable || !class.RecordFailure {
			t.Fatalf("classify(%v) = %+v, want retryable recorded failure", err, class)
		}
	}
}

func TestClassifyNATSErrorContextCancelNotRetried(t *testing.T) {
	class := classifyNATSError(context.Canceled)
	if class.Retryable || class.RecordFailure {
		t.Fatalf("classify(context.Canceled) = %+v, want neither retry nor failure", class)
	}
}

func TestWrapTemporaryOnRetryableOnly(t *testing.T) {
	wrapped := wrapTemporaryIfNeeded(nats.ErrDisconnected)
	if !domain.IsKind(wrapped, domain.ErrTemporary) {
		t.Fatalf("expected temporary kind, got %v", wrapped)
	}

	plain := errors.New("bad subject")
	if got := wrapTemporaryIfNeeded(plain); got != plain {
		t.Fatalf("non-retryable error should pass through, got %v", got)
	}
}
