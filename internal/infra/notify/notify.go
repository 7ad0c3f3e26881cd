// Package notify delivers escalation alerts to operators. Notification is
// advisory: the escalation store is the source of truth and a failed alert
// never changes a disposition.
package notify

import (
	"context"
	"fmt"

	"github.com/vietddude/salvage/internal/core/domain"
)

// NotificationError reports a failed alert delivery. It is logged and
// contained; the escalation disposition stands.
type NotificationError struct {
	Target string
	Err    error
}

func (e *NotificationError) Error() string {
	return fmt.Sprintf("notification to %s failed: %v", e.Target, e.Err)
}

func (e *NotificationError) Unwrap() error { return e.Err }

// Notifier sends an escalation alert.
type Notifier interface {
	Notify(ctx context.Context, entry domain.EscalationEntry) error
}

// NopNotifier discards alerts. Used when no notification transport is
// configured.
type NopNotifier struct{}

func (NopNotifier) Notify(ctx context.Context, entry domain.EscalationEntry) error { return nil }
