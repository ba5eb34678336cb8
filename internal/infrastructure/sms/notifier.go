package sms

import (
	"context"
	"fmt"
	"strings"

	"condo/internal/domain"
	"condo/internal/infrastructure/storage/postgres"
	"condo/pkg/logger"
)

// Notifier turns charge events from the outbox into text messages.
type Notifier struct {
	sender Sender
}

// NewNotifier creates a notifier.
func NewNotifier(sender Sender) *Notifier {
	return &Notifier{sender: sender}
}

// Register binds the notifier to the event types it handles.
func (n *Notifier) Register(mux *postgres.OutboxMux) {
	mux.Handle(domain.EventChargeIssued, postgres.OutboxHandlerFunc(n.chargeIssued))
}

func (n *Notifier) chargeIssued(ctx context.Context, msg *postgres.OutboxMessage) error {
	var notice domain.ChargeNotice
	if err := msg.Decode(&notice); err != nil {
		return err
	}
	if strings.TrimSpace(notice.Mobile) == "" {
		logger.Debug(ctx, "charge notice without recipient", "charge_id", notice.ChargeID)
		return nil
	}

	if err := n.sender.Send(ctx, notice.Mobile, IssuedText(notice)); err != nil {
		return fmt.Errorf("notify %s: %w", notice.Mobile, err)
	}
	logger.Debug(ctx, "charge notice sent", "charge_id", notice.ChargeID, "mobile", notice.Mobile)
	return nil
}

// IssuedText renders the message sent when a charge is issued.
func IssuedText(n domain.ChargeNotice) string {
	name := strings.TrimSpace(n.Name)
	if name == "" {
		name = "resident"
	}
	return fmt.Sprintf("Dear %s, the charge %q of %s Rials has been issued for your unit.",
		name, n.ChargeTitle, groupDigits(n.Amount))
}

// groupDigits formats 1200000 as 1,200,000.
func groupDigits(v int64) string {
	s := fmt.Sprintf("%d", v)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	var b strings.Builder
	for i, r := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	if neg {
		return "-" + b.String()
	}
	return b.String()
}
