package distribution

import (
	"context"
	"fmt"
	"time"

	"spl-distributor/internal/solana"
)

// Confirmer waits until a submitted signature reaches the configured
// commitment level, or fails.
type Confirmer interface {
	Confirm(ctx context.Context, signature string) error
}

// PollingConfirmer confirms signatures by polling getSignatureStatuses.
type PollingConfirmer struct {
	rpc      solana.RPCClient
	interval time.Duration
	timeout  time.Duration
}

// NewPollingConfirmer creates a polling confirmer.
func NewPollingConfirmer(rpc solana.RPCClient, interval, timeout time.Duration) *PollingConfirmer {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	if timeout <= 0 {
		timeout = 90 * time.Second
	}
	return &PollingConfirmer{rpc: rpc, interval: interval, timeout: timeout}
}

// Confirm polls until the signature is confirmed or finalized.
func (p *PollingConfirmer) Confirm(ctx context.Context, signature string) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		statuses, err := p.rpc.GetSignatureStatuses(ctx, []string{signature})
		if err == nil && len(statuses) > 0 && statuses[0] != nil {
			status := statuses[0]
			if status.Err != nil {
				return fmt.Errorf("transaction %s failed on chain: %v", signature, status.Err)
			}
			switch status.ConfirmationStatus {
			case "confirmed", "finalized":
				return nil
			}
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("confirmation of %s: %w", signature, ctx.Err())
		case <-ticker.C:
		}
	}
}

// WSConfirmer confirms signatures through a WebSocket subscription, falling
// back to polling when the subscription fails or the connection drops.
type WSConfirmer struct {
	client   solana.ConfirmationClient
	fallback *PollingConfirmer
}

// NewWSConfirmer creates a WebSocket confirmer with a polling fallback.
func NewWSConfirmer(client solana.ConfirmationClient, fallback *PollingConfirmer) *WSConfirmer {
	return &WSConfirmer{client: client, fallback: fallback}
}

// Confirm waits for the one-shot signature notification.
func (w *WSConfirmer) Confirm(ctx context.Context, signature string) error {
	ch, err := w.client.SubscribeSignature(ctx, signature)
	if err != nil {
		return w.fallback.Confirm(ctx, signature)
	}

	select {
	case notif, ok := <-ch:
		if !ok {
			// Connection dropped before the notification arrived.
			return w.fallback.Confirm(ctx, signature)
		}
		if notif.Err != nil {
			return fmt.Errorf("transaction %s failed on chain: %v", signature, notif.Err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("confirmation of %s: %w", signature, ctx.Err())
	}
}
