package solana

import "context"

// ConfirmationClient defines the WebSocket signature-confirmation interface.
type ConfirmationClient interface {
	// SubscribeSignature subscribes to the confirmation of a submitted
	// signature. The channel receives exactly one notification and is then
	// closed; it is also closed without a value if the connection drops
	// before the notification arrives.
	SubscribeSignature(ctx context.Context, signature string) (<-chan SignatureNotification, error)

	// Close closes the WebSocket connection.
	Close() error
}

// SignatureNotification is the confirmation result for one signature.
type SignatureNotification struct {
	Signature string
	Slot      int64
	Err       interface{}
}
