package gateway

import "github.com/google/uuid"

// NewReference generates a unique merchant reference for requests that
// require one when the caller supplied neither an order id nor an
// idempotency key.
func NewReference() string {
	return uuid.NewString()
}
