package utils

import "github.com/google/uuid"

// UUID returns a new random identifier. Used for message IDs, exchange
// nonces, and delivery queue item keys.
func UUID() string {
	return uuid.New().String()
}
