// Package service defines the transport address type shared by the
// delivery queue and the connection records.
package service

// Addr is a peer agent's delivery address: the endpoint URL envelopes are
// posted to and the public key they are sealed with.
type Addr struct {
	Endp string `json:"endpoint"`
	Key  string `json:"verkey"`
}
