// Package didexchange implements the messages of the connection protocol:
// the invitation that travels out of band, and the request and response
// that build the pairwise over the wire.
package didexchange

import (
	"encoding/base64"
	"fmt"
	"net/url"

	"github.com/findy-network/findy-common-go/dto"
	"github.com/findy-network/findy-protocol-engine/std/decorator"
	"github.com/lainio/err2"
	"github.com/lainio/err2/try"
)

// Invitation defines the connection invitation message. It is not a wire
// message: it travels out of band, usually as an URL or a QR code, and
// gives the inviter's keys and endpoint so that the invitee can build the
// first envelope.
type Invitation struct {
	Type string `json:"@type,omitempty"`
	ID   string `json:"@id,omitempty"`

	Label    string `json:"label,omitempty"`
	ImageURL string `json:"imageUrl,omitempty"`

	SignKey         string `json:"signKey,omitempty"`
	EncKey          string `json:"encKey,omitempty"`
	ServiceEndpoint string `json:"serviceEndpoint,omitempty"`

	Thread *decorator.Thread `json:"~thread,omitempty"`
}

// Connection carries one party's connection data inside the request and
// response messages: its public keys and the endpoint the peer should
// deliver to.
type Connection struct {
	Label           string `json:"label,omitempty"`
	SignKey         string `json:"signKey"`
	EncKey          string `json:"encKey"`
	ServiceEndpoint string `json:"serviceEndpoint"`
}

// Request defines the connection request message.
type Request struct {
	Type string `json:"@type,omitempty"`
	ID   string `json:"@id,omitempty"`

	Label      string     `json:"label,omitempty"`
	Connection Connection `json:"connection"`

	Thread *decorator.Thread `json:"~thread,omitempty"`
}

// Response defines the connection response message.
type Response struct {
	Type string `json:"@type,omitempty"`
	ID   string `json:"@id,omitempty"`

	Connection Connection `json:"connection"`

	Thread *decorator.Thread `json:"~thread,omitempty"`
}

// InvitationURL renders the invitation to the URL form: the base URL with
// the base64url encoded invitation JSON as the c_i query parameter.
func InvitationURL(baseURL string, inv *Invitation) string {
	b64 := base64.URLEncoding.EncodeToString(dto.ToJSONBytes(inv))
	return fmt.Sprintf("%s?c_i=%s", baseURL, b64)
}

// ParseInvitation reads an invitation from its URL form or from plain
// JSON.
func ParseInvitation(s string) (inv *Invitation, err error) {
	defer err2.Annotatew("parse invitation", &err)

	data := []byte(s)
	if u, err := url.Parse(s); err == nil && u.Query().Get("c_i") != "" {
		data = try.To1(base64.URLEncoding.DecodeString(u.Query().Get("c_i")))
	}

	inv = &Invitation{}
	dto.FromJSON(data, inv)
	if inv.SignKey == "" || inv.ServiceEndpoint == "" {
		return nil, fmt.Errorf("invitation lacks keys or endpoint")
	}
	return inv, nil
}
