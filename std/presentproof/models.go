// Package presentproof implements the Aries present proof protocol
// messages. The proof payloads travel as base64 attachments; this engine
// treats them as opaque bytes and leaves their meaning to the verifier
// implementation.
package presentproof

import "github.com/findy-network/findy-protocol-engine/std/decorator"

// Request is the proof request message sent by the verifier.
type Request struct {
	Type                 string                 `json:"@type,omitempty"`
	ID                   string                 `json:"@id,omitempty"`
	Comment              string                 `json:"comment,omitempty"`
	RequestPresentations []decorator.Attachment `json:"request_presentations~attach,omitempty"`
	Thread               *decorator.Thread      `json:"~thread,omitempty"`
}

// Presentation is the proof message sent by the prover in response to a
// valid Request.
type Presentation struct {
	Type                 string                 `json:"@type,omitempty"`
	ID                   string                 `json:"@id,omitempty"`
	Comment              string                 `json:"comment,omitempty"`
	PresentationAttaches []decorator.Attachment `json:"presentations~attach,omitempty"`
	Thread               *decorator.Thread      `json:"~thread,omitempty"`
}

// Propose is the optional proposal from the prover, used to initiate the
// protocol from the prover's end.
type Propose struct {
	Type                 string            `json:"@type,omitempty"`
	ID                   string            `json:"@id,omitempty"`
	Comment              string            `json:"comment,omitempty"`
	PresentationProposal *Preview          `json:"presentation_proposal,omitempty"`
	Thread               *decorator.Thread `json:"~thread,omitempty"`
}

// Preview names the attributes and predicates the prover proposes to
// present.
type Preview struct {
	Type       string      `json:"@type,omitempty"`
	Attributes []Attribute `json:"attributes"`
	Predicates []Predicate `json:"predicates"`
}

type Attribute struct {
	Name      string `json:"name"`
	CredDefID string `json:"cred_def_id,omitempty"`
	MimeType  string `json:"mime_type,omitempty"`
	Value     string `json:"value,omitempty"`
	Referent  string `json:"referent,omitempty"`
}

type Predicate struct {
	Name      string `json:"name"`
	CredDefID string `json:"cred_def_id"`
	Predicate string `json:"predicate"` // "<", "<=", ">=", ">"
	Threshold string `json:"threshold"`
}
