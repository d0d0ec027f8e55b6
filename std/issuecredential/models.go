// Package issuecredential implements the Aries issue credential protocol
// messages. The credential payloads travel as base64 attachments; this
// engine treats them as opaque bytes and leaves their meaning to the
// issuer implementation.
package issuecredential

import "github.com/findy-network/findy-protocol-engine/std/decorator"

// Propose is an optional message sent by the potential holder to the
// issuer to initiate the protocol or to ask for adjustments to an offer.
type Propose struct {
	ID   string `json:"@id,omitempty"`
	Type string `json:"@type,omitempty"`

	Comment string `json:"comment,omitempty"`

	// CredentialProposal is the credential data the holder wants to
	// receive.
	CredentialProposal PreviewCredential `json:"credential_proposal,omitempty"`

	// CredDefID is an optional filter to request a credential based on a
	// particular credential definition.
	CredDefID string `json:"cred_def_id,omitempty"`

	Thread *decorator.Thread `json:"~thread,omitempty"`
}

// Offer is a message sent by the issuer to the potential holder,
// describing the credential it intends to issue.
type Offer struct {
	ID   string `json:"@id,omitempty"`
	Type string `json:"@type,omitempty"`

	Comment string `json:"comment,omitempty"`

	// CredentialPreview is the credential data the issuer is willing to
	// issue.
	CredentialPreview PreviewCredential `json:"credential_preview,omitempty"`

	// OffersAttach further defines the credential being offered.
	OffersAttach []decorator.Attachment `json:"offers~attach,omitempty"`

	Thread *decorator.Thread `json:"~thread,omitempty"`
}

// Request is a message sent by the potential holder to the issuer to
// request the issuance of a credential.
type Request struct {
	ID   string `json:"@id,omitempty"`
	Type string `json:"@type,omitempty"`

	Comment string `json:"comment,omitempty"`

	// RequestsAttach defines the requested formats for the credential.
	RequestsAttach []decorator.Attachment `json:"requests~attach,omitempty"`

	Thread *decorator.Thread `json:"~thread,omitempty"`
}

// Issue contains as attached payload the credentials being issued and is
// sent in response to a valid Request message.
type Issue struct {
	ID   string `json:"@id,omitempty"`
	Type string `json:"@type,omitempty"`

	Comment string `json:"comment,omitempty"`

	// CredentialsAttach contains the issued credentials.
	CredentialsAttach []decorator.Attachment `json:"credentials~attach,omitempty"`

	Thread *decorator.Thread `json:"~thread,omitempty"`
}

// PreviewCredential is a preview of the data for the credential to be
// issued.
type PreviewCredential struct {
	Type       string      `json:"@type,omitempty"`
	Attributes []Attribute `json:"attributes,omitempty"`
}

// Attribute describes an attribute for a PreviewCredential.
type Attribute struct {
	Name     string `json:"name,omitempty"`
	MimeType string `json:"mime-type,omitempty"`
	Value    string `json:"value,omitempty"`
}
