// Package decorator implements Aries message decorators: the thread
// decorator (RFC 0008) which binds protocol messages to the same exchange,
// and the attachment decorator (RFC 0017) used to embed payloads like
// credentials and presentations into protocol messages.
package decorator

// Attachment is the ~attach decorator.
type Attachment struct {
	ID          string         `json:"@id,omitempty"`
	Description string         `json:"description,omitempty"`
	FileName    string         `json:"filename,omitempty"`
	MimeType    string         `json:"mime-type,omitempty"`
	LastModTime string         `json:"lastmod_time,omitempty"`
	ByteCount   int64          `json:"byte_count,omitempty"`
	Data        AttachmentData `json:"data,omitempty"`
}

// AttachmentData contains attachment payload in one of its supported
// encodings.
type AttachmentData struct {
	SHA256 string `json:"sha256,omitempty"`
	Links  string `json:"links,omitempty"`
	Base64 string `json:"base64,omitempty"`
	JSON   string `json:"json,omitempty"`
}

// Thread is the ~thread decorator. ID is the thread ID i.e. the ID of the
// first message of the exchange. PID is the optional parent thread ID for
// protocols spawned by another protocol.
type Thread struct {
	ID  string `json:"thid,omitempty"`
	PID string `json:"pthid,omitempty"`

	SenderOrder    int            `json:"sender_order,omitempty"`
	ReceivedOrders map[string]int `json:"received_orders,omitempty"`
}
