// Package pltype defines the payload type strings of the supported DIDComm
// protocols. The full type string is
// <namespace>/<protocol>/<version>/<message> and every constant here is built
// from those parts so that the protocol registry, the state machines and the
// codec all speak the same names.
package pltype

import "strings"

// Namespace constants
const (
	Aries       = "did:sov:BzCbsNYhMrjHiqZDTUASHg;spec" // old Aries namespace
	DIDOrgAries = "https://didcomm.org"                 // current Aries namespace
)

const (
	Terminate = ""
	Nothing   = ""
)

// SovForType maps a current namespace @type string to its old namespace
// form. Messages still arrive in both namespaces, so the message factors
// register under both strings.
func SovForType(t string) string {
	return Aries + strings.TrimPrefix(t, DIDOrgAries)
}

// Connection aka DID exchange protocol
const (
	ProtocolConnection = "connections"

	HandlerInvitation = "invitation"
	HandlerRequest    = "request"
	HandlerResponse   = "response"

	AriesProtocolConnection   = DIDOrgAries + "/" + ProtocolConnection
	AriesConnectionInvitation = AriesProtocolConnection + "/1.0/" + HandlerInvitation
	AriesConnectionRequest    = AriesProtocolConnection + "/1.0/" + HandlerRequest
	AriesConnectionResponse   = AriesProtocolConnection + "/1.0/" + HandlerResponse
)

// Trust ping protocol
const (
	ProtocolTrustPing = "trust_ping"

	HandlerPing         = "ping"
	HandlerPingResponse = "ping_response"

	AriesProtocolTrustPing = DIDOrgAries + "/" + ProtocolTrustPing
	TrustPingPing          = AriesProtocolTrustPing + "/1.0/" + HandlerPing
	TrustPingResponse      = AriesProtocolTrustPing + "/1.0/" + HandlerPingResponse
)

// Basic message protocol
const (
	ProtocolBasicMessage = "basicmessage"

	HandlerMessage = "message"

	AriesProtocolBasicMessage = DIDOrgAries + "/" + ProtocolBasicMessage
	BasicMessageSend          = AriesProtocolBasicMessage + "/1.0/" + HandlerMessage
)

// Issue credential protocol
const (
	ProtocolIssueCredential = "issue-credential"

	HandlerIssueCredentialPropose = "propose-credential"
	HandlerIssueCredentialOffer   = "offer-credential"
	HandlerIssueCredentialRequest = "request-credential"
	HandlerIssueCredentialIssue   = "issue-credential"
	HandlerIssueCredentialACK     = "ack"

	AriesProtocolIssueCredential = DIDOrgAries + "/" + ProtocolIssueCredential
	IssueCredentialPropose       = AriesProtocolIssueCredential + "/1.0/" + HandlerIssueCredentialPropose
	IssueCredentialOffer         = AriesProtocolIssueCredential + "/1.0/" + HandlerIssueCredentialOffer
	IssueCredentialRequest       = AriesProtocolIssueCredential + "/1.0/" + HandlerIssueCredentialRequest
	IssueCredentialIssue         = AriesProtocolIssueCredential + "/1.0/" + HandlerIssueCredentialIssue
	IssueCredentialACK           = AriesProtocolIssueCredential + "/1.0/" + HandlerIssueCredentialACK
)

// Present proof protocol
const (
	ProtocolPresentProof = "present-proof"

	HandlerPresentProofPropose      = "propose-presentation"
	HandlerPresentProofRequest      = "request-presentation"
	HandlerPresentProofPresentation = "presentation"
	HandlerPresentProofACK          = "ack"

	AriesProtocolPresentProof = DIDOrgAries + "/" + ProtocolPresentProof
	PresentProofPropose       = AriesProtocolPresentProof + "/1.0/" + HandlerPresentProofPropose
	PresentProofRequest       = AriesProtocolPresentProof + "/1.0/" + HandlerPresentProofRequest
	PresentProofPresentation  = AriesProtocolPresentProof + "/1.0/" + HandlerPresentProofPresentation
	PresentProofACK           = AriesProtocolPresentProof + "/1.0/" + HandlerPresentProofACK
)

// Out-of-band protocol
const (
	ProtocolOutOfBand = "out-of-band"

	HandlerOOBInvitation = "invitation"

	AriesProtocolOutOfBand = DIDOrgAries + "/" + ProtocolOutOfBand
	OutOfBandInvitation    = AriesProtocolOutOfBand + "/1.0/" + HandlerOOBInvitation
)

// Notification i.e. problem report protocol
const (
	ProtocolNotification = "notification"

	HandlerProblemReport = "problem-report"
	HandlerAck           = "ack"

	AriesProtocolNotification = DIDOrgAries + "/" + ProtocolNotification
	NotificationProblemReport = AriesProtocolNotification + "/1.0/" + HandlerProblemReport
	NotificationAck           = AriesProtocolNotification + "/1.0/" + HandlerAck
)
