/*
Package outofband creates and receives connection invitations. An
invitation is never a wire message: it travels as an URL or a QR code, and
its acceptance starts the connection protocol. Creating an invitation
books the inviter's end of the coming exchange, so the connection request
arrives on a known thread.
*/
package outofband

import (
	"github.com/findy-network/findy-protocol-engine/agent/comm"
	"github.com/findy-network/findy-protocol-engine/agent/pltype"
	"github.com/findy-network/findy-protocol-engine/agent/prot"
	"github.com/findy-network/findy-protocol-engine/agent/psm"
	"github.com/findy-network/findy-protocol-engine/agent/utils"
	"github.com/findy-network/findy-protocol-engine/protocol/connection"
	"github.com/findy-network/findy-protocol-engine/std/didexchange"
	"github.com/golang/glog"
	"github.com/lainio/err2"
	"github.com/lainio/err2/try"
)

// Create builds a new invitation with fresh keys and books the inviter's
// end of the coming connection exchange.
func Create(rcvr comm.Receiver, label string) (inv *didexchange.Invitation, err error) {
	defer err2.Annotatew("create invitation", &err)

	id := utils.UUID()
	ks := try.To1(rcvr.KeySet(id))

	try.To1(psm.CreateExchange(id, pltype.ProtocolConnection,
		connection.Machine.Version.String(), psm.Responder, "",
		connection.StateInvitationSent))

	glog.V(1).Infoln("created invitation", id)
	return &didexchange.Invitation{
		Type:            pltype.OutOfBandInvitation,
		ID:              id,
		Label:           label,
		SignKey:         ks.SignKey(),
		EncKey:          ks.EncKey(),
		ServiceEndpoint: utils.Settings.HostAddr(),
	}, nil
}

// URL renders the invitation to its URL form.
func URL(inv *didexchange.Invitation) string {
	return didexchange.InvitationURL(utils.Settings.HostAddr(), inv)
}

// Receive accepts an invitation given as an URL or plain JSON and starts
// the connection protocol against its sender.
func Receive(d *prot.Dispatcher, invitation, label string) (exID string, err error) {
	defer err2.Annotatew("receive invitation", &err)

	inv := try.To1(didexchange.ParseInvitation(invitation))
	t := connection.NewTask(inv, label)
	return d.StartExchange(pltype.ProtocolConnection,
		connection.Machine.Version.String(), t)
}
