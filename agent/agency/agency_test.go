package agency_test

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/findy-network/findy-protocol-engine/agent/agency"
	"github.com/findy-network/findy-protocol-engine/agent/aries"
	"github.com/findy-network/findy-protocol-engine/agent/bus"
	"github.com/findy-network/findy-protocol-engine/agent/didcomm"
	"github.com/findy-network/findy-protocol-engine/agent/pltype"
	"github.com/findy-network/findy-protocol-engine/agent/psm"
	"github.com/findy-network/findy-protocol-engine/agent/registry"
	"github.com/findy-network/findy-protocol-engine/agent/sec"
	"github.com/findy-network/findy-protocol-engine/agent/service"
	"github.com/findy-network/findy-protocol-engine/agent/utils"
	"github.com/findy-network/findy-protocol-engine/enclave"
	"github.com/findy-network/findy-protocol-engine/protocol/basicmessage"
	"github.com/findy-network/findy-protocol-engine/protocol/connection"
	"github.com/findy-network/findy-protocol-engine/protocol/issuecredential"
	"github.com/findy-network/findy-protocol-engine/protocol/presentproof"
	"github.com/findy-network/findy-protocol-engine/protocol/trustping"
	"github.com/findy-network/findy-protocol-engine/std/decorator"
	"github.com/findy-network/findy-protocol-engine/std/didexchange"
	stdissuecred "github.com/findy-network/findy-protocol-engine/std/issuecredential"
	stdpresentproof "github.com/findy-network/findy-protocol-engine/std/presentproof"
	"github.com/lainio/err2"
	"github.com/lainio/err2/assert"
	"github.com/lainio/err2/try"
)

const peerEndp = "http://peer.test/a2a"

var (
	storageDir string
	tr         = &captureTransport{}
	a          *agency.Agency

	issuer   = &fakeIssuer{}
	holder   = &fakeHolder{}
	verifier = &fakeVerifier{}
	prover   = &fakeProver{}
)

func TestMain(m *testing.M) {
	setUp()
	code := m.Run()
	tearDown()
	os.Exit(code)
}

func setUp() {
	defer err2.CatchTrace(func(err error) {
		fmt.Println("error on setup", err)
	})

	try.To(flag.Set("logtostderr", "true"))

	storageDir = try.To1(os.MkdirTemp("", "agency-test"))

	utils.Settings.SetHostAddr("http://agent.test/a2a")
	utils.Settings.SetRetryBase(time.Millisecond)
	utils.Settings.SetRetryCap(10 * time.Millisecond)

	a = try.To1(agency.Open(agency.Config{
		Label:       "test-agent",
		StoragePath: storageDir,
		Transport:   tr,
		Workers:     1,
		Issuer:      issuer,
		Holder:      holder,
		Verifier:    verifier,
		Prover:      prover,
	}))
}

func tearDown() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = a.Shutdown(ctx)
	os.RemoveAll(storageDir)
}

// fakeIssuer hands out recognizable byte payloads in place of real
// credential machinery.
type fakeIssuer struct {
	offers int
	issues int
}

func (f *fakeIssuer) BuildOffer(_, credDefID string, _ []didcomm.CredentialAttribute) ([]byte, error) {
	f.offers++
	return []byte("offer:" + credDefID), nil
}

func (f *fakeIssuer) Issue(_ string, request []byte) ([]byte, error) {
	f.issues++
	return append([]byte("cred:"), request...), nil
}

type fakeHolder struct {
	stored [][]byte
}

func (f *fakeHolder) BuildRequest(_ string, offer []byte) ([]byte, error) {
	return append([]byte("req:"), offer...), nil
}

func (f *fakeHolder) Store(_ string, credential []byte) error {
	f.stored = append(f.stored, credential)
	return nil
}

type fakeVerifier struct {
	requested []didcomm.ProofAttribute
	verified  [][]byte
	fail      bool
}

func (f *fakeVerifier) BuildRequest(_ string, attrs []didcomm.ProofAttribute) ([]byte, error) {
	f.requested = attrs
	return []byte("proof-req"), nil
}

func (f *fakeVerifier) Verify(_ string, presentation []byte) error {
	if f.fail {
		return fmt.Errorf("proof does not verify")
	}
	f.verified = append(f.verified, presentation)
	return nil
}

type fakeProver struct{}

func (f *fakeProver) BuildPresentation(_ string, request []byte) ([]byte, error) {
	return append([]byte("proof:"), request...), nil
}

type capture struct {
	dest service.Addr
	wire []byte
}

// captureTransport records everything the engine sends instead of doing
// network IO.
type captureTransport struct {
	l    sync.Mutex
	sent []capture
}

func (c *captureTransport) Send(_ context.Context, addr service.Addr, wire []byte) error {
	c.l.Lock()
	defer c.l.Unlock()
	c.sent = append(c.sent, capture{dest: addr, wire: wire})
	return nil
}

func (c *captureTransport) count() int {
	c.l.Lock()
	defer c.l.Unlock()
	return len(c.sent)
}

func (c *captureTransport) get(i int) capture {
	c.l.Lock()
	defer c.l.Unlock()
	return c.sent[i]
}

// waitSent waits until at least n messages have gone out and returns the
// nth one.
func waitSent(n int) (capture, bool) {
	deadline := time.Now().Add(3 * time.Second)
	for tr.count() < n && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if tr.count() < n {
		return capture{}, false
	}
	return tr.get(n - 1), true
}

// requestWire packs a connection request the way a remote invitee would:
// fresh keys, our invitation's keys as the recipient.
func requestWire(inv *didexchange.Invitation, peer *enclave.KeySet, msgID string) []byte {
	msg := didexchange.NewRequest(&didexchange.Request{
		Type:   pltype.AriesConnectionRequest,
		ID:     msgID,
		Label:  "peer",
		Thread: decorator.NewThread(inv.ID, ""),
		Connection: didexchange.Connection{
			Label:           "peer",
			SignKey:         peer.SignKey(),
			EncKey:          peer.EncKey(),
			ServiceEndpoint: peerEndp,
		},
	})
	pl := aries.PayloadCreator.NewMsg(msg.ID(), pltype.AriesConnectionRequest, msg)
	pipe := sec.Pipe{
		In:  peer,
		Out: sec.PublicKey{SignKey: inv.SignKey, EncKey: inv.EncKey},
	}
	return try.To1(pipe.Pack(pl.JSON()))
}

// packToUs packs the payload to one of our key sets from the peer's keys.
func packToUs(peer *enclave.KeySet, us sec.PublicKey, pl didcomm.Payload) []byte {
	pipe := sec.Pipe{In: peer, Out: us}
	return try.To1(pipe.Pack(pl.JSON()))
}

func genericPayload(id, typeStr, threadID string) didcomm.Payload {
	return aries.PayloadCreator.New(didcomm.PayloadInit{
		ID:   id,
		Type: typeStr,
		MsgInit: didcomm.MsgInit{
			Thread: decorator.NewThread(threadID, ""),
		},
	})
}

// runConnection drives the responder connection flow end to end and
// returns the established connection's ID and the peer's key set.
func runConnection() (connID string, peer *enclave.KeySet) {
	inv := try.To1(a.Invitation())
	peer = try.To1(enclave.NewKeySet("peer-" + inv.ID))

	prev := tr.count()
	try.To(a.Dispatcher().DispatchWire(requestWire(inv, peer, utils.UUID())))
	if _, ok := waitSent(prev + 1); !ok {
		panic("connection response was not sent")
	}
	return inv.ID, peer
}

func TestResponderConnectionFlow(t *testing.T) {
	assert.PushTester(t)
	defer assert.PopTester()

	inv, err := a.Invitation()
	assert.NoError(err)
	assert.That(inv.SignKey != "")
	assert.Equal(inv.ServiceEndpoint, "http://agent.test/a2a")

	peer := try.To1(enclave.NewKeySet("peer-" + inv.ID))
	wire := requestWire(inv, peer, utils.UUID())

	prev := tr.count()
	assert.NoError(a.Dispatcher().DispatchWire(wire))

	// exactly one connection response goes out, to the invitee's endpoint
	out, ok := waitSent(prev + 1)
	assert.That(ok)
	assert.Equal(out.dest.Endp, peerEndp)

	// the invitee can open the envelope and it is our response on the
	// invitation's thread
	payload, senderKey, _ := try.To3(sec.Unpack(out.wire))
	pl := aries.PayloadCreator.NewFromData(payload)
	assert.Equal(pl.Type(), pltype.AriesConnectionResponse)
	assert.Equal(pl.ThreadID(), inv.ID)

	res, castOK := pl.MsgHdr().FieldObj().(*didexchange.Response)
	assert.That(castOK)
	assert.That(res.Connection.SignKey != "")
	assert.Equal(senderKey, res.Connection.SignKey)

	ex := try.To1(psm.GetExchange(inv.ID))
	assert.Equal(ex.Current(), connection.StateResponded)
	assert.Equal(ex.ConnectionID, inv.ID)

	conn := try.To1(a.Connections().Get(inv.ID))
	assert.Equal(conn.TheirSignKey, peer.SignKey())
	assert.Equal(conn.TheirEndpoint, peerEndp)

	// the same wire delivered again is acked silently and nothing more
	// goes out
	assert.NoError(a.Dispatcher().DispatchWire(wire))
	time.Sleep(200 * time.Millisecond)
	assert.Equal(tr.count(), prev+1)
	ex = try.To1(psm.GetExchange(inv.ID))
	assert.Equal(len(ex.States), 2)
}

func TestSecondRequestRejected(t *testing.T) {
	assert.PushTester(t)
	defer assert.PopTester()

	inv := try.To1(a.Invitation())
	peer := try.To1(enclave.NewKeySet("peer-" + inv.ID))

	prev := tr.count()
	assert.NoError(a.Dispatcher().DispatchWire(requestWire(inv, peer, utils.UUID())))
	_, ok := waitSent(prev + 1)
	assert.That(ok)

	// a second request on the same thread is not a replay: its message ID
	// is new, so it hits the state machine and the machine rejects it
	err := a.Dispatcher().DispatchWire(requestWire(inv, peer, utils.UUID()))
	assert.Error(err)
	assert.That(errors.Is(err, registry.ErrInvalidTransition))

	// the exchange did not move
	ex := try.To1(psm.GetExchange(inv.ID))
	assert.Equal(ex.Current(), connection.StateResponded)

	// the peer is told with a problem report on the same thread
	out, ok := waitSent(prev + 2)
	assert.That(ok)
	payload, _, _ := try.To3(sec.Unpack(out.wire))
	pl := aries.PayloadCreator.NewFromData(payload)
	assert.Equal(pl.Type(), pltype.NotificationProblemReport)
	assert.Equal(pl.ThreadID(), inv.ID)
}

func TestUnknownSenderDropped(t *testing.T) {
	assert.PushTester(t)
	defer assert.PopTester()

	// an invitation's keys are a valid recipient, but a basic message
	// from a total stranger must not pass
	inv := try.To1(a.Invitation())
	stranger := try.To1(enclave.NewKeySet("stranger-" + utils.UUID()))

	pl := genericPayload(utils.UUID(), pltype.BasicMessageSend, utils.UUID())
	wire := packToUs(stranger,
		sec.PublicKey{SignKey: inv.SignKey, EncKey: inv.EncKey}, pl)

	err := a.Dispatcher().DispatchWire(wire)
	assert.Error(err)
	assert.That(errors.Is(err, sec.ErrDecode))
}

func TestUnsupportedProtocol(t *testing.T) {
	assert.PushTester(t)
	defer assert.PopTester()

	connID, peer := runConnection()
	us := myPublicKey(connID)

	tests := []string{
		"https://didcomm.org/made-up/1.0/whatever",
		"https://didcomm.org/trust_ping/3.0/ping",
	}
	for _, typeStr := range tests {
		pl := genericPayload(utils.UUID(), typeStr, utils.UUID())
		err := a.Dispatcher().DispatchWire(packToUs(peer, us, pl))
		assert.Error(err)
		assert.That(errors.Is(err, registry.ErrUnsupportedProtocol))
	}
}

func TestVersionMinorFallback(t *testing.T) {
	assert.PushTester(t)
	defer assert.PopTester()

	connID, peer := runConnection()
	us := myPublicKey(connID)

	// a ping claiming minor 1.3 runs on our 1.0 machine
	threadID := utils.UUID()
	pl := genericPayload(utils.UUID(),
		"https://didcomm.org/trust_ping/1.3/ping", threadID)

	prev := tr.count()
	assert.NoError(a.Dispatcher().DispatchWire(packToUs(peer, us, pl)))

	ex := try.To1(psm.GetExchange(threadID))
	assert.Equal(ex.Protocol, pltype.ProtocolTrustPing)
	assert.Equal(ex.Version, "1.0")
	assert.Equal(ex.Current(), trustping.StatePingReceived)

	out, ok := waitSent(prev + 1)
	assert.That(ok)
	payload, _, _ := try.To3(sec.Unpack(out.wire))
	resp := aries.PayloadCreator.NewFromData(payload)
	assert.Equal(resp.Type(), pltype.TrustPingResponse)
	assert.Equal(resp.ThreadID(), threadID)
}

func TestSendPing(t *testing.T) {
	assert.PushTester(t)
	defer assert.PopTester()

	connID, peer := runConnection()
	us := myPublicKey(connID)

	prev := tr.count()
	exID, err := a.SendPing(connID, "checking")
	assert.NoError(err)

	out, ok := waitSent(prev + 1)
	assert.That(ok)
	payload, _, _ := try.To3(sec.Unpack(out.wire))
	pl := aries.PayloadCreator.NewFromData(payload)
	assert.Equal(pl.Type(), pltype.TrustPingPing)
	assert.Equal(pl.ThreadID(), exID)

	ex := try.To1(psm.GetExchange(exID))
	assert.Equal(ex.Current(), trustping.StatePingSent)
	assert.Equal(ex.Role, psm.Initiator)

	// the peer answers and our end completes
	resp := genericPayload(utils.UUID(), pltype.TrustPingResponse, exID)
	assert.NoError(a.Dispatcher().DispatchWire(packToUs(peer, us, resp)))

	ex = try.To1(psm.GetExchange(exID))
	assert.Equal(ex.Current(), trustping.StateComplete)
}

func TestSendBasicMessage(t *testing.T) {
	assert.PushTester(t)
	defer assert.PopTester()

	connID, _ := runConnection()

	prev := tr.count()
	exID, err := a.SendBasicMessage(connID, "hello there")
	assert.NoError(err)

	out, ok := waitSent(prev + 1)
	assert.That(ok)
	assert.Equal(out.dest.Endp, peerEndp)
	payload, _, _ := try.To3(sec.Unpack(out.wire))
	pl := aries.PayloadCreator.NewFromData(payload)
	assert.Equal(pl.Type(), pltype.BasicMessageSend)
	assert.Equal(pl.ThreadID(), exID)

	ex := try.To1(psm.GetExchange(exID))
	assert.Equal(ex.Current(), basicmessage.StateMessageSent)
}

// myPublicKey digs our end's public keys of the connection so the fake
// peer can address envelopes to us.
func myPublicKey(connID string) sec.PublicKey {
	conn := try.To1(a.Connections().Get(connID))
	ks := try.To1(enclave.KeySetByID(conn.MyKeySetID))
	return sec.PublicKey{SignKey: ks.SignKey(), EncKey: ks.EncKey()}
}

// openSent waits for the nth outbound wire and returns its payload.
func openSent(n int) didcomm.Payload {
	out, ok := waitSent(n)
	if !ok {
		panic("outbound message never sent")
	}
	payload, _, _ := try.To3(sec.Unpack(out.wire))
	return aries.PayloadCreator.NewFromData(payload)
}

func TestInitiatorConnectionFlow(t *testing.T) {
	assert.PushTester(t)
	defer assert.PopTester()

	// the inviter lives somewhere else; here it is just a key set whose
	// invitation we accept
	inviter := try.To1(enclave.NewKeySet("inviter-" + utils.UUID()))
	inv := &didexchange.Invitation{
		Type:            pltype.OutOfBandInvitation,
		ID:              utils.UUID(),
		Label:           "inviter",
		SignKey:         inviter.SignKey(),
		EncKey:          inviter.EncKey(),
		ServiceEndpoint: peerEndp,
	}

	prev := tr.count()
	exID, err := a.Connect(didexchange.InvitationURL(peerEndp, inv))
	assert.NoError(err)
	assert.Equal(exID, inv.ID)

	// our connection request goes to the inviter's endpoint
	out, ok := waitSent(prev + 1)
	assert.That(ok)
	assert.Equal(out.dest.Endp, peerEndp)

	payload, _, _ := try.To3(sec.Unpack(out.wire))
	pl := aries.PayloadCreator.NewFromData(payload)
	assert.Equal(pl.Type(), pltype.AriesConnectionRequest)
	assert.Equal(pl.ThreadID(), inv.ID)
	req, castOK := pl.MsgHdr().FieldObj().(*didexchange.Request)
	assert.That(castOK)
	assert.That(req.Connection.SignKey != "")

	ex := try.To1(psm.GetExchange(exID))
	assert.Equal(ex.Current(), connection.StateRequestSent)
	assert.Equal(ex.Role, psm.Initiator)

	// the inviter accepts with its side of the connection
	res := didexchange.NewResponse(&didexchange.Response{
		Type:   pltype.AriesConnectionResponse,
		ID:     utils.UUID(),
		Thread: decorator.NewThread(inv.ID, ""),
		Connection: didexchange.Connection{
			Label:           "inviter",
			SignKey:         inviter.SignKey(),
			EncKey:          inviter.EncKey(),
			ServiceEndpoint: peerEndp,
		},
	})
	rpl := aries.PayloadCreator.NewMsg(res.ID(),
		pltype.AriesConnectionResponse, res)
	us := sec.PublicKey{
		SignKey: req.Connection.SignKey,
		EncKey:  req.Connection.EncKey,
	}
	assert.NoError(a.Dispatcher().DispatchWire(packToUs(inviter, us, rpl)))

	ex = try.To1(psm.GetExchange(exID))
	assert.Equal(ex.Current(), connection.StateComplete)

	conn := try.To1(a.Connections().Get(exID))
	assert.Equal(conn.TheirLabel, "inviter")
	assert.Equal(conn.State, string(connection.StateComplete))

	assert.That(a.WaitReady(exID, time.Second))
}

func TestIssueCredentialHolderFlow(t *testing.T) {
	assert.PushTester(t)
	defer assert.PopTester()

	connID, peer := runConnection()
	us := myPublicKey(connID)

	attrs := []didcomm.CredentialAttribute{
		{Name: "email", Value: "holder@example.com"},
	}
	prev := tr.count()
	exID, err := a.ProposeCredential(connID, "cred-def-1", attrs)
	assert.NoError(err)

	pl := openSent(prev + 1)
	assert.Equal(pl.Type(), pltype.IssueCredentialPropose)
	assert.Equal(pl.ThreadID(), exID)
	proposal, castOK := pl.MsgHdr().FieldObj().(*stdissuecred.Propose)
	assert.That(castOK)
	assert.Equal(proposal.CredDefID, "cred-def-1")
	assert.Equal(len(proposal.CredentialProposal.Attributes), 1)

	ex := try.To1(psm.GetExchange(exID))
	assert.Equal(ex.Current(), issuecredential.StateProposeSent)
	assert.Equal(ex.Role, psm.Initiator)

	// the issuer offers and we answer with the credential request built
	// from the offer attachment
	offer := stdissuecred.NewOffer(&stdissuecred.Offer{
		Type:         pltype.IssueCredentialOffer,
		ID:           utils.UUID(),
		OffersAttach: stdissuecred.NewOfferAttach([]byte("offer-data")),
		Thread:       decorator.NewThread(exID, ""),
	})
	opl := aries.PayloadCreator.NewMsg(offer.ID(),
		pltype.IssueCredentialOffer, offer)
	assert.NoError(a.Dispatcher().DispatchWire(packToUs(peer, us, opl)))

	pl = openSent(prev + 2)
	assert.Equal(pl.Type(), pltype.IssueCredentialRequest)
	req, castOK := pl.MsgHdr().FieldObj().(*stdissuecred.Request)
	assert.That(castOK)
	assert.Equal(string(try.To1(stdissuecred.RequestAttach(req))),
		"req:offer-data")

	ex = try.To1(psm.GetExchange(exID))
	assert.Equal(ex.Current(), issuecredential.StateRequestSent)

	// the credential arrives: we store it, ack, and the run completes
	ready := make(chan bool, 1)
	go func() { ready <- a.WaitReady(exID, 3*time.Second) }()

	issue := stdissuecred.NewIssue(&stdissuecred.Issue{
		Type: pltype.IssueCredentialIssue,
		ID:   utils.UUID(),
		CredentialsAttach: stdissuecred.NewCredentialAttach(
			[]byte("cred-data")),
		Thread: decorator.NewThread(exID, ""),
	})
	ipl := aries.PayloadCreator.NewMsg(issue.ID(),
		pltype.IssueCredentialIssue, issue)
	assert.NoError(a.Dispatcher().DispatchWire(packToUs(peer, us, ipl)))

	assert.That(<-ready)
	assert.Equal(string(holder.stored[len(holder.stored)-1]), "cred-data")

	pl = openSent(prev + 3)
	assert.Equal(pl.Type(), pltype.IssueCredentialACK)
	assert.Equal(pl.ThreadID(), exID)

	ex = try.To1(psm.GetExchange(exID))
	assert.Equal(ex.Current(), issuecredential.StateCredReceived)
}

func TestIssueCredentialIssuerFlow(t *testing.T) {
	assert.PushTester(t)
	defer assert.PopTester()

	connID, peer := runConnection()
	us := myPublicKey(connID)
	threadID := utils.UUID()

	prev := tr.count()
	propose := stdissuecred.NewPropose(&stdissuecred.Propose{
		Type:      pltype.IssueCredentialPropose,
		ID:        utils.UUID(),
		CredDefID: "cred-def-7",
		CredentialProposal: stdissuecred.NewPreviewCredential(
			[]didcomm.CredentialAttribute{
				{Name: "email", Value: "holder@example.com"},
			}),
		Thread: decorator.NewThread(threadID, ""),
	})
	ppl := aries.PayloadCreator.NewMsg(propose.ID(),
		pltype.IssueCredentialPropose, propose)
	assert.NoError(a.Dispatcher().DispatchWire(packToUs(peer, us, ppl)))

	// our offer goes out, built by the issuer seam from the proposal
	pl := openSent(prev + 1)
	assert.Equal(pl.Type(), pltype.IssueCredentialOffer)
	assert.Equal(pl.ThreadID(), threadID)
	offer, castOK := pl.MsgHdr().FieldObj().(*stdissuecred.Offer)
	assert.That(castOK)
	assert.Equal(string(try.To1(stdissuecred.OfferAttach(offer))),
		"offer:cred-def-7")
	assert.That(issuer.offers > 0)

	ex := try.To1(psm.GetExchange(threadID))
	assert.Equal(ex.Current(), issuecredential.StateOfferSent)
	assert.Equal(ex.Role, psm.Responder)

	// the holder requests and we issue
	req := stdissuecred.NewRequest(&stdissuecred.Request{
		Type:           pltype.IssueCredentialRequest,
		ID:             utils.UUID(),
		RequestsAttach: stdissuecred.NewRequestAttach([]byte("req-data")),
		Thread:         decorator.NewThread(threadID, ""),
	})
	rpl := aries.PayloadCreator.NewMsg(req.ID(),
		pltype.IssueCredentialRequest, req)
	assert.NoError(a.Dispatcher().DispatchWire(packToUs(peer, us, rpl)))

	pl = openSent(prev + 2)
	assert.Equal(pl.Type(), pltype.IssueCredentialIssue)
	issue, castOK := pl.MsgHdr().FieldObj().(*stdissuecred.Issue)
	assert.That(castOK)
	assert.Equal(string(try.To1(stdissuecred.CredentialAttach(issue))),
		"cred:req-data")

	ex = try.To1(psm.GetExchange(threadID))
	assert.Equal(ex.Current(), issuecredential.StateCredIssued)

	// the holder acks and the run is done
	ack := genericPayload(utils.UUID(), pltype.IssueCredentialACK, threadID)
	assert.NoError(a.Dispatcher().DispatchWire(packToUs(peer, us, ack)))

	ex = try.To1(psm.GetExchange(threadID))
	assert.Equal(ex.Current(), issuecredential.StateDone)
	assert.That(a.WaitReady(threadID, time.Second))
}

func TestPresentProofVerifierFlow(t *testing.T) {
	assert.PushTester(t)
	defer assert.PopTester()

	connID, peer := runConnection()
	us := myPublicKey(connID)

	attrs := []didcomm.ProofAttribute{
		{Name: "email", CredDefID: "cred-def-1"},
	}
	prev := tr.count()
	exID, err := a.RequestProof(connID, attrs)
	assert.NoError(err)

	pl := openSent(prev + 1)
	assert.Equal(pl.Type(), pltype.PresentProofRequest)
	assert.Equal(pl.ThreadID(), exID)
	req, castOK := pl.MsgHdr().FieldObj().(*stdpresentproof.Request)
	assert.That(castOK)
	assert.Equal(string(try.To1(stdpresentproof.ProofReqAttach(req))),
		"proof-req")

	ex := try.To1(psm.GetExchange(exID))
	assert.Equal(ex.Current(), presentproof.StateRequestSent)

	// the prover presents: we verify and ack
	pres := stdpresentproof.NewPresentation(&stdpresentproof.Presentation{
		Type: pltype.PresentProofPresentation,
		ID:   utils.UUID(),
		PresentationAttaches: stdpresentproof.NewPresentationAttach(
			[]byte("proof-data")),
		Thread: decorator.NewThread(exID, ""),
	})
	ppl := aries.PayloadCreator.NewMsg(pres.ID(),
		pltype.PresentProofPresentation, pres)
	assert.NoError(a.Dispatcher().DispatchWire(packToUs(peer, us, ppl)))

	assert.Equal(string(verifier.verified[len(verifier.verified)-1]),
		"proof-data")

	pl = openSent(prev + 2)
	assert.Equal(pl.Type(), pltype.PresentProofACK)

	ex = try.To1(psm.GetExchange(exID))
	assert.Equal(ex.Current(), presentproof.StateProofReceived)
	assert.That(a.WaitReady(exID, time.Second))
}

func TestPresentProofBadProofRejected(t *testing.T) {
	assert.PushTester(t)
	defer assert.PopTester()

	connID, peer := runConnection()
	us := myPublicKey(connID)

	exID, err := a.RequestProof(connID, []didcomm.ProofAttribute{
		{Name: "email"},
	})
	assert.NoError(err)

	verifier.fail = true
	defer func() { verifier.fail = false }()

	pres := stdpresentproof.NewPresentation(&stdpresentproof.Presentation{
		Type: pltype.PresentProofPresentation,
		ID:   utils.UUID(),
		PresentationAttaches: stdpresentproof.NewPresentationAttach(
			[]byte("bad-proof")),
		Thread: decorator.NewThread(exID, ""),
	})
	ppl := aries.PayloadCreator.NewMsg(pres.ID(),
		pltype.PresentProofPresentation, pres)
	err = a.Dispatcher().DispatchWire(packToUs(peer, us, ppl))
	assert.Error(err)

	// a failing verification rolls the transition back
	ex := try.To1(psm.GetExchange(exID))
	assert.Equal(ex.Current(), presentproof.StateRequestSent)
}

func TestPresentProofProverFlow(t *testing.T) {
	assert.PushTester(t)
	defer assert.PopTester()

	connID, peer := runConnection()
	us := myPublicKey(connID)
	threadID := utils.UUID()

	// follow the run's transitions over the state bus
	stateC := bus.States.AddListener(threadID)
	defer bus.States.RmListener(threadID)

	prev := tr.count()
	req := stdpresentproof.NewRequest(&stdpresentproof.Request{
		Type: pltype.PresentProofRequest,
		ID:   utils.UUID(),
		RequestPresentations: stdpresentproof.NewRequestAttach(
			[]byte("want-email")),
		Thread: decorator.NewThread(threadID, ""),
	})
	rpl := aries.PayloadCreator.NewMsg(req.ID(),
		pltype.PresentProofRequest, req)
	assert.NoError(a.Dispatcher().DispatchWire(packToUs(peer, us, rpl)))
	assert.Equal(<-stateC, presentproof.StatePresentationSent)

	pl := openSent(prev + 1)
	assert.Equal(pl.Type(), pltype.PresentProofPresentation)
	pres, castOK := pl.MsgHdr().FieldObj().(*stdpresentproof.Presentation)
	assert.That(castOK)
	assert.Equal(string(try.To1(stdpresentproof.PresentationAttach(pres))),
		"proof:want-email")

	// the verifier acks and the run is done
	ack := genericPayload(utils.UUID(), pltype.PresentProofACK, threadID)
	assert.NoError(a.Dispatcher().DispatchWire(packToUs(peer, us, ack)))
	assert.Equal(<-stateC, presentproof.StateDone)

	ex := try.To1(psm.GetExchange(threadID))
	assert.Equal(ex.Current(), presentproof.StateDone)
	assert.Equal(ex.Role, psm.Responder)
}

func TestProposeProofProverFlow(t *testing.T) {
	assert.PushTester(t)
	defer assert.PopTester()

	connID, peer := runConnection()
	us := myPublicKey(connID)

	attrs := []didcomm.ProofAttribute{
		{Name: "email", CredDefID: "cred-def-1"},
	}
	prev := tr.count()
	exID, err := a.ProposeProof(connID, attrs)
	assert.NoError(err)

	pl := openSent(prev + 1)
	assert.Equal(pl.Type(), pltype.PresentProofPropose)
	assert.Equal(pl.ThreadID(), exID)
	proposal, castOK := pl.MsgHdr().FieldObj().(*stdpresentproof.Propose)
	assert.That(castOK)
	assert.NotNil(proposal.PresentationProposal)
	assert.Equal(len(proposal.PresentationProposal.Attributes), 1)
	assert.Equal(proposal.PresentationProposal.Attributes[0].Name, "email")

	ex := try.To1(psm.GetExchange(exID))
	assert.Equal(ex.Current(), presentproof.StateProposeSent)
	assert.Equal(ex.Role, psm.Initiator)

	// the verifier answers our proposal with its request and we present
	req := stdpresentproof.NewRequest(&stdpresentproof.Request{
		Type: pltype.PresentProofRequest,
		ID:   utils.UUID(),
		RequestPresentations: stdpresentproof.NewRequestAttach(
			[]byte("proof-req")),
		Thread: decorator.NewThread(exID, ""),
	})
	rpl := aries.PayloadCreator.NewMsg(req.ID(),
		pltype.PresentProofRequest, req)
	assert.NoError(a.Dispatcher().DispatchWire(packToUs(peer, us, rpl)))

	pl = openSent(prev + 2)
	assert.Equal(pl.Type(), pltype.PresentProofPresentation)

	ex = try.To1(psm.GetExchange(exID))
	assert.Equal(ex.Current(), presentproof.StatePresentationSent)

	// the verifier acks
	ack := genericPayload(utils.UUID(), pltype.PresentProofACK, exID)
	assert.NoError(a.Dispatcher().DispatchWire(packToUs(peer, us, ack)))

	ex = try.To1(psm.GetExchange(exID))
	assert.Equal(ex.Current(), presentproof.StateDone)
	assert.That(a.WaitReady(exID, time.Second))
}

func TestProposeAnsweredWithRequest(t *testing.T) {
	assert.PushTester(t)
	defer assert.PopTester()

	connID, peer := runConnection()
	us := myPublicKey(connID)
	threadID := utils.UUID()

	// the prover proposes and our verifier end answers with the request
	prev := tr.count()
	propose := stdpresentproof.NewPropose(&stdpresentproof.Propose{
		Type: pltype.PresentProofPropose,
		ID:   utils.UUID(),
		PresentationProposal: stdpresentproof.NewPreview(
			[]didcomm.ProofAttribute{
				{Name: "email", CredDefID: "cred-def-9"},
			}),
		Thread: decorator.NewThread(threadID, ""),
	})
	ppl := aries.PayloadCreator.NewMsg(propose.ID(),
		pltype.PresentProofPropose, propose)
	assert.NoError(a.Dispatcher().DispatchWire(packToUs(peer, us, ppl)))

	pl := openSent(prev + 1)
	assert.Equal(pl.Type(), pltype.PresentProofRequest)
	assert.Equal(pl.ThreadID(), threadID)

	// the proposal's attributes reached the verifier seam
	assert.Equal(len(verifier.requested), 1)
	assert.Equal(verifier.requested[0].Name, "email")
	assert.Equal(verifier.requested[0].CredDefID, "cred-def-9")

	ex := try.To1(psm.GetExchange(threadID))
	assert.Equal(ex.Current(), presentproof.StateRequestSent)
	assert.Equal(ex.Role, psm.Responder)

	// the prover presents against the request and the run finishes
	pres := stdpresentproof.NewPresentation(&stdpresentproof.Presentation{
		Type: pltype.PresentProofPresentation,
		ID:   utils.UUID(),
		PresentationAttaches: stdpresentproof.NewPresentationAttach(
			[]byte("proposed-proof")),
		Thread: decorator.NewThread(threadID, ""),
	})
	prpl := aries.PayloadCreator.NewMsg(pres.ID(),
		pltype.PresentProofPresentation, pres)
	assert.NoError(a.Dispatcher().DispatchWire(packToUs(peer, us, prpl)))

	ex = try.To1(psm.GetExchange(threadID))
	assert.Equal(ex.Current(), presentproof.StateProofReceived)
	assert.That(a.WaitReady(threadID, time.Second))
}

func TestWaitReady(t *testing.T) {
	assert.PushTester(t)
	defer assert.PopTester()

	// nothing to wait for: the wait times out
	assert.That(!a.WaitReady("no-such-exchange", 20*time.Millisecond))

	// an abandoned run reports failure
	connID, _ := runConnection()
	exID, err := a.SendPing(connID, "going nowhere")
	assert.NoError(err)
	assert.NoError(a.Dispatcher().Abandon(exID))
	assert.That(!a.WaitReady(exID, time.Second))
}
