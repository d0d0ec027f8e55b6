package aries

import (
	"reflect"
	"testing"

	"github.com/findy-network/findy-protocol-engine/agent/didcomm"
	"github.com/findy-network/findy-protocol-engine/agent/pltype"
)

func TestPayload_ReadWriteJSON(t *testing.T) {
	pl := PayloadCreator.New(didcomm.PayloadInit{
		ID:   "123",
		Type: "test-type",
	})
	data := pl.JSON()

	pl2 := PayloadCreator.NewFromData(data)
	if !reflect.DeepEqual(pl, pl2) {
		t.Errorf("%v to JSON from %v", pl, pl2)
	}
}

func TestPayload_TypeFields(t *testing.T) {
	pl := PayloadCreator.New(didcomm.PayloadInit{
		ID:   "123",
		Type: pltype.AriesConnectionRequest,
	})
	if pl.Protocol() != pltype.ProtocolConnection {
		t.Errorf("protocol = %v, want %v", pl.Protocol(), pltype.ProtocolConnection)
	}
	if pl.ProtocolVersion() != "1.0" {
		t.Errorf("version = %v, want 1.0", pl.ProtocolVersion())
	}
	if pl.ProtocolMsg() != pltype.HandlerRequest {
		t.Errorf("msg = %v, want %v", pl.ProtocolMsg(), pltype.HandlerRequest)
	}
}
