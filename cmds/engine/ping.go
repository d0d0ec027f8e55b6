package engine

import (
	"context"
	"errors"
	"io"
	"strings"

	"github.com/findy-network/findy-protocol-engine/agent/comm"
	"github.com/findy-network/findy-protocol-engine/agent/utils"
	"github.com/findy-network/findy-protocol-engine/cmds"
	"github.com/lainio/err2"
	"github.com/lainio/err2/try"
)

type PingCmd struct {
	BaseAddr string
}

func (c PingCmd) Validate() error {
	if c.BaseAddr == "" {
		return errors.New("server url cannot be empty")
	}
	return nil
}

func (c PingCmd) Exec(w io.Writer) (r cmds.Result, err error) {
	defer err2.Return(&err)

	ctx, cancel := context.WithTimeout(context.Background(),
		utils.Settings.Timeout())
	defer cancel()

	data := try.To1(comm.SendAndWaitReq(ctx, c.BaseAddr+"/version",
		strings.NewReader(""), utils.Settings.Timeout()))
	cmds.Fprintln(w, "ping ok.",
		"\nserver's version info:", string(data))

	return nil, nil
}
