// Package engine implements the command that configures and runs the
// protocol engine server process.
package engine

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/findy-network/findy-protocol-engine/agent/agency"
	"github.com/findy-network/findy-protocol-engine/agent/utils"
	"github.com/findy-network/findy-protocol-engine/cmds"
	"github.com/findy-network/findy-protocol-engine/server"
	"github.com/golang/glog"
	"github.com/lainio/err2"
)

type Cmd struct {
	Label      string
	HostScheme string
	HostAddr   string
	HostPort   uint
	ServerPort uint

	StoragePath string
	StorageKey  string
	PsmDB       string
	QueueDB     string
	EnclaveDB   string

	Timeout    time.Duration
	RetryBase  time.Duration
	RetryCap   time.Duration
	GCInterval time.Duration

	Workers     int
	VersionInfo string
}

// DefaultValues is the starting point for the flag parsing.
var DefaultValues = Cmd{
	Label:       "engine",
	HostScheme:  "http",
	HostAddr:    "localhost",
	HostPort:    8080,
	ServerPort:  8080,
	StoragePath: ".",
	PsmDB:       "exchanges.bolt",
	QueueDB:     "engine",
	EnclaveDB:   "enclave.bolt",
	Timeout:     utils.HTTPReqTimeout,
	RetryBase:   time.Second,
	RetryCap:    60 * time.Second,
	GCInterval:  time.Hour,
	Workers:     4,
}

func (c *Cmd) Validate() error {
	if c.Label == "" {
		return errors.New("agent label cannot be empty")
	}
	if c.HostAddr == "" {
		return errors.New("host address cannot be empty")
	}
	if c.ServerPort == 0 {
		return errors.New("server port cannot be zero")
	}
	if c.StoragePath == "" {
		return errors.New("storage path cannot be empty")
	}
	if c.PsmDB == "" || c.QueueDB == "" || c.EnclaveDB == "" {
		return errors.New("database names cannot be empty")
	}
	if c.RetryBase <= 0 {
		return errors.New("retry base must be positive")
	}
	if c.RetryCap < c.RetryBase {
		return errors.New("retry cap cannot be under retry base")
	}
	if c.GCInterval <= 0 {
		return errors.New("gc interval must be positive")
	}
	if c.Workers < 0 {
		return errors.New("worker count cannot be negative")
	}
	return nil
}

func (c *Cmd) Exec(_ io.Writer) (r cmds.Result, err error) {
	return nil, StartEngine(c)
}

// StartEngine sets up the runtime settings, opens the agency and blocks
// serving the agent to agent endpoint.
func StartEngine(c *Cmd) (err error) {
	defer err2.Return(&err)

	err2.Check(c.Setup())

	a, err := agency.Open(agency.Config{
		Label:       c.Label,
		StoragePath: c.StoragePath,
		StorageKey:  c.StorageKey,
		Workers:     c.Workers,
	})
	err2.Check(err)
	defer c.closeAll(a)

	err2.Check(server.StartHTTPServer(a, c.ServerPort))
	return nil
}

func (c *Cmd) Setup() (err error) {
	defer err2.Return(&err)

	c.printStartupArgs()
	c.setRuntimeSettings()
	server.BuildHostAddr(c.HostScheme, c.HostPort)
	return nil
}

func (c *Cmd) printStartupArgs() {
	fmt.Println(
		"Agent label:", c.Label,
		"\nStorage path:", c.StoragePath,
		"\nHost address:", c.HostAddr,
		"\nHost port:", c.HostPort,
		"\nServer port:", c.ServerPort)
}

func (c *Cmd) setRuntimeSettings() {
	utils.Settings.SetVersionInfo(c.VersionInfo)
	utils.Settings.SetHostAddr(c.HostAddr)
	utils.Settings.SetPsmDBName(c.PsmDB)
	utils.Settings.SetQueueDBName(c.QueueDB)
	utils.Settings.SetEnclaveDBName(c.EnclaveDB)
	utils.Settings.SetTimeout(c.Timeout)
	utils.Settings.SetRetryBase(c.RetryBase)
	utils.Settings.SetRetryCap(c.RetryCap)
	utils.Settings.SetExchangeGCInterval(c.GCInterval)

	if c.HostPort == 0 {
		c.HostPort = c.ServerPort
	}
}

func (c *Cmd) closeAll(a *agency.Agency) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.Shutdown(ctx); err != nil {
		glog.Warningln("engine shutdown:", err)
	}
}

// ParseLoggingArgs parses stdlib flag based logging flags from the
// argument string. The glog package reads its levels from there.
func ParseLoggingArgs(s string) {
	args := make([]string, 1, 12)
	args[0] = os.Args[0]
	args = append(args, strings.Split(s, " ")...)
	orgArgs := os.Args
	os.Args = args
	flag.Parse()
	os.Args = orgArgs
}
