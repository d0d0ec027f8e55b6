package cmd

import (
	"log"
	"os"

	"github.com/findy-network/findy-protocol-engine/agent/utils"
	"github.com/findy-network/findy-protocol-engine/cmds/engine"
	"github.com/lainio/err2"
	"github.com/spf13/cobra"
)

// ServerCmd represents the server command
var ServerCmd = &cobra.Command{
	Use:   "server",
	Short: "Parent command for starting and pinging the engine server",
	Long: `
Parent command for starting and pinging the engine server
	`,
	Run: func(cmd *cobra.Command, args []string) {
		SubCmdNeeded(cmd)
	},
}

var serverStartEnvs = map[string]string{
	"label":        "LABEL",
	"host-scheme":  "HOST_SCHEME",
	"host-address": "HOST_ADDRESS",
	"host-port":    "HOST_PORT",
	"server-port":  "SERVER_PORT",
	"storage-path": "STORAGE_PATH",
	"storage-key":  "STORAGE_KEY",
	"psm-db":       "PSM_DB",
	"queue-db":     "QUEUE_DB",
	"enclave-db":   "ENCLAVE_DB",
	"timeout":      "TIMEOUT",
	"retry-base":   "RETRY_BASE",
	"retry-cap":    "RETRY_CAP",
	"gc-interval":  "GC_INTERVAL",
	"workers":      "WORKERS",
}

// startServerCmd represents the server start subcommand
var startServerCmd = &cobra.Command{
	Use:   "start",
	Short: "Command for starting the engine server",
	Long: `
Start command for the protocol engine server.

Example
	findy-protocol-engine server start \
		--label my-agent \
		--host-address agent.example.com \
		--storage-path /var/lib/engine
	`,
	PreRunE: func(cmd *cobra.Command, args []string) (err error) {
		return BindEnvs(serverStartEnvs, "SERVER")
	},
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		defer err2.Return(&err)

		err2.Check(eCmd.Validate())
		if !rootFlags.dryRun {
			cmd.SilenceUsage = true
			_, err = eCmd.Exec(os.Stdout)
			err2.Check(err)
		}
		return nil
	},
}

var serverPingEnvs = map[string]string{
	"base-address": "PING_BASE_ADDRESS",
}

// pingServerCmd represents the server ping subcommand
var pingServerCmd = &cobra.Command{
	Use:   "ping",
	Short: "Command for pinging the engine server",
	Long: `
Pings the engine server.
If the server works fine, ping ok with its version info is printed.

Example
	findy-protocol-engine server ping \
		--base-address http://localhost:8080
	`,
	PreRunE: func(cmd *cobra.Command, args []string) (err error) {
		return BindEnvs(serverPingEnvs, "SERVER")
	},
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		defer err2.Return(&err)

		err2.Check(pCmd.Validate())
		if !rootFlags.dryRun {
			cmd.SilenceUsage = true
			_, err = pCmd.Exec(os.Stdout)
			err2.Check(err)
		}
		return nil
	},
}

var (
	eCmd = engine.DefaultValues
	pCmd = engine.PingCmd{}
)

func init() {
	defer err2.CatchTrace(func(err error) {
		log.Println(err)
	})

	eCmd.VersionInfo = "findy-protocol-engine v. " + utils.Version

	flags := startServerCmd.Flags()
	flags.StringVar(&eCmd.Label, "label", eCmd.Label, flagInfo("agent label sent to peers", ServerCmd.Name(), serverStartEnvs["label"]))
	flags.StringVar(&eCmd.HostScheme, "host-scheme", eCmd.HostScheme, flagInfo("scheme of the server's host address", ServerCmd.Name(), serverStartEnvs["host-scheme"]))
	flags.StringVar(&eCmd.HostAddr, "host-address", eCmd.HostAddr, flagInfo("host address", ServerCmd.Name(), serverStartEnvs["host-address"]))
	flags.UintVar(&eCmd.HostPort, "host-port", eCmd.HostPort, flagInfo("host port", ServerCmd.Name(), serverStartEnvs["host-port"]))
	flags.UintVar(&eCmd.ServerPort, "server-port", eCmd.ServerPort, flagInfo("server port", ServerCmd.Name(), serverStartEnvs["server-port"]))
	flags.StringVar(&eCmd.StoragePath, "storage-path", eCmd.StoragePath, flagInfo("directory for the database files", ServerCmd.Name(), serverStartEnvs["storage-path"]))
	flags.StringVar(&eCmd.StorageKey, "storage-key", "", flagInfo("symmetric key for the stores, hex coded", ServerCmd.Name(), serverStartEnvs["storage-key"]))
	flags.StringVar(&eCmd.PsmDB, "psm-db", eCmd.PsmDB, flagInfo("state machine db's filename", ServerCmd.Name(), serverStartEnvs["psm-db"]))
	flags.StringVar(&eCmd.QueueDB, "queue-db", eCmd.QueueDB, flagInfo("delivery queue db's filename", ServerCmd.Name(), serverStartEnvs["queue-db"]))
	flags.StringVar(&eCmd.EnclaveDB, "enclave-db", eCmd.EnclaveDB, flagInfo("key enclave db's filename", ServerCmd.Name(), serverStartEnvs["enclave-db"]))
	flags.DurationVar(&eCmd.Timeout, "timeout", eCmd.Timeout, flagInfo("timeout for transport sends", ServerCmd.Name(), serverStartEnvs["timeout"]))
	flags.DurationVar(&eCmd.RetryBase, "retry-base", eCmd.RetryBase, flagInfo("first retry wait for outbound delivery", ServerCmd.Name(), serverStartEnvs["retry-base"]))
	flags.DurationVar(&eCmd.RetryCap, "retry-cap", eCmd.RetryCap, flagInfo("longest retry wait for outbound delivery", ServerCmd.Name(), serverStartEnvs["retry-cap"]))
	flags.DurationVar(&eCmd.GCInterval, "gc-interval", eCmd.GCInterval, flagInfo("duration between exchange cleanup sweeps", ServerCmd.Name(), serverStartEnvs["gc-interval"]))
	flags.IntVar(&eCmd.Workers, "workers", eCmd.Workers, flagInfo("delivery worker count", ServerCmd.Name(), serverStartEnvs["workers"]))

	p := pingServerCmd.Flags()
	p.StringVar(&pCmd.BaseAddr, "base-address", "http://localhost:8080", flagInfo("base address of the engine server", ServerCmd.Name(), serverPingEnvs["base-address"]))

	rootCmd.AddCommand(ServerCmd)
	ServerCmd.AddCommand(startServerCmd)
	ServerCmd.AddCommand(pingServerCmd)
}
