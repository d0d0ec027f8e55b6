package cmd

import (
	"fmt"

	"github.com/findy-network/findy-protocol-engine/agent/utils"
	"github.com/lainio/err2"
	"github.com/lainio/err2/try"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the engine version",
	RunE: func(_ *cobra.Command, _ []string) (err error) {
		defer err2.Return(&err)

		try.To1(fmt.Println(utils.Version))
		return nil
	},
}

func init() {
	defer err2.Catch(func(err error) {
		fmt.Println(err)
	})

	rootCmd.AddCommand(versionCmd)
}
