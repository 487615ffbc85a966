package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/ValentinKolb/itemstore/cmd/bench"
	"github.com/ValentinKolb/itemstore/cmd/serve"
	"github.com/ValentinKolb/itemstore/cmd/util"
	"github.com/ValentinKolb/itemstore/cmd/xid"
	"github.com/ValentinKolb/itemstore/lib/common"
	"github.com/spf13/cobra"
)

const (
	Version = "0.3.0"
)

var (

	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "itemstore",
		Short: "item store with a concurrent id index",
		Long: fmt.Sprintf(`itemstore (v%s)

A store for messages, references and streams. Every item is resolved by its
64-bit id through a concurrent index, the store lifecycle is driven by a
controller with transactional persistence.`, Version),
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of itemstore",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("itemstore v%s\n", Version)
		},
	}
)

func init() {
	// initialize viper
	cobra.OnInitialize(util.InitConfig)

	// Add Commands
	RootCmd.AddCommand(serve.ServeCmd)
	RootCmd.AddCommand(bench.BenchCmd)
	RootCmd.AddCommand(xid.XIDCommands)
	RootCmd.AddCommand(versionCmd)

	// Add Flags
	key := "log-level"
	RootCmd.PersistentFlags().String(key, "info", util.WrapString(fmt.Sprintf(
		"LogLevel is the level at which logs will be output (debug, info, warn, error, critical). "+
			"Single loggers can be overridden with <logger>=<level>, e.g. \"info,store=debug\" (loggers: %s)",
		strings.Join(common.LoggerNames(), ", "))))
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
