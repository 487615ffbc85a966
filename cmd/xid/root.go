package xid

import (
	"encoding/hex"
	"fmt"

	"github.com/ValentinKolb/itemstore/cmd/util"
	"github.com/ValentinKolb/itemstore/lib/store/xid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	// XIDCommands groups the transaction id commands
	XIDCommands = &cobra.Command{
		Use:   "xid",
		Short: "Create and inspect transaction ids",
		Long:  `Transaction ids have the form <formatId>:<global transaction id (hex)>:<branch qualifier (hex)>. They are used to resolve in-doubt transactions.`,
	}
	newCmd = &cobra.Command{
		Use:     "new",
		Short:   "Create a fresh transaction id",
		PreRunE: func(cmd *cobra.Command, _ []string) error { return util.BindCommandFlags(cmd) },
		RunE:    runNew,
	}
	parseCmd = &cobra.Command{
		Use:   "parse <xid>",
		Short: "Parse and validate a transaction id",
		Args:  cobra.ExactArgs(1),
		RunE:  runParse,
	}
)

func init() {
	XIDCommands.AddCommand(newCmd)
	XIDCommands.AddCommand(parseCmd)

	key := "format-id"
	newCmd.Flags().Int32(key, 1, util.WrapString("The format id of the new transaction id"))
}

func runNew(cmd *cobra.Command, _ []string) error {
	x := xid.New(viper.GetInt32("format-id"))
	_, err := fmt.Fprintln(cmd.OutOrStdout(), x.String())
	return err
}

func runParse(cmd *cobra.Command, args []string) error {
	x, err := xid.Parse(args[0])
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%-24s: %d\n", "Format ID", x.FormatID)
	fmt.Fprintf(out, "%-24s: %s (%d bytes)\n", "Global Transaction ID", hex.EncodeToString(x.GlobalTransactionID), len(x.GlobalTransactionID))
	fmt.Fprintf(out, "%-24s: %s (%d bytes)\n", "Branch Qualifier", hex.EncodeToString(x.BranchQualifier), len(x.BranchQualifier))
	return nil
}
