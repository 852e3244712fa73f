package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/insightdelivered/statement-ingest/internal/bank"
)

func init() {
	rootCmd.AddCommand(banksCmd)
	banksCmd.AddCommand(banksCheckCmd)
}

var banksCmd = &cobra.Command{
	Use:   "banks",
	Short: "List the institutions statements can be identified as",
	Args:  cobra.NoArgs,
	RunE:  runBanks,
}

func runBanks(cmd *cobra.Command, args []string) error {
	registry, err := cfg.Registry()
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tCURRENCY\tKINDS\tCREDENTIALS\tFINGERPRINTS")
	for _, p := range registry.Profiles() {
		kinds := make([]string, 0, len(p.Formats))
		for _, f := range p.Formats {
			kinds = append(kinds, string(f.Kind))
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n",
			p.Name, p.Currency, strings.Join(kinds, ","), len(p.Credentials), strings.Join(p.Fingerprints, "; "))
	}
	return w.Flush()
}

var banksCheckCmd = &cobra.Command{
	Use:   "check FILE.toml",
	Short: "Validate a bank declarations file",
	Long: `Load a bank declarations file, compile every pattern and check it against
the built-in profiles it would be merged with.`,
	Args: cobra.ExactArgs(1),
	RunE: runBanksCheck,
}

func runBanksCheck(cmd *cobra.Command, args []string) error {
	profiles, err := bank.LoadFile(args[0])
	if err != nil {
		return err
	}
	if _, err := bank.NewRegistry(bank.Merge(bank.Builtin(), profiles)...); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s: %d profile(s) OK\n", args[0], len(profiles))
	return nil
}
