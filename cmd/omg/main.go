package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"

	datadir   = btcutil.AppDataDir("omg-cli", false)
	statePath = filepath.Join(datadir, "state.json")

	rootCmd = &cobra.Command{
		Use:   "omg",
		Short: "CLI for omg childchain daemon",
		Long:  "This CLI lets you interact with a running omgd daemon",
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			if _, err := os.Stat(datadir); os.IsNotExist(err) {
				os.Mkdir(datadir, os.ModeDir|0755)
			}
		},
		Version: formatVersion(),
	}
)

func initialState() map[string]string {
	return map[string]string{
		"server_url": "http://localhost:9656",
	}
}

func init() {
	rootCmd.AddCommand(configCmd, txCmd, balanceCmd, utxoCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func formatVersion() string {
	return fmt.Sprintf(
		"\nVersion: %s\nCommit: %s\nDate: %s", version, commit, date,
	)
}
