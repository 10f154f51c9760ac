package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "mandantis",
	Short: "Mandantis, das Mandanten-Portal für Steuerkanzleien",
	Long:  "Mandantis is a multi-tenant portal backend for accounting firms: client document intake, DATEV account assignment, export batches, and per-tenant team management.",
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: configs/mandantis.yaml)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
