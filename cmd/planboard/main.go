package main

import (
	"fmt"
	"os"

	"github.com/fentz26/planboard/internal/config"
	"github.com/fentz26/planboard/internal/controlplane"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "planboard",
	Short: "Planboard - task and plan marketplace control plane",
	Long: `Planboard tracks client tasks through their lifecycle, computes progress
from dates or achieved amounts, and sells plan templates that turn into tasks.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		cfg = loaded
		if apiAddr == "" {
			apiAddr = cfg.API
		}
		return nil
	},
	// No RunE - defaults to showing help when no subcommand is provided
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the planboard version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("planboard", controlplane.Version)
	},
}

var (
	apiAddr string
	cfgFile string
	cfg     *config.Config
)

func init() {
	rootCmd.PersistentFlags().StringVar(&apiAddr, "api", "", "API server address (default from config, http://127.0.0.1:7466)")
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file (default ~/.planboard/config.yaml)")

	// Add subcommands
	rootCmd.AddCommand(daemonCmd)
	rootCmd.AddCommand(taskCmd)
	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(clientCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(tuiCmd)
	rootCmd.AddCommand(mcpCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
