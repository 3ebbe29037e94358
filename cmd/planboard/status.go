package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show daemon health and milestone sweeper state",
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	health, err := CheckHealth()
	if health != nil {
		fmt.Printf("Daemon:   %s (version %s)\n", apiAddr, health.Version)
		fmt.Printf("Database: %s\n", health.DB)
	}
	if err != nil {
		return err
	}

	var stats map[string]interface{}
	if err := apiGet("/admin/sweeper", &stats); err != nil {
		return err
	}
	if enabled, _ := stats["enabled"].(bool); !enabled {
		fmt.Println("Sweeper:  disabled")
		return nil
	}

	fmt.Println("Sweeper:")
	keys := make([]string, 0, len(stats))
	for k := range stats {
		if k != "enabled" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Printf("  %-15s %v\n", k+":", stats[k])
	}
	return nil
}
