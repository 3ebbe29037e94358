package main

import (
	"log"

	"github.com/fentz26/planboard/internal/audit"
	"github.com/fentz26/planboard/internal/controlplane"
	"github.com/fentz26/planboard/internal/lifecycle"
	"github.com/fentz26/planboard/internal/mcp"
	"github.com/fentz26/planboard/internal/store"
	"github.com/spf13/cobra"
)

var mcpDBPath string

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve planboard tools over MCP (stdio)",
	Long: `Runs a Model Context Protocol server on stdin/stdout. Tools operate on the
local database directly, so the daemon does not need to be running.`,
	RunE: runMCP,
}

func init() {
	mcpCmd.Flags().StringVar(&mcpDBPath, "db", "", "Path to SQLite database (default from config)")
}

func runMCP(cmd *cobra.Command, args []string) error {
	if mcpDBPath == "" {
		mcpDBPath = cfg.DB
	}

	s, err := store.New(mcpDBPath)
	if err != nil {
		return err
	}
	defer s.Close()

	service := controlplane.NewService(s, audit.NewPDRWriter(s), lifecycle.NewEngine(nil))
	// stdout carries the protocol; log lines go to stderr.
	log.Printf("MCP server ready on stdio (db %s)", mcpDBPath)
	return mcp.Serve(mcp.NewServer(service))
}
