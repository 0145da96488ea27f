// platform-mcp - MCP servers for developer platforms
// License: MIT
//
// Copyright (c) 2026 DevOpsClaw contributors

package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/freitascorp/platform-mcp/pkg/audit"
	"github.com/freitascorp/platform-mcp/pkg/config"
	"github.com/freitascorp/platform-mcp/pkg/logger"
)

// ------------------------------------------------------------------
// Global flags
// ------------------------------------------------------------------

var flagDebug bool

// ------------------------------------------------------------------
// Root command
// ------------------------------------------------------------------

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "platform-mcp",
		Short: "MCP servers for Azure DevOps, GitHub, Figma, SonarQube, Google Cloud and LiteLLM",
		Long: `platform-mcp runs Model Context Protocol servers that expose developer
platform APIs as tools for AI clients.

Each platform is its own server. Configuration comes from the environment;
MCP_TRANSPORT selects stdio (default) or http.

Claude Desktop configuration:
  {
    "mcpServers": {
      "github": {
        "command": "platform-mcp",
        "args": ["github"],
        "env": {"GITHUB_TOKEN": "..."}
      }
    }
  }`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if flagDebug {
				logger.SetLevel(logger.DEBUG)
			}
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().BoolVarP(&flagDebug, "debug", "d", false, "Enable debug logging")

	for _, spec := range servers() {
		root.AddCommand(newServerCmd(spec))
	}
	root.AddCommand(
		newAuditCmd(),
		newVersionCmd(),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			printVersion(cmd.OutOrStdout())
		},
	}
}

// ------------------------------------------------------------------
// `platform-mcp audit`: tool call audit log
// ------------------------------------------------------------------

func newAuditCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Query the tool call audit log",
		Long: `Query the audit log written by the servers.

The backend is selected with the same AUDIT_* variables the servers use.`,
	}

	cmd.AddCommand(
		newAuditListCmd(),
		newAuditExportCmd(),
	)
	return cmd
}

// openAuditStore opens the configured backend; "none" is an error here
// because there is nothing to read.
func openAuditStore() (audit.Store, error) {
	cfg, err := config.Load[config.Server](nil)
	if err != nil {
		return nil, err
	}
	store, err := audit.NewStore(auditStoreConfig(cfg.Audit))
	if err != nil {
		return nil, err
	}
	if store == nil {
		return nil, fmt.Errorf("audit log is disabled: set AUDIT_BACKEND to file, sqlite or postgres")
	}
	return store, nil
}

func auditStoreConfig(a config.Audit) audit.StoreConfig {
	sc := audit.StoreConfig{
		Backend:    a.Backend,
		Dir:        a.Dir,
		SQLitePath: a.SQLitePath,
	}
	if a.Backend == "postgres" {
		sc.PostgresDSN = a.Postgres.DSN()
	}
	return sc
}

func parseSince(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	dur, err := time.ParseDuration(s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --since duration: %w", err)
	}
	return time.Now().Add(-dur), nil
}

func newAuditListCmd() *cobra.Command {
	var (
		flagServer string
		flagTool   string
		flagStatus string
		flagSince  string
		flagLimit  int
		flagJSON   bool
	)

	cmd := &cobra.Command{
		Use:     "list",
		Short:   "List audit events",
		Aliases: []string{"ls"},
		RunE: func(cmd *cobra.Command, args []string) error {
			since, err := parseSince(flagSince)
			if err != nil {
				return err
			}
			store, err := openAuditStore()
			if err != nil {
				return err
			}
			defer store.Close()

			events, err := store.Query(cmd.Context(), audit.QueryOptions{
				User:   flagServer,
				Action: flagTool,
				Status: flagStatus,
				Since:  since,
				Limit:  flagLimit,
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if flagJSON {
				data, _ := json.MarshalIndent(events, "", "  ")
				fmt.Fprintln(out, string(data))
				return nil
			}

			if len(events) == 0 {
				fmt.Fprintln(out, "No audit events found.")
				return nil
			}

			fmt.Fprintf(out, "%-20s %-18s %-28s %-9s %s\n", "TIMESTAMP", "SERVER", "TOOL", "STATUS", "DURATION")
			fmt.Fprintln(out, strings.Repeat("─", 88))
			for _, e := range events {
				status, dur := "", ""
				if e.Result != nil {
					status = e.Result.Status
					dur = (time.Duration(e.Result.DurationMS) * time.Millisecond).String()
				}
				fmt.Fprintf(out, "%-20s %-18s %-28s %-9s %s\n",
					e.Timestamp.Local().Format("2006-01-02 15:04:05"),
					e.User,
					e.Action,
					status,
					dur,
				)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&flagServer, "server", "", "Filter by server name")
	cmd.Flags().StringVar(&flagTool, "tool", "", "Filter by tool name")
	cmd.Flags().StringVar(&flagStatus, "status", "", "Filter by status (success, error, rejected, failed)")
	cmd.Flags().StringVar(&flagSince, "since", "", "Filter since duration (e.g., 2h, 24h)")
	cmd.Flags().IntVar(&flagLimit, "limit", 50, "Show only the most recent N events")
	cmd.Flags().BoolVar(&flagJSON, "json", false, "Output in JSON format")

	return cmd
}

func newAuditExportCmd() *cobra.Command {
	var flagSince string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export audit events as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			since, err := parseSince(flagSince)
			if err != nil {
				return err
			}
			store, err := openAuditStore()
			if err != nil {
				return err
			}
			defer store.Close()

			events, err := store.Export(cmd.Context(), since)
			if err != nil {
				return err
			}

			data, _ := json.MarshalIndent(events, "", "  ")
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		},
	}

	cmd.Flags().StringVar(&flagSince, "since", "24h", "Export since duration")

	return cmd
}
