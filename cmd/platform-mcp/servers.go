// platform-mcp - MCP servers for developer platforms
// License: MIT
//
// Copyright (c) 2026 DevOpsClaw contributors

package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/freitascorp/platform-mcp/pkg/audit"
	"github.com/freitascorp/platform-mcp/pkg/azuredevops"
	"github.com/freitascorp/platform-mcp/pkg/config"
	"github.com/freitascorp/platform-mcp/pkg/figma"
	"github.com/freitascorp/platform-mcp/pkg/gcloud"
	"github.com/freitascorp/platform-mcp/pkg/github"
	"github.com/freitascorp/platform-mcp/pkg/health"
	"github.com/freitascorp/platform-mcp/pkg/litellm"
	"github.com/freitascorp/platform-mcp/pkg/logger"
	"github.com/freitascorp/platform-mcp/pkg/mcp"
	"github.com/freitascorp/platform-mcp/pkg/observability"
	"github.com/freitascorp/platform-mcp/pkg/platform"
	"github.com/freitascorp/platform-mcp/pkg/sonarqube"
	"github.com/freitascorp/platform-mcp/pkg/tools"
)

// serverSpec describes one platform server.
type serverSpec struct {
	Use      string
	Short    string
	Name     string
	Platform string
	// Defaults are per-server fallbacks for the shared settings.
	Defaults map[string]string
	// Catalog builds the live tool set from the environment.
	Catalog func(ctx context.Context, environ map[string]string, opts ...platform.Option) ([]tools.Tool, error)
	// Offline builds the same tool set without credentials, for listing.
	Offline func(ctx context.Context) ([]tools.Tool, error)
}

func servers() []serverSpec {
	return []serverSpec{
		{
			Use:      "azure-devops",
			Short:    "Serve Azure DevOps repos, pull requests, work items and pipelines",
			Name:     "azure-devops-mcp",
			Platform: azuredevops.Platform,
			Catalog: func(_ context.Context, environ map[string]string, opts ...platform.Option) ([]tools.Tool, error) {
				cfg, err := config.Load[config.AzureDevOps](environ)
				if err != nil {
					return nil, err
				}
				return azuredevops.New(cfg, opts...).Tools(), nil
			},
			Offline: func(context.Context) ([]tools.Tool, error) {
				return azuredevops.New(config.AzureDevOps{}).Tools(), nil
			},
		},
		{
			Use:      "github",
			Short:    "Serve GitHub repositories, issues, pull requests and search",
			Name:     "github-mcp",
			Platform: github.Platform,
			Catalog: func(_ context.Context, environ map[string]string, opts ...platform.Option) ([]tools.Tool, error) {
				cfg, err := config.Load[config.GitHub](environ)
				if err != nil {
					return nil, err
				}
				return github.New(cfg, opts...).Tools(), nil
			},
			Offline: func(context.Context) ([]tools.Tool, error) {
				return github.New(config.GitHub{}).Tools(), nil
			},
		},
		{
			Use:      "figma",
			Short:    "Serve Figma files, images, comments and team libraries",
			Name:     "figma-mcp",
			Platform: figma.Platform,
			Catalog: func(_ context.Context, environ map[string]string, opts ...platform.Option) ([]tools.Tool, error) {
				cfg, err := config.Load[config.Figma](environ)
				if err != nil {
					return nil, err
				}
				return figma.New(cfg, opts...).Tools(), nil
			},
			Offline: func(context.Context) ([]tools.Tool, error) {
				return figma.New(config.Figma{}).Tools(), nil
			},
		},
		{
			Use:      "sonarqube",
			Short:    "Serve SonarQube projects, issues, measures and quality gates",
			Name:     "sonarqube-mcp",
			Platform: sonarqube.Platform,
			Catalog: func(_ context.Context, environ map[string]string, opts ...platform.Option) ([]tools.Tool, error) {
				cfg, err := config.Load[config.SonarQube](environ)
				if err != nil {
					return nil, err
				}
				if cfg.Token == "" {
					logger.WarnCF("sonarqube", "SONARQUBE_TOKEN not set, requests are anonymous", nil)
				}
				return sonarqube.New(cfg, opts...).Tools(), nil
			},
			Offline: func(context.Context) ([]tools.Tool, error) {
				return sonarqube.New(config.SonarQube{}).Tools(), nil
			},
		},
		{
			Use:      "gcloud",
			Short:    "Serve Google Cloud projects, storage, compute, logging, Run, GKE and Pub/Sub",
			Name:     "gcloud-mcp",
			Platform: gcloud.Platform,
			Catalog: func(ctx context.Context, environ map[string]string, opts ...platform.Option) ([]tools.Tool, error) {
				cfg, err := config.Load[config.GoogleCloud](environ)
				if err != nil {
					return nil, err
				}
				c, err := gcloud.New(ctx, cfg, opts...)
				if err != nil {
					return nil, err
				}
				return c.Tools(), nil
			},
			Offline: func(ctx context.Context) ([]tools.Tool, error) {
				// A placeholder token keeps credential discovery out of listing.
				c, err := gcloud.New(ctx, config.GoogleCloud{AccessToken: "unused"})
				if err != nil {
					return nil, err
				}
				return c.Tools(), nil
			},
		},
		{
			Use:      "litellm",
			Short:    "Serve a LiteLLM proxy over HTTP (models, completions, spend)",
			Name:     "litellm-mcp",
			Platform: litellm.Platform,
			Defaults: map[string]string{"MCP_TRANSPORT": config.TransportHTTP, "PORT": "3000"},
			Catalog: func(_ context.Context, environ map[string]string, opts ...platform.Option) ([]tools.Tool, error) {
				cfg, err := config.Load[config.LiteLLM](environ)
				if err != nil {
					return nil, err
				}
				return litellm.New(cfg, opts...).Tools(), nil
			},
			Offline: func(context.Context) ([]tools.Tool, error) {
				return litellm.New(config.LiteLLM{}).Tools(), nil
			},
		},
	}
}

func newServerCmd(spec serverSpec) *cobra.Command {
	cmd := &cobra.Command{
		Use:   spec.Use,
		Short: spec.Short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd, spec, config.Environ())
		},
	}
	cmd.AddCommand(newToolsCmd(spec))
	return cmd
}

// runServer loads configuration, wires the server and blocks on the
// selected transport until EOF (stdio) or cancellation.
func runServer(cmd *cobra.Command, spec serverSpec, environ map[string]string) error {
	ctx := cmd.Context()

	srvCfg, err := config.LoadServer(environ, spec.Defaults)
	if err != nil {
		return err
	}
	level, err := logger.ParseLevel(srvCfg.LogLevel)
	if err != nil {
		return fmt.Errorf("config: MCP_LOG_LEVEL: %w", err)
	}
	if flagDebug {
		level = logger.DEBUG
	}
	if err := logger.Configure(cmd.ErrOrStderr(), level, srvCfg.LogFormat); err != nil {
		return fmt.Errorf("config: MCP_LOG_FORMAT: %w", err)
	}

	var opts []platform.Option
	if srvCfg.HTTPTimeout > 0 {
		opts = append(opts, platform.WithTimeout(srvCfg.HTTPTimeout))
	}
	catalog, err := spec.Catalog(ctx, environ, opts...)
	if err != nil {
		return err
	}
	reg := tools.NewToolRegistry()
	reg.Register(catalog...)

	metrics := observability.NewServerMetrics(spec.Name)
	serverOpts := []mcp.Option{
		mcp.WithServerInfo(spec.Name, version),
		mcp.WithMetrics(metrics),
	}

	store, err := audit.NewStore(auditStoreConfig(srvCfg.Audit))
	if err != nil {
		return fmt.Errorf("audit: %w", err)
	}
	if store != nil {
		defer store.Close()
		serverOpts = append(serverOpts, mcp.WithAudit(audit.NewLogger(store, spec.Name, spec.Platform)))
	}

	srv := mcp.NewServerWithIO(reg, cmd.InOrStdin(), cmd.OutOrStdout(), serverOpts...)
	logger.InfoCF("main", "Starting server", map[string]any{
		"server":    spec.Name,
		"transport": srvCfg.Transport,
		"tools":     reg.Count(),
		"audit":     srvCfg.Audit.Backend,
	})

	if srvCfg.Transport == config.TransportHTTP {
		hs := health.NewServer(spec.Name)
		hs.RegisterCheck("tools", func() (bool, string) {
			return reg.Count() > 0, fmt.Sprintf("%d tools", reg.Count())
		})
		return mcp.NewHTTPServer(srv, mcp.HTTPConfig{
			Addr:    srvCfg.Addr(),
			Token:   srvCfg.Token,
			Health:  hs,
			Metrics: metrics.Registry,

			MaxConcurrent: srvCfg.MaxConcurrent,
			RateLimit:     srvCfg.RateLimit,
			RateBurst:     srvCfg.RateBurst,
		}).ListenAndServe(ctx)
	}
	return srv.Serve(ctx)
}

func newToolsCmd(spec serverSpec) *cobra.Command {
	var flagFormat string

	cmd := &cobra.Command{
		Use:   "tools",
		Short: "Print the tool catalog (no credentials needed)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			catalog, err := spec.Offline(cmd.Context())
			if err != nil {
				return err
			}
			reg := tools.NewToolRegistry()
			reg.Register(catalog...)
			defs := reg.Definitions()

			var data []byte
			switch flagFormat {
			case "json":
				data, err = json.MarshalIndent(defs, "", "  ")
				data = append(data, '\n')
			case "yaml":
				data, err = yaml.Marshal(defs)
			default:
				return fmt.Errorf("unknown --format %q (supported: json, yaml)", flagFormat)
			}
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}

	cmd.Flags().StringVar(&flagFormat, "format", "json", "Output format: json or yaml")
	return cmd
}
