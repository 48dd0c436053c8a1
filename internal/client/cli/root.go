package cli

import (
	"context"
	"os"

	"github.com/dmitrijs2005/deaddrop/internal/client/client"
	"github.com/dmitrijs2005/deaddrop/internal/client/config"
	"github.com/spf13/cobra"
)

// dial is a test seam for client.NewSourceClient.
var dial = func(c *config.Config) (client.Client, error) {
	return client.NewSourceClient(c.ServerEndpointAddr, c.ChunkSize)
}

// NewRootCommand builds the command tree. Flags override the config file.
func NewRootCommand() *cobra.Command {
	var (
		configPath string
		server     string
		app        *App
	)
	cfg := &config.Config{}
	cfg.LoadDefaults()

	root := &cobra.Command{
		Use:           "deaddrop-source",
		Short:         "Anonymous submission client",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := config.LoadConfig(configPath)
			if err != nil {
				return err
			}
			flags := cmd.Flags()
			if flags.Changed("server") {
				loaded.ServerEndpointAddr = server
			}
			if flags.Changed("timeout") {
				loaded.RequestTimeout = cfg.RequestTimeout
			}
			if flags.Changed("chunk-size") {
				loaded.ChunkSize = cfg.ChunkSize
			}

			api, err := dial(loaded)
			if err != nil {
				return err
			}
			app = NewApp(loaded, api, cmd.InOrStdin(), cmd.OutOrStdout())
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if app == nil {
				return nil
			}
			return app.Close()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			app.Run(cmd.Context())
			return nil
		},
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&configPath, "config", "c", "", "config file (TOML or JSON)")
	pf.StringVarP(&server, "server", "a", cfg.ServerEndpointAddr, "server address")
	pf.DurationVarP(&cfg.RequestTimeout, "timeout", "t", cfg.RequestTimeout, "per-request timeout")
	pf.IntVar(&cfg.ChunkSize, "chunk-size", cfg.ChunkSize, "upload frame size in bytes")

	current := func() *App { return app }
	root.AddCommand(submitCmd(current), metadataCmd(current), keyCmd(current))
	return root
}

func submitCmd(app func() *App) *cobra.Command {
	var (
		message string
		file    string
	)
	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Log in with your codename and send one submission",
		RunE: func(cmd *cobra.Command, args []string) error {
			a := app()
			if err := a.Login(cmd.Context()); err != nil {
				return err
			}
			return a.SubmitWith(cmd.Context(), message, file)
		},
	}
	cmd.Flags().StringVarP(&message, "message", "m", "", "message text")
	cmd.Flags().StringVarP(&file, "file", "f", "", "document to attach")
	return cmd
}

func metadataCmd(app func() *App) *cobra.Command {
	return &cobra.Command{
		Use:   "metadata",
		Short: "Print server build information",
		RunE: func(cmd *cobra.Command, args []string) error {
			return app().Metadata(cmd.Context())
		},
	}
}

func keyCmd(app func() *App) *cobra.Command {
	return &cobra.Command{
		Use:   "key",
		Short: "Print the journalist public key",
		RunE: func(cmd *cobra.Command, args []string) error {
			return app().JournalistKey(cmd.Context())
		},
	}
}

// Execute runs the root command against os.Args.
func Execute(ctx context.Context) error {
	root := NewRootCommand()
	root.SetIn(os.Stdin)
	return root.ExecuteContext(ctx)
}
