// cmd/libracat/main.go
package main

import (
	"fmt"
	"libracat/internal/config"
	"libracat/internal/logging"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// options holds the global flags and what PersistentPreRunE builds from
// them.
type options struct {
	configPath string
	serverURL  string
	token      string
	verbose    bool
	ephemeral  bool

	cfg    *config.Config
	logger *zap.Logger
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:   "libracat",
		Short: "Library catalog of items and books",
		Long: `libracat keeps an ordered catalog of library items and books in a
comma-separated flat file (or badger, sqlite or postgres), and serves it
over HTTP, a terminal UI and one-shot commands.

Every command works against the local store, or against a running
"libracat serve" when --server is given.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(opts.configPath)
			if err != nil {
				return err
			}
			if opts.ephemeral {
				cfg.Storage.Backend = "memory"
				cfg.Storage.Watch = false
			}
			opts.cfg = cfg

			logger, err := logging.New(cfg.Logging, opts.verbose)
			if err != nil {
				return err
			}
			opts.logger = logger
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if opts.logger != nil {
				_ = opts.logger.Sync()
			}
		},
	}

	rootCmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", config.DefaultPath, "Config file")
	rootCmd.PersistentFlags().StringVarP(&opts.serverURL, "server", "s", os.Getenv("LIBRACAT_SERVER"), "Use a remote libracat server instead of the local store")
	rootCmd.PersistentFlags().StringVar(&opts.token, "token", os.Getenv("LIBRACAT_TOKEN"), "Admin bearer token for a remote server")
	rootCmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().BoolVar(&opts.ephemeral, "ephemeral", false, "Keep the catalog in memory only")

	addCmd := &cobra.Command{
		Use:   "add",
		Short: "Add an item or a book",
	}
	addCmd.AddCommand(newAddItemCmd(opts), newAddBookCmd(opts))

	rootCmd.AddCommand(
		newServeCmd(opts),
		addCmd,
		newListCmd(opts),
		newFindCmd(opts),
		newEditCmd(opts),
		newDeleteCmd(opts),
		newViewCmd(opts),
		newChartCmd(opts),
		newTUICmd(opts),
		newEventsCmd(opts),
		newHashTokenCmd(),
	)
	return rootCmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
