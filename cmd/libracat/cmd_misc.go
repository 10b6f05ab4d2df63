// cmd/libracat/cmd_misc.go
package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"libracat/internal/auth"
	"libracat/internal/tui"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

func newTUICmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "tui",
		Short: "Open the interactive catalog window",
		Args:  cobra.NoArgs,
		RunE: withSession(opts, func(ctx context.Context, sess *session, cmd *cobra.Command, args []string) error {
			return tui.Run(ctx, sess.svc)
		}),
	}
}

func newEventsCmd(opts *options) *cobra.Command {
	var (
		after int64
		limit int
	)
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Print journaled catalog changes",
		Args:  cobra.NoArgs,
	}
	cmd.Flags().Int64Var(&after, "after", 0, "Only events after this sequence number")
	cmd.Flags().IntVar(&limit, "limit", 100, "Maximum number of events")
	cmd.RunE = withSession(opts, func(ctx context.Context, sess *session, cmd *cobra.Command, args []string) error {
		events, err := sess.Events(ctx, after, limit)
		if err != nil {
			return err
		}
		if len(events) == 0 && sess.remote == nil {
			switch opts.cfg.Journal.Backend {
			case "", "none", "memory":
				fmt.Fprintf(cmd.ErrOrStderr(),
					"no local journal history: the %q journal does not outlive one command; use --server to read a running server's journal\n",
					opts.cfg.Journal.Backend)
				return nil
			}
		}
		out := cmd.OutOrStdout()
		for _, e := range events {
			fmt.Fprintf(out, "%d\t%s\t%s\titem=%d\t%s\n",
				e.Seq, e.CreatedAt.Format(time.RFC3339), e.Type, e.ItemID, e.Data)
		}
		return nil
	})
	return cmd
}

func newHashTokenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-token [token]",
		Short: "Hash an admin token for server.admin_token_hash",
		Long: `Prints the argon2id hash of an admin token. The token is read from the
argument, or from the first line of standard input when no argument is
given.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var token string
			if len(args) == 1 {
				token = args[0]
			} else {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && err != io.EOF {
					return fmt.Errorf("read token: %w", err)
				}
				token = strings.TrimSpace(line)
			}

			hash, err := auth.HashToken(token)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}
}
