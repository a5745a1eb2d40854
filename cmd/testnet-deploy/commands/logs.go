package commands

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/imamik/testnet-deploy/cmd/testnet-deploy/handlers"
)

// Logs returns the parent command of the log subcommands.
//
// Subcommands:
//   - rsync: pull node logs from every machine
//   - rg: search node logs on every machine
//   - copy: copy logs with the logs playbook
//   - get: download archived logs
//   - rm: delete archived logs
//   - reassemble: merge shipped log parts
func Logs(opts *handlers.Options) *cobra.Command {
	args := &handlers.LogsArgs{}

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Collect, search and manage node logs",
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			args.Options = *opts
			return nil
		},
	}
	cmd.PersistentFlags().StringVarP(&args.Name, "name", "n", "", "Name of the deployment")
	_ = cmd.MarkPersistentFlagRequired("name")
	cmd.PersistentFlags().StringVar(&args.MetricsFile, "metrics-file", "", "Write run metrics to this file in the Prometheus textfile format")

	cmd.AddCommand(
		logsRsync(args),
		logsSearch(args),
		logsCopy(args),
		logsGet(args),
		logsRm(args),
		logsReassemble(args),
	)
	return cmd
}

func logsRsync(args *handlers.LogsArgs) *cobra.Command {
	var filter string
	cmd := &cobra.Command{
		Use:   "rsync",
		Short: "Pull node logs from every machine",
		Long: `Pull the node log directory of every machine into logs/<name>.

Machines that fail are retried once after their host key is reset. Private
nodes are reached through their NAT gateway.

Examples:
  testnet-deploy logs rsync --name beta
  testnet-deploy logs rsync --name beta --filter genesis`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.LogsRsync(cmd.Context(), *args, filter)
		},
	}
	cmd.Flags().StringVar(&filter, "filter", "", "Only machines whose name contains this string")
	cmd.Flags().BoolVar(&args.Upload, "upload", false, "Archive the collected logs to the object store")
	return cmd
}

func logsSearch(args *handlers.LogsArgs) *cobra.Command {
	return &cobra.Command{
		Use:   "rg -- ARGS...",
		Short: "Search node logs on every machine",
		Long: `Run ripgrep against the node logs of every machine and write the matches
to logs/<name>/<machine>/rg-<timestamp>.log.

Examples:
  testnet-deploy logs rg --name beta -- -z "connection refused"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, rgArgs []string) error {
			return handlers.LogsSearch(cmd.Context(), *args, strings.Join(rgArgs, " "))
		},
	}
}

func logsCopy(args *handlers.LogsArgs) *cobra.Command {
	var resourcesOnly bool
	cmd := &cobra.Command{
		Use:   "copy",
		Short: "Copy logs with the logs playbook",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.LogsCopy(cmd.Context(), *args, resourcesOnly)
		},
	}
	cmd.Flags().BoolVar(&resourcesOnly, "resources-only", false, "Only copy resource usage logs")
	return cmd
}

func logsGet(args *handlers.LogsArgs) *cobra.Command {
	return &cobra.Command{
		Use:   "get",
		Short: "Download archived logs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.LogsGet(cmd.Context(), *args)
		},
	}
}

func logsRm(args *handlers.LogsArgs) *cobra.Command {
	return &cobra.Command{
		Use:   "rm",
		Short: "Delete archived logs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.LogsRm(cmd.Context(), *args)
		},
	}
}

func logsReassemble(args *handlers.LogsArgs) *cobra.Command {
	return &cobra.Command{
		Use:   "reassemble",
		Short: "Merge shipped log parts of downloaded logs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.LogsReassemble(cmd.Context(), *args)
		},
	}
}
