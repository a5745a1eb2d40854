package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/imamik/testnet-deploy/internal/deployment"
)

// nodeFlags are the node process settings shared by upscale and bootstrap.
type nodeFlags struct {
	publicRPC           bool
	maxArchivedLogFiles uint16
	maxLogFiles         uint16
	logFormat           string
	env                 []string
}

func (f *nodeFlags) bind(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&f.publicRPC, "public-rpc", false, "Expose the node RPC endpoints publicly")
	cmd.Flags().Uint16Var(&f.maxArchivedLogFiles, "max-archived-log-files", 5, "Maximum number of archived log files per node")
	cmd.Flags().Uint16Var(&f.maxLogFiles, "max-log-files", 10, "Maximum number of log files per node")
	cmd.Flags().StringVar(&f.logFormat, "log-format", "", "Node log format (default or json)")
	cmd.Flags().StringArrayVar(&f.env, "env", nil, "Environment variable for node processes as KEY=VALUE (repeatable)")
}

func (f *nodeFlags) envVars() ([]deployment.EnvVar, error) {
	return parseEnvVars(f.env)
}

func parseEnvVars(pairs []string) ([]deployment.EnvVar, error) {
	vars := make([]deployment.EnvVar, 0, len(pairs))
	for _, pair := range pairs {
		k, v, ok := strings.Cut(pair, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid environment variable %q: expected KEY=VALUE", pair)
		}
		vars = append(vars, deployment.EnvVar{Key: k, Value: v})
	}
	return vars, nil
}

func validateLogFormat(format string) error {
	switch format {
	case "", "default", "json":
		return nil
	}
	return fmt.Errorf("invalid log format %q: must be default or json", format)
}

// optionalInt returns a pointer to v when the flag was set on the command
// line, nil otherwise.
func optionalInt(cmd *cobra.Command, name string, v int) *int {
	if !cmd.Flags().Changed(name) {
		return nil
	}
	return &v
}
