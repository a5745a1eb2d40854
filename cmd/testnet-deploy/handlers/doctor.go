package handlers

import (
	"context"
	"errors"
	"fmt"

	"github.com/imamik/testnet-deploy/internal/config"
	"github.com/imamik/testnet-deploy/internal/ui"
	"github.com/imamik/testnet-deploy/internal/util/prerequisites"
)

// checkAllPrereqs checks every tool any command uses.
var checkAllPrereqs = prerequisites.CheckAll

// Doctor checks the local tools and the configuration without touching any
// deployment.
func Doctor(_ context.Context, opts Options) error {
	p := ui.NewPrinter(stdout)
	var problems []error

	p.Println("Tools:")
	results := checkAllPrereqs()
	for _, r := range results.Results {
		switch {
		case r.Found:
			p.Result(r.Tool.Name, "succeeded", r.Version)
		case r.Tool.Required:
			p.Result(r.Tool.Name, "failed", "not found, see "+r.Tool.InstallURL)
		default:
			p.Result(r.Tool.Name, "skipped", "optional, not found")
		}
	}
	if err := results.Error(); err != nil {
		problems = append(problems, err)
	}

	p.Println("Configuration:")
	cfg, err := loadConfig(opts.Dir, opts.ConfigPath)
	if err != nil {
		p.Result("config", "failed", err.Error())
		return errors.Join(append(problems, err)...)
	}
	findings := cfg.Validate()
	if len(findings) == 0 {
		p.Result("config", "succeeded", "")
	}
	for _, f := range findings {
		status := "failed"
		if f.Severity == config.SeverityWarning {
			status = "skipped"
		}
		p.Result(f.Field, status, f.Message)
	}
	if err := findings.Err(); err != nil {
		problems = append(problems, err)
	}

	if len(problems) > 0 {
		return fmt.Errorf("doctor found problems: %w", errors.Join(problems...))
	}
	p.Println("Everything looks good.")
	return nil
}
