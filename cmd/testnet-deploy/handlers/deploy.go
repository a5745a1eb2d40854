package handlers

import (
	"context"
	"fmt"

	"github.com/imamik/testnet-deploy/internal/provisioning"
)

// UpscaleArgs are the inputs of the upscale command.
type UpscaleArgs struct {
	Options
	Name    string
	Upscale provisioning.UpscaleOptions
	// Strict turns a partial failure into a non-zero exit.
	Strict bool
}

// Upscale grows an existing deployment.
func Upscale(ctx context.Context, args UpscaleArgs) error {
	if err := checkDefaultPrereqs().Error(); err != nil {
		return err
	}
	e, err := newEnv(args.Options)
	if err != nil {
		return err
	}
	defer e.Close()

	engine, err := e.engine(ctx, args.Name)
	if err != nil {
		return err
	}
	result, err := engine.Upscale(ctx, args.Name, args.Upscale)
	if err != nil {
		return err
	}

	if args.Upscale.Plan {
		e.printer.Println(result.Plan)
		return nil
	}
	if args.Upscale.InfraOnly {
		e.printer.Println(fmt.Sprintf("Infrastructure for %s is up to date: %s", args.Name, result.Spec))
		return nil
	}
	return e.reportStages(result.Report, args.Strict)
}

// BootstrapArgs are the inputs of the bootstrap command.
type BootstrapArgs struct {
	Options
	Bootstrap provisioning.BootstrapOptions
	Strict    bool
}

// Bootstrap creates a deployment that joins a running network.
func Bootstrap(ctx context.Context, args BootstrapArgs) error {
	if err := checkDefaultPrereqs().Error(); err != nil {
		return err
	}
	if err := args.Bootstrap.Binary.Validate(); err != nil {
		return err
	}
	e, err := newEnv(args.Options)
	if err != nil {
		return err
	}
	defer e.Close()

	engine, err := e.engine(ctx, args.Bootstrap.Name)
	if err != nil {
		return err
	}
	result, err := engine.Bootstrap(ctx, args.Bootstrap)
	if err != nil {
		return err
	}
	return e.reportStages(result.Report, args.Strict)
}
