package provisioning

import (
	"context"
	"fmt"
	"time"

	"github.com/imamik/testnet-deploy/internal/deployment"
)

// UpscaleOptions are the caller's inputs to an upscale run.
type UpscaleOptions struct {
	Desired deployment.DesiredCounts

	// Plan computes the infra plan without applying it.
	Plan bool
	// InfraOnly stops after the infra apply.
	InfraOnly bool

	PublicRPC              bool
	MaxArchivedLogFiles    uint16
	MaxLogFiles            uint16
	LogFormat              string
	EnvVariables           []deployment.EnvVar
	FundingWalletSecretKey string
}

// UpscaleResult describes what an upscale run did.
type UpscaleResult struct {
	Counts   deployment.ResolvedCounts
	Spec     InfraSpec
	Plan     string
	Report   *SequenceReport
	Snapshot *deployment.Snapshot
}

// Upscale grows an existing deployment. Counts are validated against the
// stored snapshot before any infra or configuration call is made. Infra
// apply, gate and entry point failures abort the run; stage failures are
// collected in the report. After the stages the snapshot is rebuilt from
// the current topology and replaced.
func (e *Engine) Upscale(ctx context.Context, name string, opts UpscaleOptions) (*UpscaleResult, error) {
	obs := e.observer().WithFields(map[string]string{"deployment": name})

	current, err := e.Store.Load(ctx, name)
	if err != nil {
		return nil, err
	}

	counts, err := ResolveCounts(opts.Desired, current)
	if err != nil {
		return nil, err
	}
	obs.Printf("[Upscale] resolved counts: %s", counts)

	spec := BuildInfraSpec(current, counts, false)
	result := &UpscaleResult{Counts: counts, Spec: spec}

	if opts.Plan {
		plan, err := e.Infra.Plan(ctx, spec)
		if err != nil {
			return nil, fmt.Errorf("failed to plan infra for %s: %w", name, err)
		}
		result.Plan = plan
		return result, nil
	}

	if err := e.applyInfra(ctx, obs, spec); err != nil {
		return nil, err
	}
	if opts.InfraOnly {
		return result, nil
	}

	popts := &deployment.ProvisionOptions{
		Name:                   name,
		Binary:                 current.Binary,
		Counts:                 counts,
		SSHUser:                e.SSHUser,
		NetworkID:              current.Environment.NetworkID,
		EvmNetwork:             current.Environment.EvmNetwork,
		RewardsAddress:         current.Environment.RewardsAddress,
		EnvVariables:           opts.EnvVariables,
		MaxArchivedLogFiles:    opts.MaxArchivedLogFiles,
		MaxLogFiles:            opts.MaxLogFiles,
		LogFormat:              opts.LogFormat,
		PublicRPC:              opts.PublicRPC,
		UploadersCount:         counts.Get(deployment.RoleUploader).InstancesPerVM,
		FundingWalletSecretKey: opts.FundingWalletSecretKey,
		OutputInventoryDir:     e.InventoryDir,
	}

	stages := PlanStages(current.Environment.Kind, counts, e.Provisioner, popts, false)
	report, err := e.runStages(ctx, current, stages)
	result.Report = report
	if err != nil {
		LogPhaseFailed(obs, "upscale", err)
		return result, err
	}

	result.Snapshot, err = e.refreshSnapshot(ctx, current, counts)
	if err != nil {
		return result, err
	}
	return result, nil
}

func (e *Engine) applyInfra(ctx context.Context, obs Observer, spec InfraSpec) error {
	LogPhaseStart(obs, "infra")
	start := time.Now()
	if e.Timeouts != nil && e.Timeouts.ServerCreate > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.Timeouts.ServerCreate)
		defer cancel()
	}
	if err := e.Infra.Apply(ctx, spec); err != nil {
		applyErr := &InfraApplyError{Name: spec.Name, Err: err}
		LogPhaseFailed(obs, "infra", applyErr)
		return applyErr
	}
	LogPhaseComplete(obs, "infra", time.Since(start))
	return nil
}
