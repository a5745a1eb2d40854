package provisioning

import (
	"github.com/imamik/testnet-deploy/internal/deployment"
)

// ResolveCounts merges the caller's overrides with the counts recorded in
// the current snapshot. It has no side effects and must run in full before
// anything touches infrastructure.
//
// An unset override keeps the current value. An override below the current
// value (or negative) fails with an *InvalidDesiredCountError for that role
// and dimension. For bootstrap deployments any override of a role that does
// not exist there fails first with ErrInvalidUpscaleOptionsForBootstrap. The
// uploaders per VM count is the exception and is accepted.
//
// NAT gateway VM counts follow the private role they serve.
func ResolveCounts(desired deployment.DesiredCounts, current *deployment.Snapshot) (deployment.ResolvedCounts, error) {
	if current.Environment.Kind == deployment.KindBootstrap {
		for _, spec := range deployment.Roles {
			if spec.Desired == nil || spec.InBootstrap {
				continue
			}
			vms, instances := spec.Desired(&desired)
			if spec.Role == deployment.RoleUploader {
				instances = nil
			}
			if vms != nil || instances != nil {
				return nil, ErrInvalidUpscaleOptionsForBootstrap
			}
		}
	}

	resolved := current.CurrentCounts()
	for _, spec := range deployment.Roles {
		if spec.Desired == nil || spec.Machines == nil {
			continue
		}
		counts := resolved[spec.Role]
		vms, instances := spec.Desired(&desired)

		var err error
		if counts.VMs, err = resolveOne(spec.Role, deployment.DimensionVMs, vms, counts.VMs); err != nil {
			return nil, err
		}
		if counts.InstancesPerVM, err = resolveOne(spec.Role, deployment.DimensionInstances, instances, counts.InstancesPerVM); err != nil {
			return nil, err
		}
		resolved[spec.Role] = counts
	}

	for _, spec := range deployment.Roles {
		if spec.Gateway == "" {
			continue
		}
		gw := resolved[spec.Gateway]
		if private := resolved[spec.Role].VMs; private > gw.VMs {
			gw.VMs = private
		}
		resolved[spec.Gateway] = gw
	}
	return resolved, nil
}

func resolveOne(role deployment.RoleCategory, dim deployment.Dimension, desired *int, current int) (int, error) {
	if desired == nil {
		return current, nil
	}
	if *desired < 0 || *desired < current {
		return 0, &InvalidDesiredCountError{Role: role, Dimension: dim, Desired: *desired, Current: current}
	}
	return *desired, nil
}
