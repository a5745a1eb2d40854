package provisioning

import (
	"errors"
	"fmt"

	"github.com/imamik/testnet-deploy/internal/deployment"
)

// Validation errors. Each role and dimension gets its own sentinel so callers
// can report exactly which override was rejected.
var (
	ErrInvalidPeerCacheVMCount        = errors.New("invalid desired peer cache VM count")
	ErrInvalidPeerCacheNodeCount      = errors.New("invalid desired peer cache node count")
	ErrInvalidGenericVMCount          = errors.New("invalid desired generic node VM count")
	ErrInvalidGenericNodeCount        = errors.New("invalid desired generic node count")
	ErrInvalidFullConePrivateVMCount  = errors.New("invalid desired full cone private node VM count")
	ErrInvalidFullConePrivateCount    = errors.New("invalid desired full cone private node count")
	ErrInvalidSymmetricPrivateVMCount = errors.New("invalid desired symmetric private node VM count")
	ErrInvalidSymmetricPrivateCount   = errors.New("invalid desired symmetric private node count")
	ErrInvalidUploaderVMCount         = errors.New("invalid desired uploader VM count")
	ErrInvalidUploadersCount          = errors.New("invalid desired uploaders per VM count")
	ErrInvalidAuditorVMCount          = errors.New("invalid desired auditor VM count")

	// ErrInvalidUpscaleOptionsForBootstrap rejects overrides for roles that
	// do not exist in a deployment joining an existing network.
	ErrInvalidUpscaleOptionsForBootstrap = errors.New("the peer cache, uploader and auditor counts cannot be changed for a bootstrap deployment")

	// ErrStageOrder is returned when a stage is scheduled before the stage
	// of the role it depends on.
	ErrStageOrder = errors.New("stage scheduled before its dependency")

	// ErrReachabilityTimeout wraps the deadline expiry of a reachability wait.
	ErrReachabilityTimeout = errors.New("timed out waiting for machines to accept SSH connections")
)

type roleDimension struct {
	role deployment.RoleCategory
	dim  deployment.Dimension
}

var countErrors = map[roleDimension]error{
	{deployment.RolePeerCache, deployment.DimensionVMs}:              ErrInvalidPeerCacheVMCount,
	{deployment.RolePeerCache, deployment.DimensionInstances}:        ErrInvalidPeerCacheNodeCount,
	{deployment.RoleGeneric, deployment.DimensionVMs}:                ErrInvalidGenericVMCount,
	{deployment.RoleGeneric, deployment.DimensionInstances}:          ErrInvalidGenericNodeCount,
	{deployment.RoleFullConePrivate, deployment.DimensionVMs}:        ErrInvalidFullConePrivateVMCount,
	{deployment.RoleFullConePrivate, deployment.DimensionInstances}:  ErrInvalidFullConePrivateCount,
	{deployment.RoleSymmetricPrivate, deployment.DimensionVMs}:       ErrInvalidSymmetricPrivateVMCount,
	{deployment.RoleSymmetricPrivate, deployment.DimensionInstances}: ErrInvalidSymmetricPrivateCount,
	{deployment.RoleUploader, deployment.DimensionVMs}:               ErrInvalidUploaderVMCount,
	{deployment.RoleUploader, deployment.DimensionInstances}:         ErrInvalidUploadersCount,
	{deployment.RoleAuditor, deployment.DimensionVMs}:                ErrInvalidAuditorVMCount,
}

// InvalidDesiredCountError reports an override below the current count.
type InvalidDesiredCountError struct {
	Role      deployment.RoleCategory
	Dimension deployment.Dimension
	Desired   int
	Current   int
}

func (e *InvalidDesiredCountError) Error() string {
	return fmt.Sprintf("desired %s %s of %d is below the current %d", e.Role, e.Dimension, e.Desired, e.Current)
}

// Unwrap returns the role and dimension specific sentinel.
func (e *InvalidDesiredCountError) Unwrap() error {
	return countErrors[roleDimension{e.Role, e.Dimension}]
}

// UnsupportedRoleError is returned when a role has no snapshot entry to
// diff against.
type UnsupportedRoleError struct {
	Role deployment.RoleCategory
}

func (e *UnsupportedRoleError) Error() string {
	return fmt.Sprintf("role %s is not supported for this operation", e.Role)
}

// InfraApplyError wraps a failed infra backend apply.
type InfraApplyError struct {
	Name string
	Err  error
}

func (e *InfraApplyError) Error() string {
	return fmt.Sprintf("failed to create or update infra for %s: %v", e.Name, e.Err)
}

func (e *InfraApplyError) Unwrap() error { return e.Err }

// EntryPointError wraps a failure to resolve the network entry point.
type EntryPointError struct {
	Kind deployment.DeploymentKind
	Err  error
}

func (e *EntryPointError) Error() string {
	return fmt.Sprintf("failed to resolve entry point for %s deployment: %v", e.Kind, e.Err)
}

func (e *EntryPointError) Unwrap() error { return e.Err }

// ReachabilityError reports the machine a reachability wait gave up on.
type ReachabilityError struct {
	Role    deployment.RoleCategory
	Machine deployment.MachineRef
	Err     error
}

func (e *ReachabilityError) Error() string {
	return fmt.Sprintf("%s machine %s did not become reachable: %v", e.Role, e.Machine, e.Err)
}

func (e *ReachabilityError) Unwrap() error { return e.Err }

// StageError is a fatal error raised while preparing a stage.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %q: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }
