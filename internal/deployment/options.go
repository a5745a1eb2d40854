package deployment

// EnvVar is a single environment variable passed to node processes.
type EnvVar struct {
	Key   string
	Value string
}

// LogstashDetails points nodes at a log shipping stack.
type LogstashDetails struct {
	StackName string
	Hosts     []string
}

// ProvisionOptions is the full parameter set for configuration runs. It is
// built once per run and handed to stages read-only.
type ProvisionOptions struct {
	Name       string
	Binary     BinaryOption
	Counts     ResolvedCounts
	SSHUser    string
	NetworkID  *uint8
	EvmNetwork EvmNetwork

	EvmDataPaymentsAddress string
	EvmPaymentTokenAddress string
	EvmRPCURL              string
	RewardsAddress         string

	EnvVariables        []EnvVar
	MaxArchivedLogFiles uint16
	MaxLogFiles         uint16
	LogFormat           string
	Logstash            *LogstashDetails
	PublicRPC           bool

	// UploadersCount is the number of uploader processes per uploader VM.
	UploadersCount int
	// FundingWalletSecretKey funds uploader wallets from the faucet.
	FundingWalletSecretKey string

	// OutputInventoryDir receives the inventory files generated for the run.
	OutputInventoryDir string
}
