package options

const (
	networkIDDefault          = 1
	maxTransactionSizeDefault = 1 << 16
	maxSerialNumbersDefault   = 16
	maxCommitmentsDefault     = 16
	maxMemoSizeDefault        = 64
)

// ConsensusOptions are the consensus parameters transactions are verified against
type ConsensusOptions struct {
	NetworkID          uint32
	MaxTransactionSize int
	MaxSerialNumbers   int
	MaxCommitments     int
	MaxMemoSize        int
}

// NewConsensusOptions returns default initialized ConsensusOptions
func NewConsensusOptions() *ConsensusOptions {
	return &ConsensusOptions{
		NetworkID:          networkIDDefault,
		MaxTransactionSize: maxTransactionSizeDefault,
		MaxSerialNumbers:   maxSerialNumbersDefault,
		MaxCommitments:     maxCommitmentsDefault,
		MaxMemoSize:        maxMemoSizeDefault,
	}
}
