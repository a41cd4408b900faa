package options

// Config is the entire configuration file
type Config struct {
	NodeOptions        NodeOptions
	RelayOptions       RelayOptions
	OutboundOptions    OutboundOptions
	DispatcherOptions  DispatcherOptions
	SyncManagerOptions SyncManagerOptions
	ConsensusOptions   ConsensusOptions
}

// NewConfig creates a new Config
func NewConfig() *Config {
	config := Config{
		NodeOptions:        *NewNodeOptions(),
		RelayOptions:       *NewRelayOptions(),
		OutboundOptions:    *NewOutboundOptions(),
		DispatcherOptions:  *NewDispatcherOptions(),
		SyncManagerOptions: *NewSyncManagerOptions(),
		ConsensusOptions:   *NewConsensusOptions(),
	}
	return &config
}
