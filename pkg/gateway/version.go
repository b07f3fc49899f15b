package gateway

// Version information for the gateway module.
const (
	Version              = "1.0.0"
	MinCompatibleVersion = "1.0.0"
)
