package certsource

// Version information for the certsource module.
const (
	Version              = "1.0.0"
	MinCompatibleVersion = "1.0.0"
)
