package log

// Version and MinCompatibleVersion are checked by pushgate.New against the
// other packages it is built with.
const (
	Version              = "1.1.0"
	MinCompatibleVersion = "1.0.0"
)
