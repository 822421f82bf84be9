package defaults

// Exit codes for the CLI.
const (
	ExitSuccess     = 0   // Report written
	ExitFatal       = 1   // Unreadable input, unrecognized format, bad configuration
	ExitUserError   = 2   // Invalid arguments
	ExitInterrupted = 130 // SIGINT/SIGTERM before the report was complete
)
