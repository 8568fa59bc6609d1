package ports

// Runner is a long-running component started and stopped with the daemon
type Runner interface {
	// Start starts the component without blocking
	Start() error

	// Stop stops the component and waits for in-flight work
	Stop() error
}
