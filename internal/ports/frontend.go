package ports

// Frontend is a way of serving rendered email to users
type Frontend interface {
	// Start starts the frontend
	Start() error

	// Stop stops the frontend
	Stop() error
}
