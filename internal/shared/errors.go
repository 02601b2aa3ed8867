package shared

import "fmt"

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrMissingConfig     = fmt.Errorf("configuration not found")
	ErrInvalidConfig     = fmt.Errorf("invalid configuration")
	ErrMissingExecutable = fmt.Errorf("executable not found")

	// Pipeline stage errors
	ErrResolve   = fmt.Errorf("resolve failed")
	ErrAcquire   = fmt.Errorf("acquire failed")
	ErrTranscode = fmt.Errorf("transcode failed")
	ErrNoFormat  = fmt.Errorf("no matching format")
	ErrCancelled = fmt.Errorf("task cancelled")
	ErrPanic     = fmt.Errorf("pipeline panicked")

	// Source errors
	ErrResourceNotFound   = fmt.Errorf("resource not found")
	ErrResourceRestricted = fmt.Errorf("resource restricted")
	ErrUnexpectedStatus   = fmt.Errorf("unexpected status")
	ErrTimeout            = fmt.Errorf("operation timed out")

	// Persistence errors
	ErrDownloadNotFound = fmt.Errorf("download not found")
	ErrTaskNotFound     = fmt.Errorf("task not found")
	ErrMigration        = fmt.Errorf("migration failed")
	ErrNoMigrations     = fmt.Errorf("no migrations applied")

	// Process errors
	ErrAlreadyRunning = fmt.Errorf("another instance is already running")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
	ErrInvalidFlag     = fmt.Errorf("invalid flag value")
)
