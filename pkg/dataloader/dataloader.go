package dataloader

// Names of the loaders, also used as metric labels.
const (
	VersionsLoaderName   = "versions"
	ProwLoaderName       = "prow"
	MicroShiftLoaderName = "microshift"
)

type DataLoader interface {
	// Name returns a friendly name identifier
	Name() string

	// Load initiates the data loading process.
	Load()

	// Errors returns a slice of errors that occurred during the data loading process.
	Errors() []error
}
