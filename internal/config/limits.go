package config

const (
	// MaxProjectNameLength is the maximum length for project names.
	// Limited to 255 to fit in PostgreSQL VARCHAR(255).
	MaxProjectNameLength = 255

	// DerivedProjectNameLength is how much of the initial prompt becomes the
	// project name when the client does not supply one.
	DerivedProjectNameLength = 50

	// MaxPromptLength bounds a single generation prompt.
	MaxPromptLength = 4000

	// MaxCodeSize is the largest artifact accepted from a manual save (2 MiB).
	MaxCodeSize = 2 << 20

	// MaxPublishedListing caps the anonymous gallery of published projects.
	MaxPublishedListing = 100

	// DefaultSignupCredits is granted when a ledger account is first opened.
	DefaultSignupCredits = 5
)
