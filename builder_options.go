package gpudict

import "log/slog"

// BuildOption is a functional option for configuring builds.
type BuildOption func(*buildConfig)

// DictionaryOption is a functional option for configuring a Dictionary.
type DictionaryOption func(*dictConfig)

// DuplicatePolicy selects how Build treats keys that occur more than once.
type DuplicatePolicy uint8

const (
	// DuplicatesKeepFirst stores every entry; lookups return the value of
	// the first occurrence in input order.
	DuplicatesKeepFirst DuplicatePolicy = iota

	// DuplicatesReject fails the build with ErrDuplicateKey.
	DuplicatesReject
)

// String returns the policy name.
func (p DuplicatePolicy) String() string {
	switch p {
	case DuplicatesKeepFirst:
		return "keep-first"
	case DuplicatesReject:
		return "reject"
	default:
		return "unknown"
	}
}

type buildConfig struct {
	workers    int
	duplicates DuplicatePolicy
	hostMirror bool // only read by Dictionary.CreateDictionary
}

func defaultBuildConfig() *buildConfig {
	return &buildConfig{
		workers: 0, // Default to single-threaded; use WithWorkers(n) to parallelize
	}
}

type dictConfig struct {
	logger *slog.Logger
}

func defaultDictConfig() *dictConfig {
	return &dictConfig{
		logger: slog.New(slog.DiscardHandler),
	}
}

// WithWorkers sets the number of goroutines used to hash keys and encode
// entries. The built table is identical for every worker count.
func WithWorkers(n int) BuildOption {
	return func(c *buildConfig) {
		c.workers = n
	}
}

// WithDuplicateKeys sets the duplicate key policy. Default is DuplicatesKeepFirst.
func WithDuplicateKeys(p DuplicatePolicy) BuildOption {
	return func(c *buildConfig) {
		c.duplicates = p
	}
}

// WithHostMirror keeps the built index and entry arrays in host memory
// after upload so TryGetValue can answer lookups on the CPU.
// Default is false: the device buffers are the only copy.
// Build ignores this option; a Table is always host resident.
func WithHostMirror(keep bool) BuildOption {
	return func(c *buildConfig) {
		c.hostMirror = keep
	}
}

// WithLogger sets the logger for lifecycle events. Default discards.
func WithLogger(l *slog.Logger) DictionaryOption {
	return func(c *dictConfig) {
		if l != nil {
			c.logger = l
		}
	}
}
