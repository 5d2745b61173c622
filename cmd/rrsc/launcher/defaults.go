package launcher

// Defaults bundles the baseline configuration values the launcher uses
// before presets and flags override them.
type Defaults struct {
	Node    NodeDefaults
	Network NetworkDefaults
	Storage StorageDefaults
	Metrics MetricsDefaults
	Logging LoggingDefaults
}

// NodeDefaults captures top-level node settings.
type NodeDefaults struct {
	DataDir string //	Filesystem root where the tools keep the epoch database. Changing it lets you keep test data isolated.
	Preset  string //	Resource preset (lite, default, full) applied before CLI overrides.
}

// NetworkDefaults selects the network rules.
type NetworkDefaults struct {
	Name string //	Network rules preset (main, test, fake). The rules carry the selection parameters legacy epoch records are migrated with.
}

// StorageDefaults configures the epoch database.
type StorageDefaults struct {
	EpochsDir string //	Directory of the epoch LevelDB under the datadir.
	Namespace string //	Metrics namespace of the database.
}

// MetricsDefaults configures the Prometheus endpoint.
type MetricsDefaults struct {
	HTTPAddr string //	IP/interface the metrics server binds to (e.g., 0.0.0.0 for all interfaces or 127.0.0.1 for local-only).
	HTTPPort int    //	TCP port Prometheus scrapes; default 6060.
}

// LoggingDefaults controls log verbosity/format.
type LoggingDefaults struct {
	Verbosity int    //	Log level numeric (0=panic, 1=fatal, 2=error, 3=warn, 4=info, 5=debug, 6=trace).
	Format    string //	Log output format (text vs json).
	Color     bool   //	Whether to use ANSI color codes in logs (helpful on terminals, best disabled when piping to files).
}

// DefaultConfig returns a fully populated Defaults instance.
func DefaultConfig() Defaults {
	return Defaults{
		Node: NodeDefaults{
			DataDir: "~/.rrsc",
			Preset:  "default",
		},
		Network: NetworkDefaults{
			Name: "main",
		},
		Storage: StorageDefaults{
			EpochsDir: "epochs",
			Namespace: "rrsc/db/epochs/",
		},
		Metrics: MetricsDefaults{
			HTTPAddr: "127.0.0.1",
			HTTPPort: 6060,
		},
		Logging: LoggingDefaults{
			Verbosity: 4,
			Format:    "text",
			Color:     false,
		},
	}
}
