package config

// Default returns a config with all defaults applied, for running without a config file.
func Default() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Mapping.SimilarityThreshold == 0 {
		cfg.Mapping.SimilarityThreshold = 0.6
	}
	if cfg.Mapping.Confidence.High == 0 {
		cfg.Mapping.Confidence.High = 0.8
	}
	if cfg.Mapping.Confidence.Medium == 0 {
		cfg.Mapping.Confidence.Medium = 0.6
	}
	if cfg.Mapping.Confidence.Low == 0 {
		cfg.Mapping.Confidence.Low = 0.4
	}
	if cfg.Mapping.ResolveWorkers == 0 {
		// Sequential by default: keeps remote load predictable and failure
		// accounting simple. Safe to raise; cache writes are synchronized.
		cfg.Mapping.ResolveWorkers = 1
	}
	if cfg.Mapping.SuggestionLimit == 0 {
		cfg.Mapping.SuggestionLimit = 3
	}
	if cfg.Remote.TimeoutSeconds == 0 {
		cfg.Remote.TimeoutSeconds = 10
	}
	if cfg.Remote.MaxRetries == 0 {
		cfg.Remote.MaxRetries = 3
	}
	if cfg.Local.ModelPath == "" {
		cfg.Local.ModelPath = "/usr/local/var/metricmap/models/all-MiniLM-L6-v2.onnx"
	}
	if cfg.Local.Dimensions == 0 {
		cfg.Local.Dimensions = 384
	}
	if cfg.Local.MaxTokens == 0 {
		cfg.Local.MaxTokens = 256
	}
	if cfg.Cache.MaxEntries == 0 {
		cfg.Cache.MaxEntries = 1000
	}
}
