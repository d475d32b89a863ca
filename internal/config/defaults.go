package config

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = "/usr/local/var/notesearch/data/db/records.db"
	}
	if cfg.Storage.IndexRoot == "" {
		cfg.Storage.IndexRoot = "/usr/local/var/notesearch/data/indices"
	}
	if cfg.Search.IndexName == "" {
		cfg.Search.IndexName = "main"
	}
	if cfg.Search.DefaultLimit == 0 {
		cfg.Search.DefaultLimit = 10
	}
	if cfg.Search.MaxHits == 0 {
		cfg.Search.MaxHits = 100
	}
	if cfg.Search.ChunkSize == 0 {
		cfg.Search.ChunkSize = 512
	}
	if cfg.Search.ChunkOverlap == 0 {
		cfg.Search.ChunkOverlap = cfg.Search.ChunkSize / 10
	}
	if cfg.Search.QueryCacheSize == 0 {
		cfg.Search.QueryCacheSize = 128
	}
	// An empty language selects the language-neutral analyzer, so it has no default.
	if cfg.Import.Extensions == nil {
		cfg.Import.Extensions = []string{".txt", ".md", ".rst", ".pdf", ".docx", ".odt", ".xlsx", ".pptx", ".odp", ".ods"}
	}
	if cfg.Watch.DebounceMS == 0 {
		cfg.Watch.DebounceMS = 500
	}
}
