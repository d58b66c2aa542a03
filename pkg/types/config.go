package types

import "time"

// HTTPConfig holds shared HTTP settings used by the remote clients.
type HTTPConfig struct {
	// Timeout is the per-request HTTP timeout. Zero means no client-side
	// timeout; overall request deadlines belong to the caller.
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "papers/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent" mapstructure:"user_agent"`

	// MaxRetries bounds retries on HTTP 429 (default 5).
	MaxRetries int `json:"max_retries" yaml:"max_retries" mapstructure:"max_retries"`

	// AllowedHosts restricts direct PDF downloads to these hosts and their
	// subdomains (e.g. "arxiv.org"). Empty allows any host.
	AllowedHosts []string `json:"allowed_hosts,omitempty" yaml:"allowed_hosts,omitempty" mapstructure:"allowed_hosts"`
}

// CacheConfig locates the local extraction cache.
type CacheConfig struct {
	// Dir is the cache root holding one directory per item key. Empty means
	// the platform cache directory (os.UserCacheDir()/papers/extractions).
	Dir string `json:"dir" yaml:"dir" mapstructure:"dir"`
}

// ZoteroConfig holds credentials and paths for the Zotero integration.
type ZoteroConfig struct {
	// UserID is the numeric Zotero user library ID.
	UserID string `json:"user_id" yaml:"user_id" mapstructure:"user_id"`

	// APIKey authenticates against the Zotero web API.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty" mapstructure:"api_key"`

	// BaseURL overrides the web API endpoint (default https://api.zotero.org).
	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty" mapstructure:"base_url"`

	// DataDir is the Zotero desktop data directory (default ~/Zotero).
	DataDir string `json:"data_dir,omitempty" yaml:"data_dir,omitempty" mapstructure:"data_dir"`
}

// Configured reports whether enough credentials are present to call the API.
func (c ZoteroConfig) Configured() bool {
	return c.UserID != "" && c.APIKey != ""
}

// OpenAlexConfig holds settings for the metadata provider.
type OpenAlexConfig struct {
	// APIKey enables the content API download source.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty" mapstructure:"api_key"`

	// Mailto is sent as the polite-pool contact address.
	Mailto string `json:"mailto,omitempty" yaml:"mailto,omitempty" mapstructure:"mailto"`
}

// DatalabConfig holds settings for the advanced extraction service.
type DatalabConfig struct {
	// APIKey authenticates against the DataLab Marker API. Advanced mode
	// is unavailable without it.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty" mapstructure:"api_key"`

	// PollInterval is the delay between result polls (default 2s).
	PollInterval time.Duration `json:"poll_interval" yaml:"poll_interval" mapstructure:"poll_interval"`
}

// ExtractionBackend identifies the local PDF-to-text tool.
type ExtractionBackend string

const (
	BackendPDFText    ExtractionBackend = "pdftext"
	BackendMarkitdown ExtractionBackend = "markitdown"
)

// ExtractionConfig selects the local extraction backend.
type ExtractionConfig struct {
	Backend ExtractionBackend `json:"backend" yaml:"backend" mapstructure:"backend"`
}

// FallbackConfig tunes the interactive fallback poll loop.
type FallbackConfig struct {
	// InitialDelay is the wait before the first library poll (default 5s).
	InitialDelay time.Duration `json:"initial_delay" yaml:"initial_delay" mapstructure:"initial_delay"`

	// Interval is the wait between polls (default 2s).
	Interval time.Duration `json:"interval" yaml:"interval" mapstructure:"interval"`

	// MaxRetries is the poll budget (default 55).
	MaxRetries int `json:"max_retries" yaml:"max_retries" mapstructure:"max_retries"`
}

// PipelineConfig groups all settings loaded by the CLI.
type PipelineConfig struct {
	HTTP       HTTPConfig       `json:"http" yaml:"http" mapstructure:"http"`
	Cache      CacheConfig      `json:"cache" yaml:"cache" mapstructure:"cache"`
	Zotero     ZoteroConfig     `json:"zotero" yaml:"zotero" mapstructure:"zotero"`
	OpenAlex   OpenAlexConfig   `json:"openalex" yaml:"openalex" mapstructure:"openalex"`
	Datalab    DatalabConfig    `json:"datalab" yaml:"datalab" mapstructure:"datalab"`
	Extraction ExtractionConfig `json:"extraction" yaml:"extraction" mapstructure:"extraction"`
	Fallback   FallbackConfig   `json:"fallback" yaml:"fallback" mapstructure:"fallback"`
	LogLevel   string           `json:"log_level" yaml:"log_level" mapstructure:"log_level"`
}
