package config

// Config is the full daemon configuration.
//
// All durations are Go duration strings (e.g. "500ms", "10s", "1m").
// Unknown keys are rejected (strict decode) so typos fail fast instead of
// silently running with defaults.
type Config struct {
	Logging LoggingConfig `json:"logging"`

	// Storage points at the SQLite database holding post records.
	Storage StorageConfig `json:"storage"`

	// Fonts configures the per-script font sources and merged pack cache.
	Fonts FontsConfig `json:"fonts"`

	// Render optionally overrides compositor colors/geometry.
	// Every recognized option is an explicit field; there is no
	// reflection-driven passthrough.
	Render *RenderConfig `json:"render,omitempty"`

	Artifact  ArtifactConfig  `json:"artifact"`
	Instagram InstagramConfig `json:"instagram"`
	Publisher PublisherConfig `json:"publisher"`
	Sweep     SweepConfig     `json:"sweep"`

	// Notify enables Telegram operator alerts for terminal publish failures.
	Notify *NotifyConfig `json:"notify,omitempty"`
}

type LoggingConfig struct {
	Level   string            `json:"level,omitempty"`
	Console bool              `json:"console"`
	File    LoggingFileConfig `json:"file,omitempty"`
}

type LoggingFileConfig struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path,omitempty"`
}

type StorageConfig struct {
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string
}

type FontsConfig struct {
	// Dir holds the per-script source fonts and receives the merged pack file.
	Dir string `json:"dir"`
}

// RenderConfig mirrors render.Options; pointer fields distinguish
// "omitted" from an explicit zero.
type RenderConfig struct {
	BorderWidth  *int   `json:"border_width,omitempty"`
	BorderRadius *int   `json:"border_radius,omitempty"`
	BorderColor  string `json:"border_color,omitempty"`

	BackgroundColor string `json:"background_color,omitempty"`
	HeaderColor     string `json:"header_color,omitempty"`
	BubbleColor     string `json:"bubble_color,omitempty"`
	MessageColor    string `json:"message_color,omitempty"`
	UsernameColor   string `json:"username_color,omitempty"`
	AvatarColor     string `json:"avatar_color,omitempty"`
}

type ArtifactConfig struct {
	// Backend selects "s3" or "local".
	Backend string `json:"backend"`

	S3    *S3Config    `json:"s3,omitempty"`
	Local *LocalConfig `json:"local,omitempty"`
}

type S3Config struct {
	Bucket    string `json:"bucket"`
	Region    string `json:"region"`
	KeyPrefix string `json:"key_prefix,omitempty"` // default "posts/"

	// PublicBaseURL overrides the default virtual-hosted URL, e.g. a CDN domain.
	PublicBaseURL string `json:"public_base_url,omitempty"`
}

type LocalConfig struct {
	Dir string `json:"dir"`

	// BaseURL is the public prefix under which Dir is served. The publish
	// endpoint must be able to fetch artifacts through it.
	BaseURL string `json:"base_url"`
}

type InstagramConfig struct {
	AccountID   string `json:"account_id"`
	AccessToken string `json:"access_token"`

	// GraphVersion defaults to "v24.0".
	GraphVersion string `json:"graph_version,omitempty"`

	// BaseURL overrides the Graph API host (tests, proxies).
	BaseURL string `json:"base_url,omitempty"`

	RatePerSec   int    `json:"rate_per_sec,omitempty"`
	HTTPTimeout  string `json:"http_timeout,omitempty"`  // per-request; default "30s"
	PollInterval string `json:"poll_interval,omitempty"` // default "3s"
	PollTimeout  string `json:"poll_timeout,omitempty"`  // default "30s"
}

// PublisherConfig controls the publish job pool and state machine.
type PublisherConfig struct {
	Workers   int `json:"workers,omitempty"`
	QueueSize int `json:"queue_size,omitempty"`

	RetryMax      int    `json:"retry_max,omitempty"`
	RetryBase     string `json:"retry_base,omitempty"`
	RetryMaxDelay string `json:"retry_max_delay,omitempty"`

	// ScheduleTolerance is how far ahead of scheduled_at a delivery may fire
	// and still be processed instead of deferred. Default "2m".
	ScheduleTolerance string `json:"schedule_tolerance,omitempty"`

	// CaptionSuffix is appended to every caption after a blank line.
	CaptionSuffix string `json:"caption_suffix,omitempty"`

	// AccountTitle is rendered in the image header as "@title".
	AccountTitle string `json:"account_title,omitempty"`
}

// SweepConfig controls the periodic re-enqueue of due and stuck posts.
type SweepConfig struct {
	Enabled bool `json:"enabled"`

	// Spec is a cron expression; default "*/1 * * * *".
	Spec string `json:"spec,omitempty"`

	// StaleProcessing re-enqueues posts stuck in processing longer than this.
	// Default "15m".
	StaleProcessing string `json:"stale_processing,omitempty"`

	BatchSize int `json:"batch_size,omitempty"`
}

type NotifyConfig struct {
	Enabled  bool   `json:"enabled"`
	Token    string `json:"token"`
	ChatID   int64  `json:"chat_id"`
	ThreadID int    `json:"thread_id,omitempty"`
}
