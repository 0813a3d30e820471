package internal

import (
	"fmt"
	"log/slog"
	"path"
	"regexp"
	"slices"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/orgstate/internal/aggregate"
	"github.com/starford/orgstate/internal/generator"
	"github.com/starford/orgstate/internal/hook"
	"github.com/starford/orgstate/internal/scanner"
	"github.com/starford/orgstate/internal/watch"
)

var (
	extensionRe = regexp.MustCompile(`^\.[A-Za-z0-9]+$`)
	markdownRe  = regexp.MustCompile(`\.md$`)
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config represents the application configuration.
type Config struct {
	App         ApplicationConfig `yaml:"app"`
	Org         OrgConfig         `yaml:"org"`
	Inbox       InboxConfig       `yaml:"inbox"`
	Gate        GateConfig        `yaml:"gate"`
	Orientation OrientationConfig `yaml:"orientation"`
	Generate    GenerateConfig    `yaml:"generate"`
	Hook        HookConfig        `yaml:"hook"`
	Watch       WatchConfig       `yaml:"watch"`
	Auth        AuthConfig        `yaml:"auth"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	validators := []interface{ Validate() error }{
		&c.App, &c.Org, &c.Gate, &c.Orientation, &c.Generate, &c.Hook, &c.Watch, &c.Auth,
	}
	for _, v := range validators {
		if err := v.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// OrgConfig locates the org tree and controls what the scanner reads.
type OrgConfig struct {
	Root         string   `yaml:"root"`
	Extension    string   `yaml:"extension"`
	ExcludeDirs  []string `yaml:"exclude_dirs"`
	ExcludeFiles []string `yaml:"exclude_files"`
	IncludeFiles []string `yaml:"include_files"`
	MaxFileSize  int64    `yaml:"max_file_size"`
}

// Validate validates the org configuration.
func (c *OrgConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Root, validation.Required),
		validation.Field(&c.Extension, validation.Required, validation.Match(extensionRe)),
		validation.Field(&c.MaxFileSize, validation.Min(int64(0))),
	)
}

// ScanOptions converts the org section into scanner options. The generated
// artifacts are always excluded so a pass never reads its own output.
func (c *Config) ScanOptions() scanner.Options {
	opts := scanner.Options{
		Root:         c.Org.Root,
		Extension:    c.Org.Extension,
		ExcludeDirs:  slices.Clone(c.Org.ExcludeDirs),
		ExcludeFiles: slices.Clone(c.Org.ExcludeFiles),
		IncludeFiles: slices.Clone(c.Org.IncludeFiles),
		MaxFileSize:  c.Org.MaxFileSize,
	}
	if dir := path.Clean(c.Generate.TagDir); !slices.Contains(opts.ExcludeDirs, dir) {
		opts.ExcludeDirs = append(opts.ExcludeDirs, dir)
	}
	if f := path.Clean(c.Generate.DashboardPath); !slices.Contains(opts.ExcludeFiles, f) {
		opts.ExcludeFiles = append(opts.ExcludeFiles, f)
	}
	return opts
}

// InboxConfig maps inbox subfolders to categories.
type InboxConfig struct {
	Folders map[string]string `yaml:"folders"`
}

// Hook output protocols.
const (
	ProtocolJSON     = string(hook.ProtocolJSON)
	ProtocolExitCode = string(hook.ProtocolExitCode)
)

// GateConfig holds the maintenance gate thresholds.
type GateConfig struct {
	TrivialLines int    `yaml:"trivial_lines"`
	Sentinel     string `yaml:"sentinel"`
	RecentWindow int    `yaml:"recent_window"`
	Protocol     string `yaml:"protocol"`
}

// Validate validates the gate configuration.
func (c *GateConfig) Validate() error {
	if c.Protocol == "" {
		c.Protocol = ProtocolJSON
	}
	return validation.ValidateStruct(c,
		validation.Field(&c.TrivialLines, validation.Min(0)),
		validation.Field(&c.Sentinel, validation.Required),
		validation.Field(&c.RecentWindow, validation.Min(0)),
		validation.Field(&c.Protocol, validation.In(ProtocolJSON, ProtocolExitCode)),
	)
}

// Options converts the section into gate options for root.
func (c *GateConfig) Options(root string) hook.GateOptions {
	return hook.GateOptions{
		Root:         root,
		TrivialLines: c.TrivialLines,
		Sentinel:     c.Sentinel,
		RecentWindow: c.RecentWindow,
	}
}

// OrientationConfig limits the orientation summary.
type OrientationConfig struct {
	ReminderLimit int `yaml:"reminder_limit"`
	VoiceLines    int `yaml:"voice_lines"`
}

// Validate validates the orientation configuration.
func (c *OrientationConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.ReminderLimit, validation.Required, validation.Min(1)),
		validation.Field(&c.VoiceLines, validation.Min(0)),
	)
}

// GenerateConfig locates the derived artifacts.
type GenerateConfig struct {
	TagDir          string `yaml:"tag_dir"`
	DashboardPath   string `yaml:"dashboard_path"`
	RecentKnowledge int    `yaml:"recent_knowledge"`
	RecentCompleted int    `yaml:"recent_completed"`
}

// Validate validates the generate configuration.
func (c *GenerateConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.TagDir, validation.Required),
		validation.Field(&c.DashboardPath, validation.Required, validation.Match(markdownRe)),
		validation.Field(&c.RecentKnowledge, validation.Min(0)),
		validation.Field(&c.RecentCompleted, validation.Min(0)),
	)
}

// Options converts the section into generator options.
func (c *GenerateConfig) Options() generator.Options {
	return generator.Options{
		TagDir:          c.TagDir,
		DashboardPath:   c.DashboardPath,
		RecentKnowledge: c.RecentKnowledge,
		RecentCompleted: c.RecentCompleted,
	}
}

// HookConfig bounds hook request decoding.
type HookConfig struct {
	StdinTimeout time.Duration `yaml:"stdin_timeout"`
}

// Validate validates the hook configuration.
func (c *HookConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.StdinTimeout, validation.Required, validation.Min(time.Millisecond)),
	)
}

// WatchConfig tunes watch mode and the event stream.
type WatchConfig struct {
	Debounce      time.Duration `yaml:"debounce"`
	EventThrottle time.Duration `yaml:"event_throttle"`
}

// Validate validates the watch configuration.
func (c *WatchConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Debounce, validation.Min(time.Duration(0))),
		validation.Field(&c.EventThrottle, validation.Min(time.Duration(0))),
	)
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local use.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	scan := scanner.DefaultOptions("~/org")
	gate := hook.DefaultGateOptions("")
	orient := hook.DefaultOrientOptions("")
	gen := generator.DefaultOptions()

	folders := make(map[string]string, len(aggregate.DefaultInboxFolders))
	for k, v := range aggregate.DefaultInboxFolders {
		folders[k] = v
	}

	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Org: OrgConfig{
			Root:         scan.Root,
			Extension:    scan.Extension,
			ExcludeDirs:  scan.ExcludeDirs,
			ExcludeFiles: scan.ExcludeFiles,
			IncludeFiles: scan.IncludeFiles,
			MaxFileSize:  scan.MaxFileSize,
		},
		Inbox: InboxConfig{
			Folders: folders,
		},
		Gate: GateConfig{
			TrivialLines: gate.TrivialLines,
			Sentinel:     gate.Sentinel,
			RecentWindow: gate.RecentWindow,
			Protocol:     ProtocolJSON,
		},
		Orientation: OrientationConfig{
			ReminderLimit: orient.ReminderLimit,
			VoiceLines:    orient.VoiceLines,
		},
		Generate: GenerateConfig{
			TagDir:          gen.TagDir,
			DashboardPath:   gen.DashboardPath,
			RecentKnowledge: gen.RecentKnowledge,
			RecentCompleted: gen.RecentCompleted,
		},
		Hook: HookConfig{
			StdinTimeout: 2 * time.Second,
		},
		Watch: WatchConfig{
			Debounce:      watch.DefaultDebounce,
			EventThrottle: 2 * time.Second,
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
	}
}
