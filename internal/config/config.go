// Package config loads the bridge's server- and client-side
// configuration, using viper's usual env prefix / key replacer /
// layered defaults idiom, trimmed to the two flat structs the bridge
// actually needs since it has no multi-project registry to merge.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// ServerConfig configures clawker-bridge serve: the process that supervises
// the agent subprocess and multiplexes its session over a WebSocket.
type ServerConfig struct {
	// ListenAddr is the host:port the bridge's WebSocket server binds.
	ListenAddr string `mapstructure:"listen_addr"`

	// ModelID is a model identifier. It is loaded from config but the
	// server does not pass it to the subprocess or read it anywhere else.
	ModelID string `mapstructure:"model_id"`

	// ApprovalMode names a permission-request policy (e.g. "default",
	// "auto-accept", "plan"). It is loaded from config but the server
	// does not apply it; permission requests are forwarded to clients.
	ApprovalMode string `mapstructure:"approval_mode"`

	// SubprocessPath, if set, overrides the ordered candidate
	// executable search performed by the supervisor.
	SubprocessPath string `mapstructure:"subprocess_path"`

	// PackageRunner names the package-runner fallback (e.g. "npx") used
	// when no candidate executable is found on PATH or in
	// node_modules/.bin.
	PackageRunner string `mapstructure:"package_runner"`

	// PackageSpec is the package argument handed to PackageRunner, e.g.
	// "@google/gemini-cli".
	PackageSpec string `mapstructure:"package_spec"`

	// BinName is the executable name searched for on PATH and in
	// node_modules/.bin when SubprocessPath isn't set.
	BinName string `mapstructure:"bin_name"`

	// PTY attaches the subprocess to a pseudo-terminal instead of plain
	// pipes, for agents that behave differently without one.
	PTY bool `mapstructure:"pty"`

	// ProjectRoot is the canonical working directory handed to the
	// subprocess and used to contain file-tool paths.
	ProjectRoot string `mapstructure:"project_root"`

	// RingBufferSize bounds the bridge's replay ring buffer (events).
	RingBufferSize int `mapstructure:"ring_buffer_size"`

	// LogPath is the single rolling text log (internal/rotatelog).
	LogPath     string `mapstructure:"log_path"`
	LogMaxBytes int64  `mapstructure:"log_max_bytes"`

	// JSONLogPath, if set, enables the lumberjack-backed structured
	// JSON sink in internal/logger.
	JSONLogPath string `mapstructure:"json_log_path"`

	Otel OtelConfig `mapstructure:"otel"`

	Checkpoint CheckpointConfig `mapstructure:"checkpoint"`

	// OutgoingTagMode and OutgoingTagNames configure the tagparser
	// applied to the subprocess's stdout before it reaches clients.
	OutgoingTagMode  string   `mapstructure:"outgoing_tag_mode"`
	OutgoingTagNames []string `mapstructure:"outgoing_tag_names"`

	// RestartDelay is how long the supervisor waits before respawning
	// a crashed subprocess.
	RestartDelay time.Duration `mapstructure:"restart_delay"`
}

// OtelConfig mirrors internal/logger.OtelConfig in config-file form.
type OtelConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Endpoint string `mapstructure:"endpoint"`
	Insecure bool   `mapstructure:"insecure"`
}

// CheckpointConfig configures the downstream checkpoint HTTP hook.
type CheckpointConfig struct {
	URL          string `mapstructure:"url"`
	SharedSecret string `mapstructure:"shared_secret"`
}

// ClientConfig configures a bridge client (the reference TUI or any
// other consumer of the C5 reconstructor).
type ClientConfig struct {
	// URL is the bridge server's WebSocket endpoint.
	URL string `mapstructure:"url"`

	// InitialCwd seeds the first session/new request.
	InitialCwd string `mapstructure:"initial_cwd"`

	// ModelHint, if set, is forwarded as the preferred model id.
	ModelHint string `mapstructure:"model_hint"`

	// DiffContextLines controls how many lines of unchanged context
	// surround each pmezard/go-difflib hunk in tool-call diffs.
	DiffContextLines int `mapstructure:"diff_context_lines"`

	// InitialSessionID, if set, resumes an existing session instead of
	// creating a new one.
	InitialSessionID string `mapstructure:"initial_session_id"`

	// Replay params: ReplayLimit counts distinct turns, ReplaySince and
	// ReplayBefore are millisecond timestamps bounding the replay window
	// (both exclusive).
	ReplayLimit  int   `mapstructure:"replay_limit"`
	ReplaySince  int64 `mapstructure:"replay_since"`
	ReplayBefore int64 `mapstructure:"replay_before"`
}

func newViper(prefix string) *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(prefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	return v
}

func decode(v *viper.Viper, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
		),
	})
	if err != nil {
		return fmt.Errorf("config: build decoder: %w", err)
	}
	if err := dec.Decode(v.AllSettings()); err != nil {
		return fmt.Errorf("config: decode: %w", err)
	}
	return nil
}

// LoadServerConfig reads a YAML config file (if path is non-empty) and
// CLAWKER_BRIDGE_-prefixed environment overrides into a ServerConfig
// seeded with DefaultServerConfig.
func LoadServerConfig(path string) (*ServerConfig, error) {
	v := newViper("CLAWKER_BRIDGE")
	setServerDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	cfg := DefaultServerConfig()
	if err := decode(v, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadClientConfig reads a YAML config file (if path is non-empty) and
// CLAWKER_BRIDGE_CLIENT_-prefixed environment overrides into a
// ClientConfig seeded with DefaultClientConfig.
func LoadClientConfig(path string) (*ClientConfig, error) {
	v := newViper("CLAWKER_BRIDGE_CLIENT")
	setClientDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	cfg := DefaultClientConfig()
	if err := decode(v, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
