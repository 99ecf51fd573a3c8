package config

import "time"

// DefaultServerConfig returns a ServerConfig with sensible defaults.
func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		ListenAddr:       "127.0.0.1:4444",
		ApprovalMode:     "default",
		BinName:          "gemini",
		PackageRunner:    "npx",
		PackageSpec:      "@google/gemini-cli",
		RingBufferSize:   2000,
		LogPath:          "bridge.log",
		LogMaxBytes:      2 * 1024 * 1024,
		OutgoingTagMode:  "event",
		OutgoingTagNames: []string{"SYS_JSON", "SYS_BLOCK"},
		RestartDelay:     2 * time.Second,
	}
}

// DefaultClientConfig returns a ClientConfig with sensible defaults.
func DefaultClientConfig() *ClientConfig {
	return &ClientConfig{
		URL:              "ws://127.0.0.1:8787/ws",
		DiffContextLines: 3,
		ReplayLimit:      20,
	}
}

func setServerDefaults(v interface {
	SetDefault(key string, value any)
}) {
	d := DefaultServerConfig()
	v.SetDefault("listen_addr", d.ListenAddr)
	v.SetDefault("approval_mode", d.ApprovalMode)
	v.SetDefault("bin_name", d.BinName)
	v.SetDefault("package_runner", d.PackageRunner)
	v.SetDefault("package_spec", d.PackageSpec)
	v.SetDefault("pty", d.PTY)
	v.SetDefault("ring_buffer_size", d.RingBufferSize)
	v.SetDefault("log_path", d.LogPath)
	v.SetDefault("log_max_bytes", d.LogMaxBytes)
	v.SetDefault("outgoing_tag_mode", d.OutgoingTagMode)
	v.SetDefault("outgoing_tag_names", d.OutgoingTagNames)
	v.SetDefault("restart_delay", d.RestartDelay)
}

func setClientDefaults(v interface {
	SetDefault(key string, value any)
}) {
	d := DefaultClientConfig()
	v.SetDefault("url", d.URL)
	v.SetDefault("diff_context_lines", d.DiffContextLines)
	v.SetDefault("replay_limit", d.ReplayLimit)
}
