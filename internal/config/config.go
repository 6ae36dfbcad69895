// Package config loads the process configuration: a YAML file
// enumerating broadcast-engine hosts (spec.md §6), plus a handful of
// env-var overrides for secrets and deployment-specific values, in the
// teacher's GetEnvWithFallback idiom.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/kestrelrun/marathoncast/internal/hostactor"
)

// HostFile is one entry in the YAML `hosts` list.
type HostFile struct {
	Name           string  `yaml:"name"`
	IP             string  `yaml:"ip"`
	Port           int     `yaml:"port"`
	Password       string  `yaml:"password,omitempty"`
	VoiceGuildID   *string `yaml:"voice_guild_id,omitempty"`
	VoiceChannelID *string `yaml:"voice_channel_id,omitempty"`
	EnableVoice    bool    `yaml:"enable_voice,omitempty"`
}

// File is the on-disk YAML shape.
type File struct {
	Hosts             []HostFile `yaml:"hosts"`
	ShortTransition   string     `yaml:"short_transition"`
	LongTransition    string     `yaml:"long_transition"`
	KeepUnusedStreams *bool      `yaml:"keep_unused_streams,omitempty"`
	TransmitVoiceDFT  bool       `yaml:"transmit_voice_dft,omitempty"`
	VADModelPath      string     `yaml:"vad_model_path,omitempty"`
}

// Config is the effective process configuration: the YAML file plus
// env-var overrides.
type Config struct {
	DBPath  string
	WebPort int

	DiscordToken          string
	DiscordCommandChannel string

	ResolverCommand string

	LiveKitURL       string
	LiveKitAPIKey    string
	LiveKitAPISecret string

	TransmitVoiceDFT bool
	VADModelPath     string

	HostSettings hostactor.Settings
}

// Load reads the YAML host-config file at path and layers env-var
// overrides on top, matching shared/config/env.go's
// GetEnvWithFallback fallback-chain idiom (primary var, then a bare
// fallback name, then a default).
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %q: %w", path, err)
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse config %q: %w", path, err)
	}

	keepUnused := true
	if f.KeepUnusedStreams != nil {
		keepUnused = *f.KeepUnusedStreams
	}

	hosts := make([]hostactor.HostConfig, 0, len(f.Hosts))
	for _, h := range f.Hosts {
		hosts = append(hosts, hostactor.HostConfig{
			Name: h.Name,
			Engine: hostactor.EngineConfig{
				IP:       h.IP,
				Port:     h.Port,
				Password: h.Password,
			},
			VoiceGuildID:   h.VoiceGuildID,
			VoiceChannelID: h.VoiceChannelID,
			EnableVoice:    h.EnableVoice,
		})
	}

	cfg := &Config{
		DBPath:  getEnvWithFallback("MARATHONCAST_DB_PATH", "DB_PATH", "marathoncast.sqlite"),
		WebPort: getEnvIntWithFallback("MARATHONCAST_WEB_PORT", "WEB_PORT", 28010),

		DiscordToken:          getEnvWithFallback("MARATHONCAST_DISCORD_TOKEN", "DISCORD_TOKEN", ""),
		DiscordCommandChannel: getEnvWithFallback("MARATHONCAST_DISCORD_COMMAND_CHANNEL", "DISCORD_COMMAND_CHANNEL", ""),

		ResolverCommand: getEnvWithFallback("MARATHONCAST_RESOLVER_COMMAND", "RESOLVER_COMMAND", "streamlink"),

		LiveKitURL:       getEnvWithFallback("MARATHONCAST_LIVEKIT_URL", "LIVEKIT_URL", ""),
		LiveKitAPIKey:    getEnvWithFallback("MARATHONCAST_LIVEKIT_API_KEY", "LIVEKIT_API_KEY", ""),
		LiveKitAPISecret: getEnvWithFallback("MARATHONCAST_LIVEKIT_API_SECRET", "LIVEKIT_API_SECRET", ""),

		TransmitVoiceDFT: f.TransmitVoiceDFT,
		VADModelPath:     f.VADModelPath,

		HostSettings: hostactor.Settings{
			Hosts:             hosts,
			ShortTransition:   f.ShortTransition,
			LongTransition:    f.LongTransition,
			KeepUnusedStreams: keepUnused,
		},
	}
	return cfg, nil
}

// IsLiveKitConfigured mirrors the teacher's config.IsXConfigured predicate
// helpers.
func (c *Config) IsLiveKitConfigured() bool {
	return c.LiveKitURL != "" && c.LiveKitAPIKey != "" && c.LiveKitAPISecret != ""
}

// IsDiscordConfigured mirrors the same predicate-helper idiom for the
// chat/voice command surface.
func (c *Config) IsDiscordConfigured() bool {
	return c.DiscordToken != ""
}
