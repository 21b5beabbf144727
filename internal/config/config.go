package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/kelseyhightower/envconfig"

	"github.com/danmuck/bondx/internal/agent"
	"github.com/danmuck/bondx/internal/transport"
)

// EnvPrefix prefixes every environment override, e.g. BONDX_SEND_COUNT.
const EnvPrefix = "BONDX"

type Role string

const (
	RoleLocal  Role = "local"
	RoleClient Role = "client"
	RoleServer Role = "server"
)

const (
	OutputText = "text"
	OutputLog  = "log"
	OutputNone = "none"

	DefaultStreamID      int32 = 10
	DefaultSendCount           = 5
	DefaultRemoteChannel       = "udp://localhost:20121"
	DefaultWaitTimeout         = 30 * time.Second

	localFragmentLimit  = 5
	serverFragmentLimit = 1
)

// ExchangeConfig is the runtime configuration for one bondx process.
type ExchangeConfig struct {
	Role          Role          `split_words:"true"`
	Channel       string        `split_words:"true"`
	StreamID      int32         `split_words:"true"`
	SendCount     uint64        `split_words:"true"`
	FragmentLimit int           `split_words:"true"`
	IdleStrategy  string        `split_words:"true"`
	WaitTimeout   time.Duration `split_words:"true"`
	// OfferRate caps producer offers per second; 0 is unpaced.
	OfferRate    float64  `split_words:"true"`
	IPCTermSlots int      `split_words:"true"`
	AdminAddr    string   `split_words:"true"`
	CorsOrigins  []string `split_words:"true"`
	Output       string   `split_words:"true"`
}

func DefaultExchangeConfig() ExchangeConfig {
	return ExchangeConfig{
		Role:         RoleLocal,
		StreamID:     DefaultStreamID,
		SendCount:    DefaultSendCount,
		IdleStrategy: agent.IdleBusySpin,
		WaitTimeout:  DefaultWaitTimeout,
		IPCTermSlots: 1024,
		Output:       OutputText,
	}
}

// ResolvedChannel is the configured channel, or the role default when unset.
func (c ExchangeConfig) ResolvedChannel() string {
	if ch := strings.TrimSpace(c.Channel); ch != "" {
		return ch
	}
	if c.Role == RoleLocal {
		return string(transport.ChannelIPC)
	}
	return DefaultRemoteChannel
}

// ResolvedFragmentLimit is the configured poll batch, or the role default.
func (c ExchangeConfig) ResolvedFragmentLimit() int {
	if c.FragmentLimit > 0 {
		return c.FragmentLimit
	}
	if c.Role == RoleServer {
		return serverFragmentLimit
	}
	return localFragmentLimit
}

// bondx config.toml key mapping; durations are strings such as "30s".
type fileConfig struct {
	Role          string   `toml:"role"`
	Channel       string   `toml:"channel"`
	StreamID      int32    `toml:"stream_id"`
	SendCount     uint64   `toml:"send_count"`
	FragmentLimit int      `toml:"fragment_limit"`
	IdleStrategy  string   `toml:"idle_strategy"`
	WaitTimeout   string   `toml:"wait_timeout"`
	OfferRate     float64  `toml:"offer_rate"`
	IPCTermSlots  int      `toml:"ipc_term_slots"`
	AdminAddr     string   `toml:"admin_addr"`
	CorsOrigins   []string `toml:"cors_origins"`
	Output        string   `toml:"output"`
}

// LoadExchangeConfig is ResolveExchangeConfig followed by Validate.
func LoadExchangeConfig(path string) (ExchangeConfig, error) {
	cfg, err := ResolveExchangeConfig(path)
	if err != nil {
		return ExchangeConfig{}, err
	}
	if err := cfg.Validate(); err != nil {
		return ExchangeConfig{}, err
	}
	return cfg, nil
}

// ResolveExchangeConfig layers defaults, the TOML file at path (skipped when
// path is empty) and BONDX_* environment overrides without validating, so
// callers can apply their own overrides first.
func ResolveExchangeConfig(path string) (ExchangeConfig, error) {
	cfg := DefaultExchangeConfig()
	if strings.TrimSpace(path) != "" {
		if err := overlayFile(&cfg, path); err != nil {
			return ExchangeConfig{}, err
		}
	}
	if err := ApplyEnv(&cfg); err != nil {
		return ExchangeConfig{}, err
	}
	return cfg, nil
}

func overlayFile(cfg *ExchangeConfig, path string) error {
	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return fmt.Errorf("load bondx config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return fmt.Errorf("load bondx config: unknown key %q", undecoded[0].String())
	}

	if meta.IsDefined("role") {
		cfg.Role = Role(strings.ToLower(strings.TrimSpace(raw.Role)))
	}
	if meta.IsDefined("channel") {
		cfg.Channel = strings.TrimSpace(raw.Channel)
	}
	if meta.IsDefined("stream_id") {
		cfg.StreamID = raw.StreamID
	}
	if meta.IsDefined("send_count") {
		cfg.SendCount = raw.SendCount
	}
	if meta.IsDefined("fragment_limit") {
		cfg.FragmentLimit = raw.FragmentLimit
	}
	if meta.IsDefined("idle_strategy") {
		cfg.IdleStrategy = strings.TrimSpace(raw.IdleStrategy)
	}
	if meta.IsDefined("wait_timeout") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.WaitTimeout))
		if err != nil {
			return fmt.Errorf("load bondx config: wait_timeout: %w", err)
		}
		cfg.WaitTimeout = d
	}
	if meta.IsDefined("offer_rate") {
		cfg.OfferRate = raw.OfferRate
	}
	if meta.IsDefined("ipc_term_slots") {
		cfg.IPCTermSlots = raw.IPCTermSlots
	}
	if meta.IsDefined("admin_addr") {
		cfg.AdminAddr = strings.TrimSpace(raw.AdminAddr)
	}
	if meta.IsDefined("cors_origins") {
		cfg.CorsOrigins = raw.CorsOrigins
	}
	if meta.IsDefined("output") {
		cfg.Output = strings.ToLower(strings.TrimSpace(raw.Output))
	}
	return nil
}

// ApplyEnv overrides fields from BONDX_* variables. Unset variables keep
// the current value.
func ApplyEnv(cfg *ExchangeConfig) error {
	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return fmt.Errorf("load bondx env: %w", err)
	}
	return nil
}

func (c ExchangeConfig) Validate() error {
	switch c.Role {
	case RoleLocal, RoleClient, RoleServer:
	default:
		return fmt.Errorf("bondx config: unknown role %q (expected local, client or server)", c.Role)
	}
	ch, err := transport.ParseChannel(c.ResolvedChannel())
	if err != nil {
		return fmt.Errorf("bondx config: %w", err)
	}
	if c.Role != RoleLocal && ch.Kind != transport.ChannelUDP {
		return fmt.Errorf("bondx config: role %s requires a udp channel, got %s", c.Role, ch)
	}
	if c.SendCount == 0 {
		return fmt.Errorf("bondx config: send_count must be positive")
	}
	if c.FragmentLimit < 0 {
		return fmt.Errorf("bondx config: fragment_limit must not be negative")
	}
	if _, err := agent.ParseIdleStrategy(c.IdleStrategy); err != nil {
		return fmt.Errorf("bondx config: %w", err)
	}
	if c.WaitTimeout < 0 {
		return fmt.Errorf("bondx config: wait_timeout must not be negative")
	}
	if c.OfferRate < 0 {
		return fmt.Errorf("bondx config: offer_rate must not be negative")
	}
	if c.IPCTermSlots < 0 {
		return fmt.Errorf("bondx config: ipc_term_slots must not be negative")
	}
	switch c.Output {
	case OutputText, OutputLog, OutputNone:
	default:
		return fmt.Errorf("bondx config: unknown output %q (expected text, log or none)", c.Output)
	}
	return nil
}
