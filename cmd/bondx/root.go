package main

import (
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/danmuck/bondx/internal/config"
)

// Command line overrides; only flags the user set replace config values.
type flagValues struct {
	configPath    string
	channel       string
	streamID      int32
	count         uint64
	fragmentLimit int
	idle          string
	timeout       time.Duration
	rate          float64
	adminAddr     string
	output        string
}

var roleShort = map[config.Role]string{
	config.RoleLocal:  "Run producer and consumer in one process over ipc",
	config.RoleClient: "Publish to a remote server once it is connected",
	config.RoleServer: "Subscribe and decode until the expected count arrives",
}

func newRootCmd() *cobra.Command {
	return buildRootCmd(&flagValues{})
}

func buildRootCmd(flags *flagValues) *cobra.Command {
	root := &cobra.Command{
		Use:   "bondx",
		Short: "Point-to-point Bond record exchange",
		Long: `bondx encodes Bond records into a fixed binary frame, publishes them over
an in-process or UDP stream and decodes them on the other side, stopping once
the expected count has been received.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&flags.configPath, "config", "c", "", "path to a bondx config.toml")
	pf.StringVar(&flags.channel, "channel", "", "channel uri: ipc or udp://host:port")
	pf.Int32Var(&flags.streamID, "stream", config.DefaultStreamID, "stream id")
	pf.Uint64VarP(&flags.count, "count", "n", config.DefaultSendCount, "records to send or expect")
	pf.IntVar(&flags.fragmentLimit, "fragment-limit", 0, "fragments per poll (0 = role default)")
	pf.StringVar(&flags.idle, "idle", "busy-spin", "idle strategy: busy-spin, yield, sleep, backoff")
	pf.DurationVar(&flags.timeout, "timeout", config.DefaultWaitTimeout, "bound on the shutdown wait (0 waits forever)")
	pf.Float64Var(&flags.rate, "rate", 0, "producer offers per second (0 = unpaced)")
	pf.StringVar(&flags.adminAddr, "admin-addr", "", "serve /health /ready /status /metrics on this address")
	pf.StringVarP(&flags.output, "output", "o", config.OutputText, "decoded record output: text, log, none")

	for _, role := range []config.Role{config.RoleLocal, config.RoleClient, config.RoleServer} {
		root.AddCommand(newRoleCmd(role, flags))
	}
	return root
}

func newRoleCmd(role config.Role, flags *flagValues) *cobra.Command {
	return &cobra.Command{
		Use:   string(role),
		Short: roleShort[role],
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig(cmd, role, flags)
			if err != nil {
				return err
			}
			return runExchange(cmd.Context(), cfg, cmd.ErrOrStderr())
		},
	}
}

// resolveConfig applies file, env, the subcommand role and changed flags,
// in that order, then validates.
func resolveConfig(cmd *cobra.Command, role config.Role, flags *flagValues) (config.ExchangeConfig, error) {
	cfg, err := config.ResolveExchangeConfig(flags.configPath)
	if err != nil {
		return config.ExchangeConfig{}, err
	}
	cfg.Role = role

	changed := cmd.Flags().Changed
	if changed("channel") {
		cfg.Channel = strings.TrimSpace(flags.channel)
	}
	if changed("stream") {
		cfg.StreamID = flags.streamID
	}
	if changed("count") {
		cfg.SendCount = flags.count
	}
	if changed("fragment-limit") {
		cfg.FragmentLimit = flags.fragmentLimit
	}
	if changed("idle") {
		cfg.IdleStrategy = strings.TrimSpace(flags.idle)
	}
	if changed("timeout") {
		cfg.WaitTimeout = flags.timeout
	}
	if changed("rate") {
		cfg.OfferRate = flags.rate
	}
	if changed("admin-addr") {
		cfg.AdminAddr = strings.TrimSpace(flags.adminAddr)
	}
	if changed("output") {
		cfg.Output = strings.ToLower(strings.TrimSpace(flags.output))
	}

	if err := cfg.Validate(); err != nil {
		return config.ExchangeConfig{}, err
	}
	return cfg, nil
}
