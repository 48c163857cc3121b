package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sssctl/sssnss"
)

const (
	socketFlag           = "socket"
	timeoutFlag          = "timeout"
	requireRootOwnerFlag = "require-root-owner"
	batchSizeFlag        = "batch-size"
	strictIDsFlag        = "strict-ids"
	logLevelFlag         = "log-level"
)

func mustBindPFlag(v *viper.Viper, key string, flag *pflag.Flag) {
	if err := v.BindPFlag(key, flag); err != nil {
		panic("failed to bind pflag: " + err.Error())
	}
}

// newRootCommand builds the command tree. Every persistent flag can also be
// set through an environment variable prefixed with SSSNSS, e.g.
// SSSNSS_SOCKET=/run/sss/nss.
func newRootCommand() *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("SSSNSS")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:   "sss-getent",
		Short: "Query the SSSD group database without going through nsswitch",
		Long: `sss-getent talks to the SSSD nss responder over its unix socket and prints
groups in the format of /etc/group, like getent(1) does.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			logger, err := newLogger(v.GetString(logLevelFlag))
			if err != nil {
				return err
			}
			sssnss.Logger = zap.NewStdLog(logger.Named("sssnss"))
			return nil
		},
	}

	defaultConfig := sssnss.NewConfig()
	flags := cmd.PersistentFlags()

	flags.String(socketFlag, defaultConfig.Net.SocketPath, "the unix socket of the nss responder")
	mustBindPFlag(v, socketFlag, flags.Lookup(socketFlag))

	flags.Duration(timeoutFlag, defaultConfig.Net.ReadTimeout, "how long to wait for the daemon to answer")
	mustBindPFlag(v, timeoutFlag, flags.Lookup(timeoutFlag))

	flags.Bool(requireRootOwnerFlag, defaultConfig.Net.RequireRootOwner, "refuse to talk to a daemon that does not run as root")
	mustBindPFlag(v, requireRootOwnerFlag, flags.Lookup(requireRootOwnerFlag))

	flags.Int(batchSizeFlag, defaultConfig.Enumeration.BatchSize, "the number of groups fetched per round trip when listing all groups")
	mustBindPFlag(v, batchSizeFlag, flags.Lookup(batchSizeFlag))

	flags.Bool(strictIDsFlag, defaultConfig.Decode.StrictIDs, "reject group ids that do not fit 32 bits instead of truncating them")
	mustBindPFlag(v, strictIDsFlag, flags.Lookup(strictIDsFlag))

	flags.String(logLevelFlag, "none", "the log level to use (none, debug, info, warn, error)")
	mustBindPFlag(v, logLevelFlag, flags.Lookup(logLevelFlag))

	cmd.AddCommand(newGroupCommand(v), newGroupsCommand(v), newInitGroupsCommand(v), newVersionCommand())
	return cmd
}

func newLogger(level string) (*zap.Logger, error) {
	if level == "none" {
		return zap.NewNop(), nil
	}

	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("unknown log level: %s", level)
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.Encoding = "console"
	cfg.EncoderConfig.TimeKey = "timestamp"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.DisableStacktrace = true
	return cfg.Build()
}

// newClient builds a client from the flags and environment.
func newClient(v *viper.Viper) (*sssnss.Client, error) {
	conf := sssnss.NewConfig()
	conf.Net.SocketPath = v.GetString(socketFlag)
	conf.Net.ReadTimeout = v.GetDuration(timeoutFlag)
	conf.Net.RequireRootOwner = v.GetBool(requireRootOwnerFlag)
	conf.Enumeration.BatchSize = v.GetInt(batchSizeFlag)
	conf.Decode.StrictIDs = v.GetBool(strictIDsFlag)
	return sssnss.NewClient(conf)
}
