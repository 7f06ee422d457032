package main

import (
	"context"
	"os"
	"strings"

	"github.com/cockroachdb/errors"
	goredis "github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/unkn0wn-root/cachekit"
	"github.com/unkn0wn-root/cachekit/config"
	zaplog "github.com/unkn0wn-root/cachekit/log/zap"
	rp "github.com/unkn0wn-root/cachekit/provider/redis"
)

const (
	envConfig   = "CACHEKIT_CONFIG"
	envRedis    = "CACHEKIT_REDIS"
	envLogLevel = "CACHEKIT_LOG_LEVEL"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "cachectl",
		Short:         "Inspect and maintain a cachekit cache",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().String("config", "", "YAML config file (env "+envConfig+")")
	root.PersistentFlags().String("redis", "", "redis address or redis:// URL, overrides the config (env "+envRedis+")")
	root.PersistentFlags().String("log-level", "", "debug, info, warn or error (env "+envLogLevel+")")

	root.AddCommand(
		newTTLCmd(),
		newKeyCmd(),
		newGetCmd(),
		newEvictCmd(),
		newClearCmd(),
	)
	return root
}

// flagOrEnv returns the flag value, then the environment value, then def.
func flagOrEnv(cmd *cobra.Command, flag, env, def string) string {
	if v, _ := cmd.Flags().GetString(flag); v != "" {
		return v
	}
	if v, ok := os.LookupEnv(env); ok && v != "" {
		return v
	}
	return def
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path := flagOrEnv(cmd, "config", envConfig, "")
	if path == "" {
		return config.Parse(nil)
	}
	return config.Load(path)
}

func newLogger(cmd *cobra.Command) (cachekit.Logger, func(), error) {
	level, err := zapcore.ParseLevel(flagOrEnv(cmd, "log-level", envLogLevel, "warn"))
	if err != nil {
		return nil, nil, err
	}
	zc := zap.NewDevelopmentConfig()
	zc.Level = zap.NewAtomicLevelAt(level)
	zc.OutputPaths = []string{"stderr"}
	zl, err := zc.Build()
	if err != nil {
		return nil, nil, err
	}
	return zaplog.New(zl), func() { _ = zl.Sync() }, nil
}

// session is a Manager over Redis plus the first error it reported.
type session struct {
	cfg     *config.Config
	m       cachekit.Manager
	p       *rp.Redis
	lastErr error
	done    func()
}

func openSession(cmd *cobra.Command) (*session, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	ro := cfg.RedisOptions()
	if addr := flagOrEnv(cmd, "redis", envRedis, ""); addr != "" {
		if strings.Contains(addr, "://") {
			if ro, err = goredis.ParseURL(addr); err != nil {
				return nil, errors.Wrap(err, "parse redis URL")
			}
		} else {
			ro.Addr = addr
		}
	}
	log, sync, err := newLogger(cmd)
	if err != nil {
		return nil, err
	}

	client := goredis.NewClient(ro)
	if err := client.Ping(cmd.Context()).Err(); err != nil {
		_ = client.Close()
		sync()
		return nil, errors.Wrapf(err, "connect %s", ro.Addr)
	}
	p, err := rp.New(rp.Config{Client: client, CloseClient: true})
	if err != nil {
		return nil, err
	}

	s := &session{cfg: cfg, p: p}
	opts, err := cfg.Options(p, log)
	if err != nil {
		_ = p.Close(context.Background())
		sync()
		return nil, err
	}
	opts.ErrorHandler = cachekit.ErrorHandlerFunc(func(op cachekit.Op, ns, key string, err error) {
		log.Error("cache "+string(op)+" failed", cachekit.Fields{"namespace": ns, "key": key, "err": err})
		if s.lastErr == nil {
			s.lastErr = err
		}
	})
	// the CLI always talks to the store, whatever the config says
	opts.Disabled = false
	if s.m, err = cachekit.New(opts); err != nil {
		_ = p.Close(context.Background())
		sync()
		return nil, err
	}
	s.done = sync
	return s, nil
}

func (s *session) Close() error {
	err := s.m.Close(context.Background())
	s.done()
	return err
}

func (s *session) storageKey(namespace, key string) string {
	return s.cfg.Cache.Prefix + namespace + cachekit.KeySeparator + key
}

func stringArgs(in []string) []any {
	out := make([]any, len(in))
	for i, a := range in {
		out[i] = a
	}
	return out
}
