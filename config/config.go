// Package config loads cachekit settings from YAML.
//
//	cache:
//	  prefix: "app:"
//	  expiration: 0        # default TTL in seconds, or "10m"; 0 = never
//	  expires:             # per-namespace overrides
//	    userCache: 300
//	    sessionCache: 1h
//	  format: json         # json | msgpack | cbor
//	redis:
//	  addr: 127.0.0.1:6379
//	  db: 0
//
// ${VAR} references are expanded from the environment before parsing.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	goredis "github.com/redis/go-redis/v9"
	"gopkg.in/yaml.v3"

	"github.com/unkn0wn-root/cachekit"
	"github.com/unkn0wn-root/cachekit/codec"
	pr "github.com/unkn0wn-root/cachekit/provider"
	"github.com/unkn0wn-root/cachekit/ttl"
)

type Config struct {
	Cache Cache `yaml:"cache"`
	Redis Redis `yaml:"redis"`
}

type Cache struct {
	Prefix     string         `yaml:"prefix"`
	Expiration Seconds        `yaml:"expiration"`
	Expires    map[string]any `yaml:"expires"`
	Format     string         `yaml:"format"`
	AllowTypes []string       `yaml:"allowTypes"`
	Disabled   bool           `yaml:"disabled"`
	RejectNil  bool           `yaml:"rejectNil"`
	OpTimeout  Seconds        `yaml:"opTimeout"`
}

type Redis struct {
	Addr         string  `yaml:"addr"`
	Username     string  `yaml:"username"`
	Password     string  `yaml:"password"`
	DB           int     `yaml:"db"`
	DialTimeout  Seconds `yaml:"dialTimeout"`
	ReadTimeout  Seconds `yaml:"readTimeout"`
	WriteTimeout Seconds `yaml:"writeTimeout"`
	PoolSize     int     `yaml:"poolSize"`
}

// Seconds is a non-negative whole-second duration. YAML may give a number of
// seconds or a duration string.
type Seconds time.Duration

func (s Seconds) Duration() time.Duration { return time.Duration(s) }

func (s *Seconds) UnmarshalYAML(value *yaml.Node) error {
	var raw any
	if err := value.Decode(&raw); err != nil {
		return err
	}
	if raw == nil {
		*s = 0
		return nil
	}
	d, err := ttl.Seconds(raw)
	if err != nil {
		return errors.Wrapf(err, "line %d: %q", value.Line, value.Value)
	}
	*s = Seconds(d)
	return nil
}

const DefaultRedisAddr = "127.0.0.1:6379"

func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "config: read")
	}
	c, err := Parse(b)
	if err != nil {
		return nil, errors.Wrapf(err, "config: %s", path)
	}
	return c, nil
}

func Parse(b []byte) (*Config, error) {
	var c Config
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(b))), &c); err != nil {
		return nil, errors.Wrap(err, "config: parse")
	}
	if c.Redis.Addr == "" {
		c.Redis.Addr = DefaultRedisAddr
	}
	if _, err := c.format(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Policy builds the TTL policy. Rejected override entries come back as
// diagnostics and are not part of the policy.
func (c *Config) Policy() (*ttl.Policy, []*ttl.ConfigError, error) {
	overrides, diags := ttl.BuildOverrides(c.Cache.Expires)
	p, err := ttl.NewPolicy(c.Cache.Expiration.Duration(), overrides)
	return p, diags, err
}

func (c *Config) RedisOptions() *goredis.Options {
	return &goredis.Options{
		Addr:         c.Redis.Addr,
		Username:     c.Redis.Username,
		Password:     c.Redis.Password,
		DB:           c.Redis.DB,
		DialTimeout:  c.Redis.DialTimeout.Duration(),
		ReadTimeout:  c.Redis.ReadTimeout.Duration(),
		WriteTimeout: c.Redis.WriteTimeout.Duration(),
		PoolSize:     c.Redis.PoolSize,
	}
}

func (c *Config) format() (codec.Format, error) {
	switch strings.ToLower(c.Cache.Format) {
	case "", "json":
		return codec.FormatJSON, nil
	case "msgpack":
		return codec.FormatMsgpack, nil
	case "cbor":
		return codec.FormatCBOR, nil
	}
	return 0, errors.Newf("config: unknown cache format %q", c.Cache.Format)
}

// Codec builds the typed codec described by cache.format and cache.allowTypes,
// registering samples of the types the process reads (see codec.WithTypes).
func (c *Config) Codec(types ...any) (*codec.Typed, error) {
	f, err := c.format()
	if err != nil {
		return nil, err
	}
	opts := []codec.TypedOption{codec.WithFormat(f)}
	if len(c.Cache.AllowTypes) > 0 {
		opts = append(opts, codec.WithAllowList(c.Cache.AllowTypes...))
	}
	if len(types) > 0 {
		opts = append(opts, codec.WithTypes(types...))
	}
	return codec.NewTyped(opts...)
}

// Options assembles Manager options over p. Rejected overrides are logged
// through log at Warn. types are registered with the codec as in Codec.
func (c *Config) Options(p pr.Provider, log cachekit.Logger, types ...any) (cachekit.Options, error) {
	policy, diags, err := c.Policy()
	if err != nil {
		return cachekit.Options{}, err
	}
	if log == nil {
		log = cachekit.NopLogger{}
	}
	for _, d := range diags {
		log.Warn("ignoring cache expiration override", cachekit.Fields{
			"namespace": d.Namespace,
			"value":     fmt.Sprint(d.Value),
			"err":       d.Err,
		})
	}
	cd, err := c.Codec(types...)
	if err != nil {
		return cachekit.Options{}, err
	}
	return cachekit.Options{
		Provider:  p,
		Codec:     cd,
		Policy:    policy,
		KeyPrefix: c.Cache.Prefix,
		Logger:    log,
		Disabled:  c.Cache.Disabled,
		RejectNil: c.Cache.RejectNil,
		OpTimeout: c.Cache.OpTimeout.Duration(),
	}, nil
}
