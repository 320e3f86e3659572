// Package config loads configuration files into flat dotted keys and
// exposes them as modkit providers.
//
//	values, err := config.Load("app.yaml", config.WithEnv("APP"))
//	if err != nil {
//	    return err
//	}
//	meta.Module(AppModule, modkit.Providers(values.Providers("")...))
//
// A module can then depend on modkit.NewToken("database.host").
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/golobby/cast"
	"gopkg.in/yaml.v3"

	"github.com/junioryono/modkit"
)

var (
	// ErrUnsupportedFormat is returned for unknown file extensions.
	ErrUnsupportedFormat = errors.New("unsupported configuration format")

	// ErrKeyNotFound is returned by Get for a missing key.
	ErrKeyNotFound = errors.New("configuration key not found")
)

// Values holds configuration as flat dotted keys, such as "database.port".
type Values map[string]any

// Option configures Load.
type Option func(*loadOptions)

type loadOptions struct {
	envPrefix string
	useEnv    bool
	environ   func() []string
}

// WithEnv overlays environment variables named PREFIX_KEY, where KEY is the
// upper-cased dotted key with dots replaced by underscores. For example
// APP_DATABASE_PORT overrides "database.port". Variables without a matching
// key add new keys.
func WithEnv(prefix string) Option {
	return func(o *loadOptions) {
		o.useEnv = true
		o.envPrefix = prefix
	}
}

// WithEnviron replaces os.Environ, for tests.
func WithEnviron(environ func() []string) Option {
	return func(o *loadOptions) {
		o.environ = environ
	}
}

// Load reads a YAML, TOML or JSON file, chosen by extension. An empty path
// loads nothing but still applies the environment overlay.
func Load(path string, opts ...Option) (Values, error) {
	o := &loadOptions{environ: os.Environ}
	for _, opt := range opts {
		opt(o)
	}

	values := Values{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}

		parsed, err := Parse(data, filepath.Ext(path))
		if err != nil {
			return nil, fmt.Errorf("parsing config %s: %w", path, err)
		}
		values = parsed
	}

	if o.useEnv {
		values.overlayEnv(o.envPrefix, o.environ())
	}

	return values, nil
}

// Parse decodes data in the format named by ext (".yaml", ".yml", ".toml"
// or ".json").
func Parse(data []byte, ext string) (Values, error) {
	raw := make(map[string]any)

	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, err
		}
	case ".toml":
		if err := toml.Unmarshal(data, &raw); err != nil {
			return nil, err
		}
	case ".json":
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}

	values := Values{}
	flatten("", raw, values)
	return values, nil
}

func flatten(prefix string, in map[string]any, out Values) {
	for k, v := range in {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}

		switch nested := v.(type) {
		case map[string]any:
			flatten(key, nested, out)
		default:
			out[key] = v
		}
	}
}

func (v Values) overlayEnv(prefix string, environ []string) {
	if prefix != "" {
		prefix = strings.ToUpper(prefix) + "_"
	}

	byEnvName := make(map[string]string, len(v))
	for key := range v {
		byEnvName[envName(key)] = key
	}

	for _, kv := range environ {
		name, value, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(name, prefix) {
			continue
		}

		suffix := strings.TrimPrefix(name, prefix)
		if suffix == "" {
			continue
		}

		if key, ok := byEnvName[suffix]; ok {
			v[key] = value
			continue
		}
		v[strings.ToLower(strings.ReplaceAll(suffix, "_", "."))] = value
	}
}

func envName(key string) string {
	return strings.ToUpper(strings.NewReplacer(".", "_", "-", "_").Replace(key))
}

// Keys returns the keys in sorted order.
func (v Values) Keys() []string {
	keys := make([]string, 0, len(v))
	for k := range v {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Sub returns the keys under prefix with the prefix removed.
func (v Values) Sub(prefix string) Values {
	if prefix == "" {
		return v
	}
	p := prefix + "."

	out := Values{}
	for k, val := range v {
		if strings.HasPrefix(k, p) {
			out[strings.TrimPrefix(k, p)] = val
		}
	}
	return out
}

// Providers returns a value provider for every key under prefix. Tokens are
// string tokens named by the full key.
func (v Values) Providers(prefix string) []any {
	keys := v.Keys()
	out := make([]any, 0, len(keys))
	for _, k := range keys {
		if prefix != "" && !strings.HasPrefix(k, prefix+".") && k != prefix {
			continue
		}
		out = append(out, modkit.ValueProvider(modkit.NewToken(k), v[k]))
	}
	return out
}

// Get returns the value of key converted to T.
func Get[T any](v Values, key string) (T, error) {
	var zero T

	raw, ok := v[key]
	if !ok {
		return zero, fmt.Errorf("%w: %s", ErrKeyNotFound, key)
	}

	if typed, ok := raw.(T); ok {
		return typed, nil
	}

	t := reflect.TypeOf((*T)(nil)).Elem()
	converted, err := cast.FromType(fmt.Sprint(raw), t)
	if err != nil {
		return zero, fmt.Errorf("config key %s: %w", key, err)
	}

	typed, ok := converted.(T)
	if !ok {
		return zero, fmt.Errorf("config key %s: cannot convert %T to %s", key, converted, t)
	}
	return typed, nil
}

// GetOr returns the value of key converted to T, or def when the key is
// missing or cannot be converted.
func GetOr[T any](v Values, key string, def T) T {
	out, err := Get[T](v, key)
	if err != nil {
		return def
	}
	return out
}
