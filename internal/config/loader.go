package config

import (
	"fmt"
	"os"
	"reflect"
	"strings"

	"github.com/imdario/mergo"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. PAGECAT_OUTPUT_PATH.
const EnvPrefix = "PAGECAT"

// envAliases are the conventional variables also honored for a key, after
// the PAGECAT_ form.
var envAliases = map[string][]string{
	"app_name":         {"APP_NAME", "NEXT_PUBLIC_APP_NAME"},
	"postgres.url":     {"DATABASE_URL"},
	"consul.address":   {"CONSUL_HTTP_ADDR"},
	"consul.token":     {"CONSUL_HTTP_TOKEN"},
	"consul.namespace": {"CONSUL_NAMESPACE"},
	"vault.address":    {"VAULT_ADDR"},
	"vault.token":      {"VAULT_TOKEN"},
	"vault.namespace":  {"VAULT_NAMESPACE"},
}

// LoadInput is the input structure for Load.
type LoadInput struct {
	// ConfigFile is read when set. Otherwise pagecat.{yaml,toml,json} is
	// looked up in the working directory and skipped when absent.
	ConfigFile string
	// EnvFiles are loaded into the environment first. Missing files are
	// skipped; variables already set are never overridden.
	EnvFiles []string
	// Overrides are applied last, keyed like the config file.
	Overrides map[string]interface{}
}

// Load reads the configuration from the env files, the config file, the
// environment and the overrides, in increasing precedence, fills unset
// values from Default and validates the result.
func Load(i LoadInput) (*Config, error) {
	if err := loadEnvFiles(i.EnvFiles); err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	if err := bindEnv(v); err != nil {
		return nil, err
	}
	def := Default()
	setNumericDefaults(v, def)

	if i.ConfigFile != "" {
		v.SetConfigFile(i.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", i.ConfigFile, err)
		}
	} else {
		v.SetConfigName("pagecat")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("error reading config: %w", err)
			}
		}
	}

	expandEnvVars(v)

	for k, val := range i.Overrides {
		v.Set(k, val)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := mergo.Merge(&cfg, def, mergo.WithTransformers(keepNumbers{})); err != nil {
		return nil, fmt.Errorf("failed to apply defaults: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setNumericDefaults registers the numeric defaults with viper, so an
// explicit zero such as "timeout: 0s" is kept. mergo fills the rest.
func setNumericDefaults(v *viper.Viper, def Config) {
	v.SetDefault("timeout", def.Timeout)
	v.SetDefault("postgres.port", def.Postgres.Port)
	v.SetDefault("postgres.max_connections", def.Postgres.MaxConnections)
	v.SetDefault("postgres.max_idle", def.Postgres.MaxIdle)
	v.SetDefault("postgres.conn_lifetime", def.Postgres.ConnLifetime)
}

// keepNumbers stops mergo from replacing zero integers and durations, which
// setNumericDefaults already defaulted.
type keepNumbers struct{}

func (keepNumbers) Transformer(t reflect.Type) func(dst, src reflect.Value) error {
	switch t.Kind() {
	case reflect.Int, reflect.Int32, reflect.Int64:
		return func(reflect.Value, reflect.Value) error { return nil }
	}
	return nil
}

func loadEnvFiles(paths []string) error {
	for _, path := range paths {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("failed to load %s: %w", path, err)
		}
	}
	return nil
}

// bindEnv binds every config key to its PAGECAT_ variable plus any alias.
// Keys must be bound for environment-only values to reach Unmarshal.
func bindEnv(v *viper.Viper) error {
	for _, key := range keys(reflect.TypeOf(Config{}), "") {
		names := []string{envName(key)}
		names = append(names, envAliases[key]...)
		args := append([]string{key}, names...)
		if err := v.BindEnv(args...); err != nil {
			return err
		}
	}
	return nil
}

func envName(key string) string {
	r := strings.NewReplacer(".", "_", "-", "_")
	return EnvPrefix + "_" + strings.ToUpper(r.Replace(key))
}

// keys lists the dotted mapstructure keys of the leaves of t.
func keys(t reflect.Type, prefix string) []string {
	var out []string
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		tag := f.Tag.Get("mapstructure")
		if tag == "" || tag == "-" {
			continue
		}
		key := tag
		if prefix != "" {
			key = prefix + "." + tag
		}
		if f.Type.Kind() == reflect.Struct {
			out = append(out, keys(f.Type, key)...)
			continue
		}
		out = append(out, key)
	}
	return out
}

// expandEnvVars expands ${VAR} references in string values.
func expandEnvVars(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		strVal, ok := v.Get(key).(string)
		if !ok || !strings.Contains(strVal, "${") {
			continue
		}
		if expanded := os.ExpandEnv(strVal); expanded != strVal {
			v.Set(key, expanded)
		}
	}
}
