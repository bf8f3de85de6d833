package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix namespaces environment overrides, e.g. TASKMASTER_DB or
// TASKMASTER_ALERTS_WEBHOOK.
const EnvPrefix = "TASKMASTER"

// Load merges defaults, the YAML file at path (optional, skipped when empty
// or missing) and environment overrides.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	v := viper.New()
	setDefaults(v, cfg)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			v.SetConfigFile(path)
			v.SetConfigType("yaml")
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("read config %s: %w", path, err)
			}
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return cfg, cfg.Validate()
}

// setDefaults registers every key so AutomaticEnv can override keys the
// file does not mention.
func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("db", cfg.DB)
	v.SetDefault("addr", cfg.Addr)
	v.SetDefault("workers", cfg.Workers)
	v.SetDefault("poll", cfg.Poll)
	v.SetDefault("lease", cfg.Lease)
	v.SetDefault("max_attempts", cfg.MaxAttempts)
	v.SetDefault("maintenance.recover", cfg.Maintenance.Recover)
	v.SetDefault("maintenance.purge", cfg.Maintenance.Purge)
	v.SetDefault("maintenance.purge_after", cfg.Maintenance.PurgeAfter)
	v.SetDefault("alerts.inbox", cfg.Alerts.Inbox)
	v.SetDefault("alerts.log", cfg.Alerts.Log)
	v.SetDefault("alerts.webhook", cfg.Alerts.Webhook)
	v.SetDefault("alerts.webhook_timeout", cfg.Alerts.WebhookTimeout)
	v.SetDefault("alerts.webhook_headers", cfg.Alerts.WebhookHeaders)
	v.SetDefault("alerts.command", cfg.Alerts.Command)
	v.SetDefault("log.level", cfg.Log.Level)
	v.SetDefault("log.console", cfg.Log.Console)
}

func (c *Config) Validate() error {
	switch {
	case c.DB == "":
		return errors.New("db path is required")
	case c.Workers <= 0:
		return fmt.Errorf("workers must be positive, got %d", c.Workers)
	case c.Poll <= 0:
		return fmt.Errorf("poll must be positive, got %s", c.Poll)
	case c.Lease <= 0:
		return fmt.Errorf("lease must be positive, got %s", c.Lease)
	case c.MaxAttempts <= 0:
		return fmt.Errorf("max_attempts must be positive, got %d", c.MaxAttempts)
	}
	for key, spec := range map[string]string{
		"maintenance.recover": c.Maintenance.Recover,
		"maintenance.purge":   c.Maintenance.Purge,
	} {
		if _, err := cron.ParseStandard(spec); err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
	}
	return nil
}

const header = `# taskmaster configuration
# Every key can be overridden with a TASKMASTER_ environment variable,
# nested keys joined by underscores (TASKMASTER_ALERTS_WEBHOOK).
`

// WriteDefault writes the default configuration to path. It refuses to
// overwrite an existing file.
func WriteDefault(path string) error {
	var doc yaml.Node
	cfg := DefaultConfig()
	if err := doc.Encode(cfg); err != nil {
		return err
	}
	durationsAsText(&doc, reflect.ValueOf(cfg).Elem())
	data, err := yaml.Marshal(&doc)
	if err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := f.WriteString(header); err != nil {
		return err
	}
	_, err = f.Write(data)
	return err
}

var durationType = reflect.TypeOf(time.Duration(0))

// durationsAsText rewrites the scalar nodes of time.Duration fields as
// "250ms" style strings. node is the mapping encoded from the struct v.
func durationsAsText(node *yaml.Node, v reflect.Value) {
	if node.Kind != yaml.MappingNode || v.Kind() != reflect.Struct {
		return
	}
	fields := map[string]reflect.Value{}
	for i := 0; i < v.NumField(); i++ {
		name, _, _ := strings.Cut(v.Type().Field(i).Tag.Get("yaml"), ",")
		if name != "" && name != "-" {
			fields[name] = v.Field(i)
		}
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		f, ok := fields[node.Content[i].Value]
		if !ok {
			continue
		}
		val := node.Content[i+1]
		if f.Type() == durationType {
			val.Kind, val.Tag, val.Style = yaml.ScalarNode, "!!str", 0
			val.Value = time.Duration(f.Int()).String()
			continue
		}
		durationsAsText(val, f)
	}
}
