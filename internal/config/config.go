// Package config handles input from etc/*.toml files and the environment.
package config

import (
	"bytes"
	"encoding/json"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

const (
	// EnvPrefix prefixes single value overrides, e.g. AGROMANO_IDP_CLIENTSECRET.
	EnvPrefix = "AGROMANO"
	// EnvJSON holds a JSON document merged over the file configuration.
	EnvJSON = "AGROMANO_IDENTITY_CONFIG_JSON"

	invalidErrMessage = "invalid config"

	maxPageSize    = 100
	maxJWKSPerMin  = 5
	minCooldown    = time.Second
	maxCooldown    = 10 * time.Minute
	defaultWorkers = 4
)

// ReadConfig from config file, environment and JSON override.
func ReadConfig(path string) (Config, error) {
	var (
		c   Config
		err error
	)

	if path == "" {
		path = "./etc/"
	}

	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path + "main.toml")
	v.SetConfigType("toml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// secrets are usually absent from the file, bind them explicitly
	for _, key := range []string{"idp.clientID", "idp.clientSecret", "db.password"} {
		if err = v.BindEnv(key); err != nil {
			return Config{}, errors.Wrap(err, "failed to bind env")
		}
	}

	if err = v.ReadInConfig(); err != nil {
		return Config{}, errors.Wrap(err, "failed to read main config file")
	}

	if err = v.Unmarshal(&c); err != nil {
		return Config{}, errors.Wrap(err, "failed to decode main config file")
	}

	// override it from env
	if jsonConfig := os.Getenv(EnvJSON); jsonConfig != "" {
		c, err = decodeAndMergeConfig(c, jsonConfig)
		if err != nil {
			return c, err
		}
	}

	return c, validate(&c)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("title", "agromano identity gate")
	v.SetDefault("webserver.port", 8080)
	v.SetDefault("webserver.shutDownTime", 5)
	v.SetDefault("webserver.rateLimit.max", 10)
	v.SetDefault("webserver.rateLimit.window", time.Minute)
	v.SetDefault("webserver.rateLimit.table", "rate_limits")
	v.SetDefault("idp.callTimeout", 3*time.Second)
	v.SetDefault("jwks.cacheEnabled", true)
	v.SetDefault("jwks.cacheTTL", 10*time.Minute)
	v.SetDefault("jwks.requestsPerMinute", maxJWKSPerMin)
	v.SetDefault("breaker.cooldown", 30*time.Second)
	v.SetDefault("reconcile.defaultRoleCode", "USER")
	v.SetDefault("reconcile.pageSize", 50)
	v.SetDefault("reconcile.workers", defaultWorkers)
	v.SetDefault("reconcile.requestTimeout", 2*time.Second)
	v.SetDefault("reconcile.batchTimeout", 5*time.Minute)
	v.SetDefault("audit.queueSize", 256)
	v.SetDefault("audit.alertThreshold", 3)
	v.SetDefault("db.gormEngine", EngineMySQL)
}

func decodeAndMergeConfig(c Config, configAsJSON string) (Config, error) {
	err := json.Unmarshal([]byte(configAsJSON), &c)
	if err != nil {
		return Config{}, errors.Wrap(err, "failed to read json config override")
	}

	return c, nil
}

// DumpConfig config as TOML String.
func DumpConfig(c *Config) (string, error) {
	var buffer bytes.Buffer
	t := toml.NewEncoder(&buffer)

	if err := t.Encode(c); err != nil {
		return "", err //nolint: wrapcheck
	}

	return buffer.String(), nil
}

// DumpConfigJSON config as JSON String.
func DumpConfigJSON(c *Config) (string, error) {
	var buffer bytes.Buffer
	j := json.NewEncoder(&buffer)
	j.SetIndent("", "  ")

	if err := j.Encode(c); err != nil {
		return "", err //nolint: wrapcheck
	}

	return buffer.String(), nil
}

// Redacted returns a copy of c without secrets, suitable for dumping.
func Redacted(c Config) Config {
	if c.IdP.ClientSecret != "" {
		c.IdP.ClientSecret = "***"
	}

	if c.DB.Password != "" {
		c.DB.Password = "***"
	}

	return c
}

// validate the settings the service can not start without and
// fills the remaining zero values with sane defaults.
func validate(c *Config) error {
	if c.Webserver.Port == 0 {
		return errors.Wrap(ErrWebServerPortCanNotBeZero, invalidErrMessage)
	}

	if err := validator.New().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fe.Namespace())
			}

			return errors.Wrapf(ErrMissingRequired, "%s: %s", invalidErrMessage, strings.Join(fields, ", "))
		}

		return errors.Wrap(err, invalidErrMessage)
	}

	switch c.DB.GormEngine {
	case EngineMySQL, EnginePostgres, EngineSQLite:
	default:
		return errors.Wrap(ErrUnknownGormEngine, invalidErrMessage)
	}

	if c.Breaker.Cooldown < minCooldown || c.Breaker.Cooldown > maxCooldown {
		return errors.Wrap(ErrCooldownOutOfRange, invalidErrMessage)
	}

	if c.JWKS.RequestsPerMinute < 1 || c.JWKS.RequestsPerMinute > maxJWKSPerMin {
		return errors.Wrap(ErrJWKSRateTooHigh, invalidErrMessage)
	}

	if c.Reconcile.PageSize < 1 || c.Reconcile.PageSize > maxPageSize {
		return errors.Wrap(ErrInvalidPageSize, invalidErrMessage)
	}

	if c.Reconcile.Workers < 1 {
		c.Reconcile.Workers = defaultWorkers
	}

	if c.Webserver.ShutDownTime == 0 {
		c.Webserver.ShutDownTime = 5 // set default of 5 seconds
	}

	return nil
}
