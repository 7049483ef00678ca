package main

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"sync"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"mediagrab/internal/api"
	"mediagrab/internal/config"
)

const defaultEnvFile = ".env"

type commandContext struct {
	configFlag  *string
	envFileFlag *string
	apiFlag     *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag, envFileFlag, apiFlag *string) *commandContext {
	return &commandContext{
		configFlag:  configFlag,
		envFileFlag: envFileFlag,
		apiFlag:     apiFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		if err := loadEnvironment(flagValue(c.envFileFlag)); err != nil {
			c.configErr = err
			return
		}
		cfg, _, _, err := config.Load(flagValue(c.configFlag))
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) configValue() *config.Config {
	cfg, _ := c.ensureConfig()
	return cfg
}

// apiAddress returns the --api flag when set, otherwise the configured bind
// address with wildcard hosts rewritten to loopback.
func (c *commandContext) apiAddress() string {
	if value := flagValue(c.apiFlag); value != "" {
		return value
	}
	cfg := c.configValue()
	if cfg == nil {
		return ""
	}
	return dialableAddress(cfg.Paths.APIBind)
}

func (c *commandContext) newClient() (*api.Client, error) {
	var token string
	if cfg := c.configValue(); cfg != nil {
		token = cfg.Paths.APIToken
	}
	return api.NewClient(c.apiAddress(), token)
}

func (c *commandContext) withClient(fn func(*api.Client) error) error {
	client, err := c.newClient()
	if err != nil {
		return fmt.Errorf("connect to daemon: %w", err)
	}
	return wrapDialError(fn(client), client.BaseURL())
}

// loadEnvironment applies .env from the working directory when present, then
// overrides it with the explicit env file. Variables already exported by the
// shell win over .env but not over the explicit file.
func loadEnvironment(envFile string) error {
	if _, err := os.Stat(defaultEnvFile); err == nil {
		if err := godotenv.Load(defaultEnvFile); err != nil {
			return fmt.Errorf("load %s: %w", defaultEnvFile, err)
		}
	}
	if envFile == "" {
		return nil
	}
	if err := godotenv.Overload(envFile); err != nil {
		return fmt.Errorf("load env file %s: %w", envFile, err)
	}
	return nil
}

func wrapDialError(err error, base string) error {
	if err == nil {
		return nil
	}
	var opErr *net.OpError
	switch {
	case errors.Is(err, syscall.ECONNREFUSED):
		return fmt.Errorf("connect to daemon at %s: connection refused; start it with `mediagrab serve`", base)
	case errors.As(err, &opErr) && opErr.Op == "dial":
		return fmt.Errorf("connect to daemon at %s: %w", base, err)
	default:
		return err
	}
}

func dialableAddress(bind string) string {
	bind = strings.TrimSpace(bind)
	host, port, err := net.SplitHostPort(bind)
	if err != nil {
		return bind
	}
	switch host {
	case "", "0.0.0.0", "::":
		host = "127.0.0.1"
	}
	return net.JoinHostPort(host, port)
}

func flagValue(value *string) string {
	if value == nil {
		return ""
	}
	return strings.TrimSpace(*value)
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
