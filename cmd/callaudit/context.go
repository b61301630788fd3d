package main

import (
	"context"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/Nephrolytics-ai/call-auditor/pkg/app"
	"github.com/Nephrolytics-ai/call-auditor/pkg/config"
	"github.com/Nephrolytics-ai/call-auditor/pkg/logging"
)

type containerFactory func(cfg *config.Config) (*app.Container, error)

type commandContext struct {
	configFlag   *string
	envFileFlag  *string
	newContainer containerFactory

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag, envFileFlag *string, newContainer containerFactory) *commandContext {
	return &commandContext{
		configFlag:   configFlag,
		envFileFlag:  envFileFlag,
		newContainer: newContainer,
	}
}

// ensureConfig loads configuration once and installs the log factory. Logs
// go to logOut so stdout stays free for command output and the MCP stream.
func (c *commandContext) ensureConfig(logOut io.Writer) (*config.Config, error) {
	c.configOnce.Do(func() {
		opts := config.Options{}
		if c.configFlag != nil {
			opts.ConfigFile = strings.TrimSpace(*c.configFlag)
		}
		if c.envFileFlag != nil {
			opts.EnvFile = strings.TrimSpace(*c.envFileFlag)
		}

		cfg, err := config.Load(opts)
		if err != nil {
			c.configErr = err
			return
		}

		factory, err := logging.NewLogrusFactory(logOut, cfg.Logging.Level, cfg.Logging.Format)
		if err != nil {
			c.configErr = err
			return
		}
		logging.SetLoggerFactory(factory)
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) container(logOut io.Writer) (*app.Container, error) {
	cfg, err := c.ensureConfig(logOut)
	if err != nil {
		return nil, err
	}
	return c.newContainer(cfg)
}

// closeContainer flushes metrics and traces before the process exits.
func closeContainer(container *app.Container) {
	closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = container.Close(closeCtx)
}
