package main

import (
	"strings"
	"sync"

	"github.com/lk2023060901/signage-backend/internal/conf"
	"github.com/lk2023060901/signage-backend/internal/data"
	"github.com/lk2023060901/signage-backend/internal/pkg/logger"
	"github.com/spf13/cobra"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *conf.Config
	configErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*conf.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		c.config, c.configErr = conf.LoadConfig(path)
	})
	return c.config, c.configErr
}

// openData 命令行只输出错误日志
func (c *commandContext) openData() (*conf.Config, *data.Data, func(), error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, nil, nil, err
	}

	logCfg := cfg.Log
	logCfg.Level = "error"
	logCfg.Output = "console"
	log, err := logger.New(&logCfg)
	if err != nil {
		return nil, nil, nil, err
	}

	dbCfg := *cfg
	dbCfg.Database.AutoMigrate = false
	d, cleanup, err := data.NewData(&dbCfg, log)
	if err != nil {
		return nil, nil, nil, err
	}
	return cfg, d, cleanup, nil
}

func newRootCommand() *cobra.Command {
	var configFlag string
	ctx := newCommandContext(&configFlag)

	rootCmd := &cobra.Command{
		Use:           "signagectl",
		Short:         "Signage backend operator tools",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "config.yaml", "Configuration file path")

	rootCmd.AddCommand(newMigrateCommand(ctx))
	rootCmd.AddCommand(newOrphansCommand(ctx))
	rootCmd.AddCommand(newTokenCommand(ctx))

	return rootCmd
}
