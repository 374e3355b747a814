package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"

	"github.com/broady/todoform/internal/config"
	"github.com/broady/todoform/internal/server"
)

type CLI struct {
	Serve   ServeCmd   `cmd:"" default:"1" help:"Serve the todo page."`
	Config  ConfigCmd  `cmd:"" help:"Print the effective configuration."`
	Version VersionCmd `cmd:"" help:"Print version information."`
}

// ConfigFlags are shared by commands that load configuration.
type ConfigFlags struct {
	ConfigFile      string `name:"config" short:"c" help:"YAML config file." type:"path" env:"TODOFORM_CONFIG"`
	Addr            string `help:"Listen address (overrides config)."`
	LogLevel        string `help:"Log level: debug, info, warn, error." enum:",debug,info,warn,error" default:""`
	LogFormat       string `help:"Log format: text or json." enum:",text,json" default:""`
	RequireNonEmpty bool   `help:"Reject empty titles and due dates (overrides config when set)."`
}

func (f *ConfigFlags) load() (*config.Config, error) {
	cfg, err := config.Load(f.ConfigFile)
	if err != nil {
		return nil, err
	}
	if f.Addr != "" {
		cfg.Addr = f.Addr
	}
	if f.LogLevel != "" {
		cfg.Log.Level = f.LogLevel
	}
	if f.LogFormat != "" {
		cfg.Log.Format = f.LogFormat
	}
	if f.RequireNonEmpty {
		cfg.Form.RequireNonEmpty = true
	}
	return cfg, cfg.Validate()
}

type ServeCmd struct {
	ConfigFlags `embed:""`
}

func (c *ServeCmd) Run() error {
	cfg, err := c.load()
	if err != nil {
		return err
	}
	logger, err := cfg.Log.NewLogger(os.Stderr)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return server.New(cfg, logger).ListenAndServe(ctx)
}

type ConfigCmd struct {
	ConfigFlags `embed:""`
}

func (c *ConfigCmd) Run() error {
	cfg, err := c.load()
	if err != nil {
		return err
	}
	return config.Write(os.Stdout, cfg)
}

type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	fmt.Println(Version())
	return nil
}

func main() {
	cli := &CLI{}
	ctx := kong.Parse(cli,
		kong.Name("todoform"),
		kong.Description("Single-page todo list server."),
		kong.UsageOnError(),
	)
	err := ctx.Run()
	ctx.FatalIfErrorf(err)
}
