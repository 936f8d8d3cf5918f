package injector

import (
	"github.com/google/wire"

	"github.com/zeusync/ecsgen/internal/codegen/generator"
	"github.com/zeusync/ecsgen/internal/config"
	"github.com/zeusync/ecsgen/internal/core/events"
	"github.com/zeusync/ecsgen/internal/core/events/bus"
	"github.com/zeusync/ecsgen/internal/core/observability/log"
)

// ConfigPath is the path of the generator config file. An empty path or a
// missing file selects the defaults.
type ConfigPath string

// Verbose forces debug logging.
type Verbose bool

var ProviderSet = wire.NewSet(
	ProvideConfig,
	ProvideLogger,
	events.New,
	generator.New,
	wire.Struct(new(App), "*"),
)

// App is everything a command needs.
type App struct {
	Config    *config.Config
	Log       log.Log
	Bus       bus.EventBus
	Generator *generator.Generator
}

func ProvideConfig(path ConfigPath) (*config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.LoadFile(string(path))
}

func ProvideLogger(cfg *config.Config, verbose Verbose) log.Log {
	level := cfg.LogLevel()
	if verbose {
		level = log.LevelDebug
	}
	return log.New(level)
}
