//go:build wireinject
// +build wireinject

// The build tag makes sure the stub is not built in the final build.

package injector

import (
	"github.com/google/wire"
)

func InitializeApp(path ConfigPath, verbose Verbose) (*App, error) {
	wire.Build(ProviderSet)
	return nil, nil
}
