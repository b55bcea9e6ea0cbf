//go:build wireinject
// +build wireinject

package di

import (
	"context"

	"recall-backend/infrastructure/config"

	"github.com/google/wire"
)

// InitializeContainer builds the full application graph.
func InitializeContainer(ctx context.Context, cfg *config.Config) (*Container, error) {
	wire.Build(ProviderSet)
	return nil, nil
}
