//go:build wireinject
// +build wireinject

package di

import (
	"context"

	"github.com/google/wire"

	"savethespice-backend/internal/config"
)

// InitializeContainer builds the application from cfg. The cleanup releases what the
// providers acquired, in reverse order.
func InitializeContainer(ctx context.Context, cfg *config.Config) (*Container, func(), error) {
	wire.Build(SuperSet)
	return nil, nil, nil
}
