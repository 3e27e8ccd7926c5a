package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/marketplace/internal/clock"
	"github.com/smallbiznis/marketplace/internal/config"
	"github.com/smallbiznis/marketplace/internal/migration"
	"github.com/smallbiznis/marketplace/internal/observability"
	"github.com/smallbiznis/marketplace/internal/server"
	"github.com/smallbiznis/marketplace/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,

		// Schema and seed plans must exist before the server starts serving.
		migration.Module,
		server.Module,
	)
	app.Run()
}

func RegisterSnowflake(cfg config.Config) (*snowflake.Node, error) {
	return snowflake.NewNode(cfg.SnowflakeNode)
}
