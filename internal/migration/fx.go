package migration

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/marketplace/internal/config"
	"github.com/smallbiznis/marketplace/internal/seed"
	dbpkg "github.com/smallbiznis/marketplace/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config, dbcfg dbpkg.Config, node *snowflake.Node, log *zap.Logger) error {
		log = log.Named("migration")
		if err := Apply(conn, dbcfg); err != nil {
			return err
		}
		log.Info("schema up to date", zap.String("type", dbcfg.Type))

		if !cfg.Bootstrap.SeedDefaultPlans {
			return nil
		}
		created, err := seed.EnsureDefaultPlans(context.Background(), conn, node)
		if err != nil {
			return err
		}
		if created > 0 {
			log.Info("default plans seeded", zap.Int("created", created))
		}
		return nil
	}),
)
