package featuregate

import (
	"github.com/smallbiznis/marketplace/internal/config"
	"github.com/smallbiznis/marketplace/internal/featuregate/service"
	"go.uber.org/fx"
)

var Module = fx.Module("featuregate.service",
	fx.Provide(config.NewGateHintsHolder),
	fx.Provide(service.New),
)
