package seed

import (
	"context"
	"testing"

	"github.com/bwmarrin/snowflake"
	permissiondomain "github.com/smallbiznis/marketplace/internal/permission/domain"
	plandomain "github.com/smallbiznis/marketplace/internal/plan/domain"
	dbpkg "github.com/smallbiznis/marketplace/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureDefaultPlansIsIdempotent(t *testing.T) {
	conn, err := dbpkg.NewTest()
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&plandomain.Plan{}))
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	ctx := context.Background()

	created, err := EnsureDefaultPlans(ctx, conn, node)
	require.NoError(t, err)
	assert.Equal(t, len(DefaultPlanCodes()), created)

	created, err = EnsureDefaultPlans(ctx, conn, node)
	require.NoError(t, err)
	assert.Zero(t, created)

	var count int64
	require.NoError(t, conn.Model(&plandomain.Plan{}).Count(&count).Error)
	assert.Equal(t, int64(len(DefaultPlanCodes())), count)
}

func TestDefaultPlansAreValid(t *testing.T) {
	for _, def := range defaultPlans {
		t.Run(def.code, func(t *testing.T) {
			assert.True(t, def.businessType.Valid())
			for _, p := range def.permissions {
				assert.True(t, permissiondomain.IsValid(p), "unknown permission %s", p)
			}
			plan := plandomain.Plan{
				MaxConnections:   def.maxConnections,
				MaxInvites:       def.maxInvites,
				MaxProducts:      def.maxProducts,
				APICallsPerMonth: def.apiCallsPerMonth,
			}
			assert.NoError(t, plan.QuotaSource().Validate())
		})
	}
}
