package migration

import (
	"io/fs"
	"strings"
	"testing"

	dbpkg "github.com/smallbiznis/marketplace/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddedMigrationsArePaired(t *testing.T) {
	entries, err := fs.ReadDir(embeddedMigrations, migrationsDir)
	require.NoError(t, err)
	require.NotEmpty(t, entries)

	ups := map[string]bool{}
	downs := map[string]bool{}
	for _, e := range entries {
		name := e.Name()
		switch {
		case strings.HasSuffix(name, ".up.sql"):
			ups[strings.TrimSuffix(name, ".up.sql")] = true
		case strings.HasSuffix(name, ".down.sql"):
			downs[strings.TrimSuffix(name, ".down.sql")] = true
		}
	}
	assert.Equal(t, ups, downs)

	src, err := Source()
	require.NoError(t, err)
	first, err := src.First()
	require.NoError(t, err)
	assert.Equal(t, uint(1), first)
}

func TestApplyAutoMigratesNonPostgres(t *testing.T) {
	conn, err := dbpkg.NewTest()
	require.NoError(t, err)

	require.NoError(t, Apply(conn, dbpkg.Config{Type: "sqlite"}))
	for _, table := range []string{"teams", "team_members", "plans", "subscriptions", "team_invitations", "verification_requests"} {
		assert.True(t, conn.Migrator().HasTable(table), table)
	}
	assert.True(t, conn.Migrator().HasIndex("subscriptions", "ux_subscriptions_live_team"))
	assert.True(t, conn.Migrator().HasIndex("verification_requests", "ux_verification_requests_open_team"))

	// Re-applying is a no-op.
	require.NoError(t, Apply(conn, dbpkg.Config{Type: "sqlite"}))
}

func TestInitMigrationGuardsOpenVerifications(t *testing.T) {
	raw, err := fs.ReadFile(embeddedMigrations, migrationsDir+"/000001_init.up.sql")
	require.NoError(t, err)
	assert.Contains(t, string(raw), "ux_verification_requests_open_team")
}
