package migration

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"
	invitationdomain "github.com/smallbiznis/marketplace/internal/invitation/domain"
	plandomain "github.com/smallbiznis/marketplace/internal/plan/domain"
	subscriptiondomain "github.com/smallbiznis/marketplace/internal/subscription/domain"
	teamdomain "github.com/smallbiznis/marketplace/internal/team/domain"
	verificationdomain "github.com/smallbiznis/marketplace/internal/verification/domain"
	dbpkg "github.com/smallbiznis/marketplace/pkg/db"
	"gorm.io/gorm"
)

const migrationsDir = "migrations"

//go:embed migrations/*.sql
var embeddedMigrations embed.FS

// Models lists every table owned by the marketplace, in dependency order.
func Models() []any {
	return []any{
		&teamdomain.Team{},
		&teamdomain.TeamMember{},
		&plandomain.Plan{},
		&subscriptiondomain.Subscription{},
		&invitationdomain.Invitation{},
		&verificationdomain.VerificationRequest{},
	}
}

// partialIndexes repeat the one-open-row guards of the SQL migrations for
// AutoMigrate dialects that understand partial indexes.
var partialIndexes = []string{
	`CREATE UNIQUE INDEX IF NOT EXISTS ux_subscriptions_live_team
		ON subscriptions (team_id)
		WHERE status IN ('trial', 'active', 'past_due')`,
	`CREATE UNIQUE INDEX IF NOT EXISTS ux_verification_requests_open_team
		ON verification_requests (team_id)
		WHERE status IN ('Draft', 'UnderReview', 'NeedMoreInformation')`,
}

// Apply brings the schema up to date. Postgres runs the versioned SQL files.
// Other dialects use AutoMigrate; sqlite also gets the partial unique indexes,
// while mysql has none and relies on row locks alone.
func Apply(conn *gorm.DB, cfg dbpkg.Config) error {
	if cfg.IsPostgres() {
		return RunMigrations(cfg)
	}
	if err := conn.AutoMigrate(Models()...); err != nil {
		return err
	}
	if !cfg.IsSQLite() {
		return nil
	}
	for _, stmt := range partialIndexes {
		if err := conn.Exec(stmt).Error; err != nil {
			return fmt.Errorf("create partial index: %w", err)
		}
	}
	return nil
}

// RunMigrations opens a dedicated lib/pq connection so closing the migrator
// never touches the application pool.
func RunMigrations(cfg dbpkg.Config) error {
	sqlDB, err := sql.Open("postgres", dbpkg.PostgresDSN(cfg))
	if err != nil {
		return fmt.Errorf("open migration connection: %w", err)
	}

	src, err := Source()
	if err != nil {
		sqlDB.Close()
		return err
	}

	driver, err := postgres.WithInstance(sqlDB, &postgres.Config{})
	if err != nil {
		sqlDB.Close()
		return fmt.Errorf("create migration driver: %w", err)
	}

	migrator, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		sqlDB.Close()
		return fmt.Errorf("create migrator: %w", err)
	}
	defer migrator.Close()

	upErr := migrator.Up()
	if upErr != nil && !errors.Is(upErr, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", upErr)
	}
	return nil
}

// Source exposes the embedded SQL files to golang-migrate.
func Source() (source.Driver, error) {
	sub, err := fs.Sub(embeddedMigrations, migrationsDir)
	if err != nil {
		return nil, fmt.Errorf("open migrations: %w", err)
	}
	src, err := iofs.New(sub, ".")
	if err != nil {
		return nil, fmt.Errorf("create migration source: %w", err)
	}
	return src, nil
}
