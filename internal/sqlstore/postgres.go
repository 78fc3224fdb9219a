package sqlstore

import (
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"

	"github.com/ministryofjustice/hmpps-change-someones-cell-sub000/internal/domain"
)

// openPostgres opens the shared PostgreSQL reference dataset.
func openPostgres(cfg domain.UpstreamConfig) (*sql.DB, error) {
	db, err := sql.Open("postgres", postgresDSN(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping postgres database %s: %w", cfg.PostgresHost, err)
	}
	return db, nil
}

func postgresDSN(cfg domain.UpstreamConfig) string {
	host := cfg.PostgresHost
	if host == "" {
		host = "localhost"
	}
	port := cfg.PostgresPort
	if port == 0 {
		port = 5432
	}
	dbname := cfg.PostgresDB
	if dbname == "" {
		dbname = "cellmove"
	}
	sslmode := cfg.PostgresSSLMode
	if sslmode == "" {
		sslmode = "disable"
	}

	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s application_name=cellmove",
		host, port, cfg.PostgresUser, cfg.PostgresPassword, dbname, sslmode)
}
