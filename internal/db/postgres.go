package db

import (
	"context"
	_ "embed"
	"fmt"
	"log"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rawblock/sanctions-screener/pkg/models"
)

// schemaSQL is compiled into the binary at build time.
// This ensures schema init works inside the Docker runtime image which
// does not copy internal/db/schema.sql into the final stage.
//
//go:embed schema.sql
var schemaSQL string

// PostgresStore persists screening verdicts for later review. The
// engine runs fully without it — persistence is an optional add-on
// enabled by DATABASE_URL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// Connect initializes the connection pool to PostgreSQL using pgx
func Connect(connStr string) (*PostgresStore, error) {
	pool, err := pgxpool.New(context.Background(), connStr)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %v", err)
	}

	if err := pool.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("ping failed: %v", err)
	}

	log.Println("[DB] connected to PostgreSQL for screening persistence")
	return &PostgresStore{pool: pool}, nil
}

// Close gracefully closes the connection pool
func (s *PostgresStore) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// InitSchema executes the embedded schema.sql DDL statements.
func (s *PostgresStore) InitSchema() error {
	_, err := s.pool.Exec(context.Background(), schemaSQL)
	if err != nil {
		return fmt.Errorf("failed to execute schema migrations: %v", err)
	}

	log.Println("[DB] screening schema initialized")
	return nil
}

// SaveScreeningResult persists an address screening verdict
func (s *PostgresStore) SaveScreeningResult(ctx context.Context, r *models.ScreeningResult, correlationID string) error {
	sanctionedHops := 0
	if r.PathAnalysis != nil {
		sanctionedHops = r.PathAnalysis.SanctionedNodesFound
	}

	sql := `
		INSERT INTO screening_results
			(address, risk_score, risk_level, direct_matches, sanctioned_hops, confidence, correlation_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7);
	`
	_, err := s.pool.Exec(ctx, sql,
		r.Address, r.RiskScore, string(r.RiskLevel),
		len(r.SanctionMatches), sanctionedHops, r.Confidence, correlationID)
	if err != nil {
		return fmt.Errorf("failed to insert screening result: %v", err)
	}
	return nil
}

// SaveTxScreeningResult persists a transaction screening verdict
func (s *PostgresStore) SaveTxScreeningResult(ctx context.Context, r *models.TxScreeningResult, correlationID string) error {
	hits := 0
	for _, ar := range r.AddressResults {
		if len(ar.SanctionMatches) > 0 {
			hits++
		}
	}

	sql := `
		INSERT INTO tx_screening_results
			(txid, direction, total_addresses, addresses_hit, risk_score, risk_level, confidence, correlation_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8);
	`
	_, err := s.pool.Exec(ctx, sql,
		r.TxHash, r.Direction, r.TotalAddresses, hits,
		r.OverallRiskScore, string(r.OverallRiskLevel), r.Confidence, correlationID)
	if err != nil {
		return fmt.Errorf("failed to insert tx screening result: %v", err)
	}
	return nil
}

// HighRiskHit is a persisted verdict at HIGH or CRITICAL
type HighRiskHit struct {
	Address       string `json:"address"`
	RiskScore     int    `json:"riskScore"`
	RiskLevel     string `json:"riskLevel"`
	DirectMatches int    `json:"directMatches"`
	Confidence    int    `json:"confidence"`
	ScreenedAt    string `json:"screenedAt"`
}

// RecentHighRisk returns the most recent HIGH/CRITICAL address verdicts
func (s *PostgresStore) RecentHighRisk(ctx context.Context, limit int) ([]HighRiskHit, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}

	sql := `
		SELECT address, risk_score, risk_level, direct_matches, confidence,
		       to_char(screened_at, 'YYYY-MM-DD"T"HH24:MI:SS"Z"')
		FROM screening_results
		WHERE risk_level IN ('HIGH', 'CRITICAL')
		ORDER BY screened_at DESC
		LIMIT $1
	`
	rows, err := s.pool.Query(ctx, sql, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	hits := make([]HighRiskHit, 0)
	for rows.Next() {
		var h HighRiskHit
		if err := rows.Scan(&h.Address, &h.RiskScore, &h.RiskLevel, &h.DirectMatches, &h.Confidence, &h.ScreenedAt); err != nil {
			return nil, err
		}
		hits = append(hits, h)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return hits, nil
}

// GetPool exposes the connection pool for other subsystems
func (s *PostgresStore) GetPool() *pgxpool.Pool {
	return s.pool
}
