package db

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rawblock/holdings-engine/pkg/models"
)

// schemaSQL is compiled into the binary at build time.
// This ensures schema init works inside the Docker runtime image which
// does not copy internal/db/schema.sql into the final stage.
//
//go:embed schema.sql
var schemaSQL string

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("not found")

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

	log.Println("Successfully connected to PostgreSQL for Holdings Engine")
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

	log.Println("Holdings Engine schema initialized")
	return nil
}

// SaveReport persists a full report document plus the denormalized wallet
// rows in one transaction. Re-saving the same report ID replaces both.
func (s *PostgresStore) SaveReport(ctx context.Context, report models.HoldingsReport) error {
	doc, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to marshal report: %v", err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	insertReportSQL := `
		INSERT INTO holdings_reports (id, target_address, generated_at, transfer_count, wallet_count, report)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE
		SET report = EXCLUDED.report, transfer_count = EXCLUDED.transfer_count, wallet_count = EXCLUDED.wallet_count;
	`
	_, err = tx.Exec(ctx, insertReportSQL,
		report.ID, report.TargetAddress, report.GeneratedAt,
		report.TransferCount, report.WalletCount, doc)
	if err != nil {
		return fmt.Errorf("failed to insert holdings_reports: %v", err)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM cluster_wallets WHERE report_id = $1`, report.ID); err != nil {
		return fmt.Errorf("failed to clear cluster_wallets: %v", err)
	}

	insertWalletSQL := `
		INSERT INTO cluster_wallets
		(report_id, address, score, confidence, heuristic_flags, balance, token_origin)
		VALUES ($1, $2, $3, $4, $5, $6, $7);
	`
	for _, w := range report.Wallets {
		_, err = tx.Exec(ctx, insertWalletSQL,
			report.ID,
			w.Address,
			w.Score,
			w.Confidence,
			int64(w.HeuristicFlags),
			w.Balance,
			w.TokenOrigin,
		)
		if err != nil {
			return fmt.Errorf("failed to insert cluster wallet: %v", err)
		}
	}

	return tx.Commit(ctx)
}

// GetReport loads one persisted report document by ID.
func (s *PostgresStore) GetReport(ctx context.Context, id string) (models.HoldingsReport, error) {
	var doc []byte
	err := s.pool.QueryRow(ctx,
		`SELECT report FROM holdings_reports WHERE id = $1`, id).Scan(&doc)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.HoldingsReport{}, ErrNotFound
	}
	if err != nil {
		return models.HoldingsReport{}, err
	}

	var report models.HoldingsReport
	if err := json.Unmarshal(doc, &report); err != nil {
		return models.HoldingsReport{}, fmt.Errorf("failed to unmarshal report %s: %v", id, err)
	}
	return report, nil
}

// ReportInfo is the listing row returned by ListReports (no document body).
type ReportInfo struct {
	ID            string `json:"id"`
	TargetAddress string `json:"targetAddress"`
	GeneratedAt   string `json:"generatedAt"`
	TransferCount int    `json:"transferCount"`
	WalletCount   int    `json:"walletCount"`
}

// ListReports returns a page of report headers, newest first, optionally
// filtered by target address.
func (s *PostgresStore) ListReports(ctx context.Context, target string, page, limit int) ([]ReportInfo, int, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	if page < 1 {
		page = 1
	}
	offset := (page - 1) * limit

	var totalCount int
	countSQL := `SELECT COUNT(*) FROM holdings_reports WHERE ($1 = '' OR target_address = $1)`
	if err := s.pool.QueryRow(ctx, countSQL, target).Scan(&totalCount); err != nil {
		return nil, 0, err
	}

	dataSQL := `
		SELECT id, target_address, generated_at::text, transfer_count, wallet_count
		FROM holdings_reports
		WHERE ($1 = '' OR target_address = $1)
		ORDER BY generated_at DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := s.pool.Query(ctx, dataSQL, target, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	reports := make([]ReportInfo, 0)
	for rows.Next() {
		var r ReportInfo
		if err := rows.Scan(&r.ID, &r.TargetAddress, &r.GeneratedAt, &r.TransferCount, &r.WalletCount); err != nil {
			return nil, 0, err
		}
		reports = append(reports, r)
	}
	if rows.Err() != nil {
		return nil, 0, rows.Err()
	}
	return reports, totalCount, nil
}

// GetWalletAppearances returns every report in which an address was admitted
// to the cluster, with its score and tier at the time. Cross-report recurrence
// of the same wallet is itself an attribution signal for analysts.
type WalletAppearance struct {
	ReportID      string   `json:"reportId"`
	TargetAddress string   `json:"targetAddress"`
	Score         int      `json:"score"`
	Confidence    string   `json:"confidence"`
	TokenOrigin   string   `json:"tokenOrigin"`
	Balance       *float64 `json:"balance"`
}

func (s *PostgresStore) GetWalletAppearances(ctx context.Context, address string) ([]WalletAppearance, error) {
	sql := `
		SELECT w.report_id, r.target_address, w.score, w.confidence, w.token_origin, w.balance
		FROM cluster_wallets w
		JOIN holdings_reports r ON r.id = w.report_id
		WHERE w.address = $1
		ORDER BY r.generated_at DESC;
	`
	rows, err := s.pool.Query(ctx, sql, address)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	appearances := make([]WalletAppearance, 0)
	for rows.Next() {
		var a WalletAppearance
		if err := rows.Scan(&a.ReportID, &a.TargetAddress, &a.Score, &a.Confidence, &a.TokenOrigin, &a.Balance); err != nil {
			return nil, err
		}
		appearances = append(appearances, a)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return appearances, nil
}

// SaveCase upserts case metadata for durable investigation storage.
func (s *PostgresStore) SaveCase(ctx context.Context, caseID, name, description, status string) error {
	sql := `
		INSERT INTO cases (case_id, name, description, status)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (case_id) DO UPDATE SET
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			status = EXCLUDED.status,
			updated_at = NOW();
	`
	_, err := s.pool.Exec(ctx, sql, caseID, name, description, status)
	return err
}

// SaveCaseAddress upserts a case-tagged address.
func (s *PostgresStore) SaveCaseAddress(ctx context.Context, caseID, address, label, role, notes, taggedBy string) error {
	sql := `
		WITH target AS (
			SELECT id FROM cases WHERE case_id = $1
		),
		updated AS (
			UPDATE case_addresses a
			SET
				label = $3,
				role = $4,
				notes = $5,
				tagged_by = $6,
				tagged_at = NOW()
			FROM target
			WHERE a.case_ref = target.id
				AND a.address = $2
			RETURNING a.id
		)
		INSERT INTO case_addresses
			(case_ref, address, label, role, notes, tagged_by, tagged_at)
		SELECT target.id, $2, $3, $4, $5, $6, NOW()
		FROM target
		WHERE NOT EXISTS (SELECT 1 FROM updated);
	`
	result, err := s.pool.Exec(ctx, sql, caseID, address, label, role, notes, taggedBy)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("case_id not found: %s", caseID)
	}
	return nil
}

type CaseSeed struct {
	CaseID  string
	Name    string
	Address string
	Role    string
	Label   string
}

// LoadActiveCaseSeeds loads active tagged addresses for warm-starting the
// in-memory case manager on process boot.
func (s *PostgresStore) LoadActiveCaseSeeds(ctx context.Context) ([]CaseSeed, error) {
	sql := `
		SELECT c.case_id, c.name, a.address, a.role, COALESCE(a.label, '')
		FROM cases c
		JOIN case_addresses a ON a.case_ref = c.id
		WHERE c.status = 'active';
	`
	rows, err := s.pool.Query(ctx, sql)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	seeds := make([]CaseSeed, 0)
	for rows.Next() {
		var seed CaseSeed
		if err := rows.Scan(&seed.CaseID, &seed.Name, &seed.Address, &seed.Role, &seed.Label); err != nil {
			return nil, err
		}
		seeds = append(seeds, seed)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return seeds, nil
}

// GetPool exposes the connection pool for auxiliary subsystems
func (s *PostgresStore) GetPool() *pgxpool.Pool {
	return s.pool
}
