package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/sirupsen/logrus"
)

type PostgresStore struct {
	db     *sql.DB
	logger *logrus.Logger
}

// OpenPostgres connects with a lib/pq DSN and waits up to attempts times
// for the database to answer.
func OpenPostgres(ctx context.Context, dsn string, attempts int, logger *logrus.Logger) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	for i := 0; ; i++ {
		err = db.PingContext(ctx)
		if err == nil {
			logger.Info("Database connection established")
			break
		}
		if i+1 >= attempts {
			db.Close()
			return nil, fmt.Errorf("ping database: %w", err)
		}
		logger.WithField("attempt", i+1).Info("Waiting for database...")
		select {
		case <-ctx.Done():
			db.Close()
			return nil, ctx.Err()
		case <-time.After(2 * time.Second):
		}
	}

	return NewPostgresStore(db, logger), nil
}

func NewPostgresStore(db *sql.DB, logger *logrus.Logger) *PostgresStore {
	return &PostgresStore{db: db, logger: logger}
}

func (s *PostgresStore) CreateTables(ctx context.Context) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS xconnect_orders (
			id UUID PRIMARY KEY,
			name VARCHAR(255) NOT NULL UNIQUE,
			archive_name VARCHAR(255) NOT NULL,
			source_language VARCHAR(35) NOT NULL,
			target_languages TEXT[] NOT NULL,
			reference TEXT NOT NULL,
			client_id VARCHAR(255) NOT NULL,
			files JSONB NOT NULL,
			request_date TIMESTAMPTZ NOT NULL,
			due_date TIMESTAMPTZ NOT NULL,
			sent_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS xconnect_deliveries (
			id UUID PRIMARY KEY,
			archive_name VARCHAR(255) NOT NULL UNIQUE,
			delivery_id VARCHAR(255) NOT NULL,
			reference TEXT NOT NULL,
			status VARCHAR(50) NOT NULL,
			issued_by VARCHAR(255) NOT NULL,
			delivery_date TIMESTAMPTZ,
			file_count INTEGER NOT NULL,
			output_dir TEXT NOT NULL,
			received_at TIMESTAMPTZ NOT NULL,
			processed_at TIMESTAMPTZ
		)`,
		`CREATE INDEX IF NOT EXISTS idx_xconnect_orders_reference ON xconnect_orders(reference)`,
		`CREATE INDEX IF NOT EXISTS idx_xconnect_deliveries_reference ON xconnect_deliveries(reference)`,
	}

	for _, query := range queries {
		if _, err := s.db.ExecContext(ctx, query); err != nil {
			return err
		}
	}
	return nil
}

func (s *PostgresStore) RecordOrder(ctx context.Context, order *OrderRecord) error {
	if order.ID == "" {
		order.ID = uuid.New().String()
	}
	files, err := json.Marshal(order.Files)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO xconnect_orders (id, name, archive_name, source_language, target_languages,
			reference, client_id, files, request_date, due_date, sent_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err = s.db.ExecContext(ctx, query, order.ID, order.Name, order.ArchiveName, order.SourceLanguage,
		pq.Array(order.TargetLanguages), order.Reference, order.ClientID, string(files),
		order.RequestDate, order.DueDate, order.SentAt)
	if err != nil {
		return fmt.Errorf("record order %s: %w", order.Name, err)
	}

	s.logger.WithFields(logrus.Fields{
		"order_name": order.Name,
		"order_id":   order.ID,
	}).Debug("Order recorded")
	return nil
}

func (s *PostgresStore) RecordDelivery(ctx context.Context, delivery *DeliveryRecord) error {
	if delivery.ID == "" {
		delivery.ID = uuid.New().String()
	}

	query := `
		INSERT INTO xconnect_deliveries (id, archive_name, delivery_id, reference, status, issued_by,
			delivery_date, file_count, output_dir, received_at, processed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := s.db.ExecContext(ctx, query, delivery.ID, delivery.ArchiveName, delivery.DeliveryID,
		delivery.Reference, delivery.Status, delivery.IssuedBy, nullTime(delivery.DeliveryDate),
		delivery.FileCount, delivery.OutputDir, delivery.ReceivedAt, delivery.ProcessedAt)
	if err != nil {
		return fmt.Errorf("record delivery %s: %w", delivery.ArchiveName, err)
	}
	return nil
}

func (s *PostgresStore) MarkDeliveryProcessed(ctx context.Context, archiveName string, at time.Time) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE xconnect_deliveries SET processed_at = $1 WHERE archive_name = $2`, at, archiveName)
	if err != nil {
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

const orderColumns = `id, name, archive_name, source_language, target_languages, reference,
	client_id, files, request_date, due_date, sent_at`

func (s *PostgresStore) ListOrders(ctx context.Context) ([]OrderRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+orderColumns+` FROM xconnect_orders ORDER BY sent_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	orders := make([]OrderRecord, 0)
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, *order)
	}
	return orders, rows.Err()
}

func (s *PostgresStore) GetOrder(ctx context.Context, name string) (*OrderRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM xconnect_orders WHERE name = $1`, name)
	order, err := scanOrder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return order, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanOrder(row scanner) (*OrderRecord, error) {
	var order OrderRecord
	var files string
	err := row.Scan(&order.ID, &order.Name, &order.ArchiveName, &order.SourceLanguage,
		pq.Array(&order.TargetLanguages), &order.Reference, &order.ClientID, &files,
		&order.RequestDate, &order.DueDate, &order.SentAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(files), &order.Files); err != nil {
		return nil, fmt.Errorf("order %s files: %w", order.Name, err)
	}
	return &order, nil
}

func (s *PostgresStore) ListDeliveries(ctx context.Context) ([]DeliveryRecord, error) {
	query := `
		SELECT id, archive_name, delivery_id, reference, status, issued_by, delivery_date,
			file_count, output_dir, received_at, processed_at
		FROM xconnect_deliveries ORDER BY received_at DESC
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	deliveries := make([]DeliveryRecord, 0)
	for rows.Next() {
		var d DeliveryRecord
		var deliveryDate, processedAt sql.NullTime
		err := rows.Scan(&d.ID, &d.ArchiveName, &d.DeliveryID, &d.Reference, &d.Status, &d.IssuedBy,
			&deliveryDate, &d.FileCount, &d.OutputDir, &d.ReceivedAt, &processedAt)
		if err != nil {
			return nil, err
		}
		d.DeliveryDate = deliveryDate.Time
		if processedAt.Valid {
			at := processedAt.Time
			d.ProcessedAt = &at
		}
		deliveries = append(deliveries, d)
	}
	return deliveries, rows.Err()
}

func (s *PostgresStore) HasDelivery(ctx context.Context, archiveName string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM xconnect_deliveries WHERE archive_name = $1)`, archiveName).Scan(&exists)
	return exists, err
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}

// Open returns a PostgresStore with its tables in place when dsn is set and
// a MemoryStore otherwise. The returned func releases the store.
func Open(ctx context.Context, dsn string, attempts int, logger *logrus.Logger) (Store, func() error, error) {
	if dsn == "" {
		logger.Info("Database URL not configured - using in-memory ledger")
		return NewMemoryStore(), func() error { return nil }, nil
	}

	store, err := OpenPostgres(ctx, dsn, attempts, logger)
	if err != nil {
		return nil, nil, err
	}
	if err := store.CreateTables(ctx); err != nil {
		store.Close()
		return nil, nil, fmt.Errorf("create tables: %w", err)
	}
	return store, store.Close, nil
}
