// Package storage implements the local cache store: a SQLite mirror of
// server-owned entities, used to serve stale reads when the network is
// unavailable. The server copy is always authoritative; nothing written here
// flows back.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"altarfunds/internal/core"

	_ "modernc.org/sqlite"
)

type CacheStore struct {
	db *sql.DB
}

func NewCacheStore(dbPath string) (*CacheStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &CacheStore{db: db}, nil
}

func (s *CacheStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// PutTransaction overwrites any cached record with the same identifier.
// Last write wins; the replace also moves the record to the tail of the
// update order returned by GetAllTransactions.
func (s *CacheStore) PutTransaction(ctx context.Context, tx core.Transaction) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO transactions (id, category, amount_cents, tx_date, status, receipt)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		tx.ID, tx.Category, tx.Amount.Cents, tx.Date, string(tx.Status), tx.Receipt)
	if err != nil {
		return fmt.Errorf("put transaction: %w", err)
	}

	slog.DebugContext(ctx, "Transaction cached",
		"transaction_id", tx.ID,
		"status", string(tx.Status))
	return nil
}

// GetAllTransactions returns cached transactions in insertion/update order.
func (s *CacheStore) GetAllTransactions(ctx context.Context) ([]core.Transaction, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, category, amount_cents, tx_date, status, receipt FROM transactions ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("get transactions: %w", err)
	}
	defer rows.Close()

	var txs []core.Transaction
	for rows.Next() {
		var tx core.Transaction
		var status string
		if err := rows.Scan(&tx.ID, &tx.Category, &tx.Amount.Cents, &tx.Date, &status, &tx.Receipt); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		tx.Status = core.TransactionStatus(status)
		txs = append(txs, tx)
	}
	return txs, rows.Err()
}

// GetPendingTransactions returns cached transactions that have not reached a
// terminal status, for the verification sweeper.
func (s *CacheStore) GetPendingTransactions(ctx context.Context) ([]core.Transaction, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, category, amount_cents, tx_date, status, receipt FROM transactions
		 WHERE status = ? ORDER BY rowid`, string(core.StatusPending))
	if err != nil {
		return nil, fmt.Errorf("get pending transactions: %w", err)
	}
	defer rows.Close()

	var txs []core.Transaction
	for rows.Next() {
		var tx core.Transaction
		var status string
		if err := rows.Scan(&tx.ID, &tx.Category, &tx.Amount.Cents, &tx.Date, &status, &tx.Receipt); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		tx.Status = core.TransactionStatus(status)
		txs = append(txs, tx)
	}
	return txs, rows.Err()
}

// ReplaceAllTransactions supersedes the cached set wholesale. No merge, no
// conflict resolution: a successful refresh replaces everything.
func (s *CacheStore) ReplaceAllTransactions(ctx context.Context, txs []core.Transaction) error {
	dbTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace: %w", err)
	}
	defer dbTx.Rollback()

	if _, err := dbTx.ExecContext(ctx, `DELETE FROM transactions`); err != nil {
		return fmt.Errorf("clear transactions: %w", err)
	}
	for _, tx := range txs {
		if _, err := dbTx.ExecContext(ctx,
			`INSERT INTO transactions (id, category, amount_cents, tx_date, status, receipt)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			tx.ID, tx.Category, tx.Amount.Cents, tx.Date, string(tx.Status), tx.Receipt); err != nil {
			return fmt.Errorf("insert transaction %s: %w", tx.ID, err)
		}
	}
	if err := dbTx.Commit(); err != nil {
		return fmt.Errorf("commit replace: %w", err)
	}

	slog.InfoContext(ctx, "Transaction cache refreshed", "count", len(txs))
	return nil
}

// PutCategory overwrites a cached giving category.
func (s *CacheStore) PutCategory(ctx context.Context, c core.GivingCategory) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO categories (id, name, description) VALUES (?, ?, ?)`,
		c.ID, c.Name, c.Description)
	if err != nil {
		return fmt.Errorf("put category: %w", err)
	}
	return nil
}

// GetAllCategories returns cached categories in insertion/update order.
func (s *CacheStore) GetAllCategories(ctx context.Context) ([]core.GivingCategory, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, description FROM categories ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("get categories: %w", err)
	}
	defer rows.Close()

	var cats []core.GivingCategory
	for rows.Next() {
		var c core.GivingCategory
		if err := rows.Scan(&c.ID, &c.Name, &c.Description); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		cats = append(cats, c)
	}
	return cats, rows.Err()
}

// ReplaceAllCategories supersedes the cached category set wholesale.
func (s *CacheStore) ReplaceAllCategories(ctx context.Context, cats []core.GivingCategory) error {
	dbTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace: %w", err)
	}
	defer dbTx.Rollback()

	if _, err := dbTx.ExecContext(ctx, `DELETE FROM categories`); err != nil {
		return fmt.Errorf("clear categories: %w", err)
	}
	for _, c := range cats {
		if _, err := dbTx.ExecContext(ctx,
			`INSERT INTO categories (id, name, description) VALUES (?, ?, ?)`,
			c.ID, c.Name, c.Description); err != nil {
			return fmt.Errorf("insert category %d: %w", c.ID, err)
		}
	}
	return dbTx.Commit()
}

// PutChurch overwrites a cached church record.
func (s *CacheStore) PutChurch(ctx context.Context, c core.Church) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO churches (id, name, location) VALUES (?, ?, ?)`,
		c.ID, c.Name, c.Location)
	if err != nil {
		return fmt.Errorf("put church: %w", err)
	}
	return nil
}

// GetAllChurches returns cached churches in insertion/update order.
func (s *CacheStore) GetAllChurches(ctx context.Context) ([]core.Church, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, location FROM churches ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("get churches: %w", err)
	}
	defer rows.Close()

	var churches []core.Church
	for rows.Next() {
		var c core.Church
		if err := rows.Scan(&c.ID, &c.Name, &c.Location); err != nil {
			return nil, fmt.Errorf("scan church: %w", err)
		}
		churches = append(churches, c)
	}
	return churches, rows.Err()
}

// PutNotification overwrites a cached notification.
func (s *CacheStore) PutNotification(ctx context.Context, n core.Notification) error {
	read := 0
	if n.Read {
		read = 1
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO notifications (id, title, body, created_at, read)
		 VALUES (?, ?, ?, ?, ?)`,
		n.ID, n.Title, n.Body, n.CreatedAt, read)
	if err != nil {
		return fmt.Errorf("put notification: %w", err)
	}
	return nil
}

// GetAllNotifications returns cached notifications in insertion/update order.
func (s *CacheStore) GetAllNotifications(ctx context.Context) ([]core.Notification, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, body, created_at, read FROM notifications ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("get notifications: %w", err)
	}
	defer rows.Close()

	var ns []core.Notification
	for rows.Next() {
		var n core.Notification
		var read int
		if err := rows.Scan(&n.ID, &n.Title, &n.Body, &n.CreatedAt, &read); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		n.Read = read != 0
		ns = append(ns, n)
	}
	return ns, rows.Err()
}

// ReplaceAllNotifications supersedes the cached notification set wholesale.
func (s *CacheStore) ReplaceAllNotifications(ctx context.Context, ns []core.Notification) error {
	dbTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace: %w", err)
	}
	defer dbTx.Rollback()

	if _, err := dbTx.ExecContext(ctx, `DELETE FROM notifications`); err != nil {
		return fmt.Errorf("clear notifications: %w", err)
	}
	for _, n := range ns {
		read := 0
		if n.Read {
			read = 1
		}
		if _, err := dbTx.ExecContext(ctx,
			`INSERT INTO notifications (id, title, body, created_at, read)
			 VALUES (?, ?, ?, ?, ?)`,
			n.ID, n.Title, n.Body, n.CreatedAt, read); err != nil {
			return fmt.Errorf("insert notification %d: %w", n.ID, err)
		}
	}
	return dbTx.Commit()
}
