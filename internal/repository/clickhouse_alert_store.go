package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"Gavel/internal/domain/models"
	domrepo "Gavel/internal/domain/repository"
	pkgch "Gavel/pkg/clickhouse"
	applogger "Gavel/pkg/logger"
)

// CHAlertStore persists fraud alerts to ClickHouse for audit and offline
// analysis, outside the transactional store.
type CHAlertStore struct {
	db *sql.DB
	l  *applogger.Logger
	ch *pkgch.Client
}

func NewCHAlertStore(ch *pkgch.Client) *CHAlertStore {
	return &CHAlertStore{db: ch.DB(), ch: ch}
}

// SetLogger injects a structured logger.
func (s *CHAlertStore) SetLogger(l *applogger.Logger) { s.l = l }

// AlertSchema returns the idempotent DDL for the audit table.
func AlertSchema(database string) []string {
	return []string{
		fmt.Sprintf(`CREATE DATABASE IF NOT EXISTS %s`, database),
		fmt.Sprintf(`
        CREATE TABLE IF NOT EXISTS %s.fraud_alerts (
            id           String,
            subject_type LowCardinality(String),
            subject_id   String,
            score        UInt8,
            factors      String,
            severity     LowCardinality(String),
            action       LowCardinality(String),
            detector     LowCardinality(String),
            created_at   DateTime64(3)
        )
        ENGINE = MergeTree
        PARTITION BY toYYYYMM(created_at)
        ORDER BY (subject_type, created_at, id)
        `, database),
	}
}

// InitSchema ensures the audit database and table exist.
func (s *CHAlertStore) InitSchema(ctx context.Context, database string) error {
	return s.ch.InitSchema(ctx, AlertSchema(database))
}

func (s *CHAlertStore) StoreAlert(ctx context.Context, alert *models.FraudAlert) error {
	start := time.Now()
	factors, err := json.Marshal(alert.Factors)
	if err != nil {
		return fmt.Errorf("marshal factors: %w", err)
	}

	const q = `
        INSERT INTO fraud_alerts
            (id, subject_type, subject_id, score, factors, severity, action, detector, created_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
    `
	_, err = s.db.ExecContext(ctx, q,
		alert.ID,
		string(alert.SubjectType),
		alert.SubjectID,
		uint8(clampScore(alert.Score)),
		string(factors),
		string(alert.Severity),
		string(alert.Action),
		alert.Detector,
		alert.CreatedAt,
	)
	if err != nil {
		if s.l != nil {
			s.l.Error("clickhouse store_alert insert error",
				applogger.String("alert_id", alert.ID),
				applogger.String("detector", alert.Detector),
				applogger.Error(err),
			)
		}
		return fmt.Errorf("store alert: %w", err)
	}
	if s.l != nil {
		s.l.Debug("clickhouse store_alert ok",
			applogger.String("alert_id", alert.ID),
			applogger.Duration("duration_ms", time.Since(start)),
		)
	}
	return nil
}

func (s *CHAlertStore) Close() error {
	return s.ch.Close()
}

func clampScore(n int) int {
	if n < 0 {
		return 0
	}
	if n > 100 {
		return 100
	}
	return n
}

var _ domrepo.AlertSink = (*CHAlertStore)(nil)
