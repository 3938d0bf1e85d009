package store

import (
	"context"
	"errors"

	"github.com/farxc/envelopa-auditoria/internal/audit"
	"github.com/farxc/envelopa-auditoria/internal/audit/aggregate"
	"github.com/farxc/envelopa-auditoria/internal/audit/models"
	"github.com/farxc/envelopa-auditoria/internal/forensics"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

var ErrNotFound = errors.New("record not found")

// Queryer is satisfied by both *sqlx.DB and *sqlx.Tx.
type Queryer interface {
	sqlx.ExtContext
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
}

type Storage struct {
	Rows interface {
		FetchByID(ctx context.Context, table string, id any) (models.Row, error)
		FetchAllByForeignKey(ctx context.Context, table, column string, id any) ([]models.Row, error)
	}

	Lifecycle interface {
		aggregate.Sources
	}

	Contracts interface {
		audit.ContractSource
	}

	Batch interface {
		audit.RelatedLoader
	}

	AuditRuns interface {
		audit.RunRecorder
		GetLatest(ctx context.Context, limit int) ([]AuditRun, error)
		GetByID(ctx context.Context, id uuid.UUID) (AuditRun, error)
		Findings(ctx context.Context, runID uuid.UUID) ([]AuditFinding, error)
	}

	Forensics interface {
		PaymentValues(ctx context.Context) ([]decimal.Decimal, error)
		InvoiceUsages(ctx context.Context) ([]forensics.InvoiceUsage, error)
		Orphans(ctx context.Context) (forensics.OrphanReport, error)
	}
}

func NewStorage(db *sqlx.DB) *Storage {
	rows := &RowStore{db: db}
	return &Storage{
		Rows:      rows,
		Lifecycle: &LifecycleStore{rows: rows},
		Contracts: &ContractStore{db: db},
		Batch:     &BatchStore{db: db},
		AuditRuns: &AuditRunStore{db: db},
		Forensics: &ForensicsStore{db: db},
	}
}
