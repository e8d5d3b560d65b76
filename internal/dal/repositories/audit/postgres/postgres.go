package postgresrepo

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/quickserve/pos-order/internal/dal/postgres"
	"github.com/quickserve/pos-order/internal/service/models/auditlog"
)

// AuditRepository implements the audit repository for PostgreSQL.
// It only appends: audit entries are immutable once written.
type AuditRepository struct {
	conn postgres.Querier
}

// NewAuditRepository creates a new audit repository.
func NewAuditRepository(conn postgres.Querier) *AuditRepository {
	return &AuditRepository{
		conn: conn,
	}
}

// Record appends one audit entry. Callers invoke it inside the same
// transaction as the business mutation, so a failed append rolls the whole
// operation back instead of silently losing the record.
func (r *AuditRepository) Record(ctx context.Context, entry auditlog.Entry) error {
	query, args, err := sq.Insert("audit_logs").
		Columns(
			"target_id",
			"action",
			"actor_id",
			"reason",
			"payload",
			"created_at",
		).
		Values(
			entry.TargetID,
			entry.Action.String(),
			entry.ActorID,
			entry.Reason,
			[]byte(entry.Payload),
			entry.CreatedAt,
		).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build audit log insert query: %w", err)
	}

	if _, err := r.conn.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to insert audit log: %w", err)
	}

	return nil
}
