package iauditrepo

import (
	"context"

	"github.com/quickserve/pos-order/internal/service/models/auditlog"
)

// IAuditRepository appends audit entries. Record is called inside the same
// transaction as the business mutation it documents; a failed append fails
// the whole operation.
type IAuditRepository interface {
	Record(ctx context.Context, entry auditlog.Entry) error
}
