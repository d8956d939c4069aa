package audit

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/noah-isme/backend-pos/internal/pgstore"
)

// Repo implements Store on Postgres.
type Repo struct {
	db pgstore.DBTX
}

var _ Store = (*Repo)(nil)

// NewRepo builds a Repo.
func NewRepo(db pgstore.DBTX) *Repo {
	return &Repo{db: db}
}

// InsertAuditLog appends one entry.
func (r *Repo) InsertAuditLog(ctx context.Context, e Entry) error {
	var metadata any
	if len(e.Metadata) > 0 {
		metadata = []byte(e.Metadata)
	}
	_, err := r.db.Exec(ctx, `
		INSERT INTO audit_logs (tenant_id, actor_kind, operator, action, resource_type, resource_id,
			method, path, route, status, ip, user_agent, request_id, metadata)
		VALUES ($1, $2, NULLIF($3, ''), $4, $5, NULLIF($6, ''), $7, $8, NULLIF($9, ''), $10,
			NULLIF($11, ''), NULLIF($12, ''), NULLIF($13, ''), $14::jsonb)`,
		e.TenantID, e.ActorKind, e.Operator, e.Action, e.ResourceType, e.ResourceID,
		e.Method, e.Path, e.Route, e.Status, e.IP, e.UserAgent, e.RequestID, metadata)
	if err != nil {
		return fmt.Errorf("insert audit log: %w", err)
	}
	return nil
}

// ListAuditLogs pages through a tenant's entries, newest first.
func (r *Repo) ListAuditLogs(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]Entry, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, actor_kind, COALESCE(operator, ''), action, resource_type, COALESCE(resource_id, ''),
			method, path, COALESCE(route, ''), status, COALESCE(ip, ''), COALESCE(user_agent, ''),
			COALESCE(request_id, ''), metadata, created_at
		FROM audit_logs
		WHERE tenant_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3`, tenantID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list audit logs: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (Entry, error) {
		e := Entry{TenantID: tenantID}
		var metadata []byte
		err := row.Scan(&e.ID, &e.ActorKind, &e.Operator, &e.Action, &e.ResourceType, &e.ResourceID,
			&e.Method, &e.Path, &e.Route, &e.Status, &e.IP, &e.UserAgent, &e.RequestID, &metadata, &e.CreatedAt)
		e.Metadata = metadata
		return e, err
	})
}
