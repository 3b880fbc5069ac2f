package sqlite

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mmynk/prepaidrecon/internal/models"
)

// AppendAuditEntry implements storage.AuditStore.
func (s *SQLiteStore) AppendAuditEntry(ctx context.Context, entry *models.AuditEntry) error {
	ensureID(&entry.ID)
	meta, err := json.Marshal(entry.Metadata)
	if err != nil {
		return fmt.Errorf("failed to encode audit metadata: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO audit_logs (id, user_id, action, resource, resource_id, metadata, timestamp)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.UserID, entry.Action, entry.Resource, entry.ResourceID, string(meta), toNanos(entry.Timestamp),
	)
	if err != nil {
		return fmt.Errorf("failed to append audit entry: %w", err)
	}
	return nil
}

// ListAuditEntries implements storage.AuditStore.
func (s *SQLiteStore) ListAuditEntries(ctx context.Context, resource, resourceID string) ([]*models.AuditEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, action, resource, resource_id, metadata, timestamp
		 FROM audit_logs WHERE resource = ? AND resource_id = ? ORDER BY seq`,
		resource, resourceID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit entries: %w", err)
	}
	defer rows.Close()

	var entries []*models.AuditEntry
	for rows.Next() {
		var (
			e    models.AuditEntry
			meta string
			ts   int64
		)
		if err := rows.Scan(&e.ID, &e.UserID, &e.Action, &e.Resource, &e.ResourceID, &meta, &ts); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		if err := json.Unmarshal([]byte(meta), &e.Metadata); err != nil {
			return nil, fmt.Errorf("failed to decode audit metadata: %w", err)
		}
		e.Timestamp = fromNanos(ts)
		entries = append(entries, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate audit entries: %w", err)
	}
	return entries, nil
}
