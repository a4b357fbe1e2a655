package db

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jonathan/hiring-workflow/internal/types"
)

const assignmentColumns = `id, application_id, stage_number, assigned_to, assigned_by, assigned_at,
	status, deadline, notes, reassigned_from, reassignment_reason, completed_at`

// AppendAssignment implements workflow.AuditTrail.
func (db *DB) AppendAssignment(ctx context.Context, a *types.Assignment) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	_, err := db.pool.Exec(ctx,
		`INSERT INTO stage_assignments (`+assignmentColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		a.ID, a.ApplicationID, a.StageNumber, a.AssignedTo, a.AssignedBy, a.AssignedAt,
		string(a.Status), a.Deadline, a.Notes, a.ReassignedFrom, a.ReassignmentReason, a.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to append assignment: %w", err)
	}
	return nil
}

// UpdateAssignmentStatus implements workflow.AuditTrail.
func (db *DB) UpdateAssignmentStatus(ctx context.Context, appID uuid.UUID, stage int, assignee uuid.UUID, status types.AssignmentStatus, at time.Time) error {
	var completedAt *time.Time
	if status == types.AssignmentStatusCompleted {
		completedAt = timePtr(at)
	}
	_, err := db.pool.Exec(ctx,
		`UPDATE stage_assignments
		 SET status = $4, completed_at = COALESCE($5, completed_at)
		 WHERE id = (
		     SELECT id FROM stage_assignments
		     WHERE application_id = $1 AND stage_number = $2 AND assigned_to = $3 AND status <> 'completed'
		     ORDER BY assigned_at DESC
		     LIMIT 1
		 )`,
		appID, stage, assignee, string(status), completedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update assignment status: %w", err)
	}
	return nil
}

// ListByApplication implements workflow.AuditTrail, oldest first.
func (db *DB) ListByApplication(ctx context.Context, appID uuid.UUID) ([]types.Assignment, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT `+assignmentColumns+` FROM stage_assignments
		 WHERE application_id = $1 ORDER BY assigned_at ASC`, appID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list assignments: %w", err)
	}
	return scanAssignments(rows)
}

// ListByAssignee implements workflow.AuditTrail, newest first.
func (db *DB) ListByAssignee(ctx context.Context, userID uuid.UUID) ([]types.Assignment, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT `+assignmentColumns+` FROM stage_assignments
		 WHERE assigned_to = $1 ORDER BY assigned_at DESC`, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list assignments: %w", err)
	}
	return scanAssignments(rows)
}

// WasAssigned implements workflow.AuditTrail.
func (db *DB) WasAssigned(ctx context.Context, appID uuid.UUID, stage int, userID uuid.UUID) (bool, error) {
	var exists bool
	err := db.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM stage_assignments
		 WHERE application_id = $1 AND stage_number = $2 AND assigned_to = $3)`,
		appID, stage, userID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check assignment history: %w", err)
	}
	return exists, nil
}

func scanAssignments(rows pgx.Rows) ([]types.Assignment, error) {
	defer rows.Close()
	var out []types.Assignment
	for rows.Next() {
		var a types.Assignment
		var status string
		if err := rows.Scan(&a.ID, &a.ApplicationID, &a.StageNumber, &a.AssignedTo, &a.AssignedBy, &a.AssignedAt,
			&status, &a.Deadline, &a.Notes, &a.ReassignedFrom, &a.ReassignmentReason, &a.CompletedAt); err != nil {
			return nil, fmt.Errorf("failed to scan assignment: %w", err)
		}
		a.Status = types.AssignmentStatus(status)
		out = append(out, a)
	}
	return out, rows.Err()
}
