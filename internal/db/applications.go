package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jonathan/hiring-workflow/internal/types"
	"github.com/jonathan/hiring-workflow/internal/workflow"
)

// CreateApplication inserts an application and its stage rows.
func (db *DB) CreateApplication(ctx context.Context, app *types.Application) error {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx,
		`INSERT INTO applications (id, candidate_id, job_id, resume_file, current_stage, status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		app.ID, app.CandidateID, app.JobID, app.ResumeFile, app.CurrentStage, string(app.Status), app.CreatedAt, app.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create application: %w", err)
	}

	for _, st := range app.Stages {
		var feedback []byte
		if st.Feedback != nil {
			if feedback, err = json.Marshal(st.Feedback); err != nil {
				return fmt.Errorf("failed to marshal feedback: %w", err)
			}
		}
		_, err = tx.Exec(ctx,
			`INSERT INTO application_stages (application_id, stage_number, status, assigned_to, deadline, feedback, rejection_reason)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			app.ID, st.Number, string(st.Status), st.AssignedTo, st.Deadline, feedback, nullIfEmpty(st.RejectionReason),
		)
		if err != nil {
			return fmt.Errorf("failed to create stage %d: %w", st.Number, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit application: %w", err)
	}
	return nil
}

// GetApplication implements workflow.Applications.
func (db *DB) GetApplication(ctx context.Context, id uuid.UUID) (*types.Application, error) {
	var app types.Application
	var status string
	err := db.pool.QueryRow(ctx,
		`SELECT id, candidate_id, job_id, resume_file, current_stage, status, created_at, updated_at
		 FROM applications WHERE id = $1`, id,
	).Scan(&app.ID, &app.CandidateID, &app.JobID, &app.ResumeFile, &app.CurrentStage, &status, &app.CreatedAt, &app.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get application: %w", err)
	}
	app.Status = types.ApplicationStatus(status)

	rows, err := db.pool.Query(ctx,
		`SELECT stage_number, status, assigned_to, deadline, feedback, rejection_reason
		 FROM application_stages WHERE application_id = $1 ORDER BY stage_number`, id,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get stages: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var st types.StageState
		var stageStatus string
		var feedback []byte
		var reason *string
		if err := rows.Scan(&st.Number, &stageStatus, &st.AssignedTo, &st.Deadline, &feedback, &reason); err != nil {
			return nil, fmt.Errorf("failed to scan stage: %w", err)
		}
		st.Name = types.StageName(st.Number)
		st.Status = types.StageStatus(stageStatus)
		st.RejectionReason = derefString(reason)
		if len(feedback) > 0 {
			var fb types.StageFeedback
			if err := json.Unmarshal(feedback, &fb); err != nil {
				return nil, fmt.Errorf("failed to decode feedback for stage %d: %w", st.Number, err)
			}
			st.Feedback = &fb
		}
		app.Stages = append(app.Stages, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read stages: %w", err)
	}
	return &app, nil
}

// lockedApplication is the application row as seen under FOR UPDATE.
type lockedApplication struct {
	currentStage int
	status       types.ApplicationStatus
}

func (a lockedApplication) terminal() bool {
	return a.status == types.ApplicationStatusRejected || a.status == types.ApplicationStatusCompleted
}

// mutate locks the application row, runs fn and commits when fn reports a
// match. Every stage write goes through here, so writes to one application are
// serialized and fn sees committed state. Rejected and completed applications
// never match.
func (db *DB) mutate(ctx context.Context, appID uuid.UUID, at time.Time, fn func(tx pgx.Tx, app lockedApplication) (bool, error)) (bool, error) {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var app lockedApplication
	var status string
	err = tx.QueryRow(ctx,
		`SELECT current_stage, status FROM applications WHERE id = $1 FOR UPDATE`, appID,
	).Scan(&app.currentStage, &status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("failed to lock application: %w", err)
	}
	app.status = types.ApplicationStatus(status)
	if app.terminal() {
		return false, nil
	}

	ok, err := fn(tx, app)
	if err != nil || !ok {
		return false, err
	}

	if _, err := tx.Exec(ctx, `UPDATE applications SET updated_at = $2 WHERE id = $1`, appID, at); err != nil {
		return false, fmt.Errorf("failed to touch application: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("failed to commit: %w", err)
	}
	return true, nil
}

// AssignStage implements workflow.Applications.
func (db *DB) AssignStage(ctx context.Context, w workflow.StageAssignment) (bool, error) {
	return db.mutate(ctx, w.ApplicationID, w.At, func(tx pgx.Tx, app lockedApplication) (bool, error) {
		tag, err := tx.Exec(ctx,
			`UPDATE application_stages
			 SET status = 'assigned', assigned_to = $3, deadline = COALESCE($4, deadline)
			 WHERE application_id = $1 AND stage_number = $2
			   AND status = 'pending' AND assigned_to IS NULL`,
			w.ApplicationID, w.Stage, w.Assignee, w.Deadline,
		)
		if err != nil {
			return false, fmt.Errorf("failed to assign stage: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return false, nil
		}
		if app.status == types.ApplicationStatusPending {
			_, err = tx.Exec(ctx, `UPDATE applications SET status = 'in_progress' WHERE id = $1`, w.ApplicationID)
			if err != nil {
				return false, fmt.Errorf("failed to start application: %w", err)
			}
		}
		return true, nil
	})
}

// ReassignStage implements workflow.Applications.
func (db *DB) ReassignStage(ctx context.Context, w workflow.StageReassignment) (bool, error) {
	return db.mutate(ctx, w.ApplicationID, w.At, func(tx pgx.Tx, _ lockedApplication) (bool, error) {
		tag, err := tx.Exec(ctx,
			`UPDATE application_stages
			 SET status = 'assigned', assigned_to = $4
			 WHERE application_id = $1 AND stage_number = $2
			   AND assigned_to = $3 AND status IN ('assigned', 'in_progress')`,
			w.ApplicationID, w.Stage, w.From, w.To,
		)
		if err != nil {
			return false, fmt.Errorf("failed to reassign stage: %w", err)
		}
		return tag.RowsAffected() == 1, nil
	})
}

// PutFeedback implements workflow.Applications.
func (db *DB) PutFeedback(ctx context.Context, w workflow.FeedbackWrite) (bool, error) {
	doc, err := json.Marshal(w.Feedback)
	if err != nil {
		return false, fmt.Errorf("failed to marshal feedback: %w", err)
	}

	query := `UPDATE application_stages
		SET feedback = $3, status = 'completed'
		WHERE application_id = $1 AND stage_number = $2
		  AND status IN ('pending', 'assigned', 'in_progress', 'completed')
		  AND ($4::uuid IS NULL OR assigned_to = $4)`
	args := []any{w.ApplicationID, w.Stage, doc, w.Assignee}
	if w.PrevEditCount < 0 {
		query += ` AND feedback IS NULL`
	} else {
		query += ` AND (feedback->>'edit_count')::int = $5`
		args = append(args, w.PrevEditCount)
	}

	return db.mutate(ctx, w.ApplicationID, w.At, func(tx pgx.Tx, _ lockedApplication) (bool, error) {
		tag, err := tx.Exec(ctx, query, args...)
		if err != nil {
			return false, fmt.Errorf("failed to store feedback: %w", err)
		}
		return tag.RowsAffected() == 1, nil
	})
}

// SetStageStatus implements workflow.Applications.
func (db *DB) SetStageStatus(ctx context.Context, w workflow.StatusChange) (bool, error) {
	return db.mutate(ctx, w.ApplicationID, w.At, func(tx pgx.Tx, app lockedApplication) (bool, error) {
		if w.Current && app.currentStage != w.Stage {
			return false, nil
		}
		tag, err := tx.Exec(ctx,
			`UPDATE application_stages SET status = $4
			 WHERE application_id = $1 AND stage_number = $2 AND status = $3
			   AND ($5::uuid IS NULL OR assigned_to = $5)`,
			w.ApplicationID, w.Stage, string(w.From), string(w.To), w.Assignee,
		)
		if err != nil {
			return false, fmt.Errorf("failed to set stage status: %w", err)
		}
		return tag.RowsAffected() == 1, nil
	})
}

// ApproveStage implements workflow.Applications. Approving the last stage
// completes the application; any other stage moves current_stage forward.
func (db *DB) ApproveStage(ctx context.Context, appID uuid.UUID, stage int, at time.Time) (bool, error) {
	return db.mutate(ctx, appID, at, func(tx pgx.Tx, app lockedApplication) (bool, error) {
		if app.currentStage != stage {
			return false, nil
		}
		tag, err := tx.Exec(ctx,
			`UPDATE application_stages SET status = 'approved'
			 WHERE application_id = $1 AND stage_number = $2 AND status = 'forwarded'`,
			appID, stage,
		)
		if err != nil {
			return false, fmt.Errorf("failed to approve stage: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return false, nil
		}
		if stage < types.StageCount {
			_, err = tx.Exec(ctx, `UPDATE applications SET current_stage = $2 WHERE id = $1`, appID, stage+1)
		} else {
			_, err = tx.Exec(ctx, `UPDATE applications SET status = 'completed' WHERE id = $1`, appID)
		}
		if err != nil {
			return false, fmt.Errorf("failed to advance application: %w", err)
		}
		return true, nil
	})
}

// RejectStage implements workflow.Applications.
func (db *DB) RejectStage(ctx context.Context, appID uuid.UUID, stage int, reason string, at time.Time) (bool, error) {
	return db.mutate(ctx, appID, at, func(tx pgx.Tx, app lockedApplication) (bool, error) {
		if app.currentStage != stage {
			return false, nil
		}
		tag, err := tx.Exec(ctx,
			`UPDATE application_stages SET status = 'rejected', rejection_reason = $3
			 WHERE application_id = $1 AND stage_number = $2 AND status = 'forwarded'`,
			appID, stage, reason,
		)
		if err != nil {
			return false, fmt.Errorf("failed to reject stage: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return false, nil
		}
		if _, err := tx.Exec(ctx, `UPDATE applications SET status = 'rejected' WHERE id = $1`, appID); err != nil {
			return false, fmt.Errorf("failed to reject application: %w", err)
		}
		return true, nil
	})
}

// AdvanceStage implements workflow.Applications.
func (db *DB) AdvanceStage(ctx context.Context, appID uuid.UUID, from int, at time.Time) (bool, error) {
	return db.mutate(ctx, appID, at, func(tx pgx.Tx, app lockedApplication) (bool, error) {
		if app.currentStage != from || from >= types.StageCount {
			return false, nil
		}
		var completed bool
		err := tx.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM application_stages
			 WHERE application_id = $1 AND stage_number = $2 AND status = 'completed')`,
			appID, from,
		).Scan(&completed)
		if err != nil {
			return false, fmt.Errorf("failed to check stage: %w", err)
		}
		if !completed {
			return false, nil
		}
		if _, err := tx.Exec(ctx, `UPDATE applications SET current_stage = $2 WHERE id = $1`, appID, from+1); err != nil {
			return false, fmt.Errorf("failed to advance application: %w", err)
		}
		return true, nil
	})
}

// ScanFeedback implements workflow.Applications.
func (db *DB) ScanFeedback(ctx context.Context, fn func(workflow.FeedbackEntry) error) error {
	rows, err := db.pool.Query(ctx,
		`SELECT application_id, stage_number, feedback FROM application_stages WHERE feedback IS NOT NULL`,
	)
	if err != nil {
		return fmt.Errorf("failed to scan feedback: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var e workflow.FeedbackEntry
		if err := rows.Scan(&e.ApplicationID, &e.Stage, &e.Raw); err != nil {
			return fmt.Errorf("failed to read feedback row: %w", err)
		}
		if err := fn(e); err != nil {
			return err
		}
	}
	return rows.Err()
}

// ListDeadlines implements workflow.Applications.
func (db *DB) ListDeadlines(ctx context.Context, from, to time.Time) ([]workflow.DeadlineEntry, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT s.application_id, a.candidate_id, a.job_id, s.stage_number, s.assigned_to, s.deadline
		 FROM application_stages s
		 JOIN applications a ON a.id = s.application_id
		 WHERE s.status IN ('assigned', 'in_progress')
		   AND s.assigned_to IS NOT NULL
		   AND s.deadline BETWEEN $1 AND $2
		 ORDER BY s.deadline`,
		from, to,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list deadlines: %w", err)
	}
	defer rows.Close()

	var out []workflow.DeadlineEntry
	for rows.Next() {
		var e workflow.DeadlineEntry
		if err := rows.Scan(&e.ApplicationID, &e.CandidateID, &e.JobID, &e.Stage, &e.AssignedTo, &e.Deadline); err != nil {
			return nil, fmt.Errorf("failed to scan deadline: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
