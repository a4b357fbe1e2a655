package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/jonathan/hiring-workflow/internal/types"
	"gopkg.in/yaml.v3"
)

// seedTarget receives seed records. Existing records are left untouched.
type seedTarget interface {
	GetUser(ctx context.Context, id uuid.UUID) (*types.User, error)
	GetJob(ctx context.Context, id uuid.UUID) (*types.Job, error)
	GetApplication(ctx context.Context, id uuid.UUID) (*types.Application, error)
	CreateUser(ctx context.Context, u types.User) error
	CreateJob(ctx context.Context, j types.Job) error
	CreateApplication(ctx context.Context, app *types.Application) error
}

type seedFile struct {
	Users []struct {
		ID       uuid.UUID  `yaml:"id"`
		Username string     `yaml:"username"`
		Email    string     `yaml:"email"`
		Role     types.Role `yaml:"role"`
	} `yaml:"users"`
	Jobs []struct {
		ID         uuid.UUID `yaml:"id"`
		Title      string    `yaml:"title"`
		Department string    `yaml:"department"`
	} `yaml:"jobs"`
	Applications []struct {
		ID          uuid.UUID `yaml:"id"`
		CandidateID uuid.UUID `yaml:"candidate_id"`
		JobID       uuid.UUID `yaml:"job_id"`
		ResumeFile  string    `yaml:"resume_file"`
	} `yaml:"applications"`
}

// seedCounts reports how many records a seed run created.
type seedCounts struct {
	Users, Jobs, Applications int
}

func seedFromFile(ctx context.Context, target seedTarget, path string) (seedCounts, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return seedCounts{}, fmt.Errorf("failed to read seed file %s: %w", path, err)
	}
	return seed(ctx, target, data, time.Now())
}

// seed loads users, jobs and applications from YAML. Records whose id already
// exists are skipped so a seed file can be applied on every start.
func seed(ctx context.Context, target seedTarget, data []byte, now time.Time) (seedCounts, error) {
	var file seedFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return seedCounts{}, fmt.Errorf("failed to parse seed file: %w", err)
	}

	var counts seedCounts
	for _, u := range file.Users {
		if u.ID == uuid.Nil || u.Username == "" {
			return counts, fmt.Errorf("seed user needs id and username")
		}
		if !u.Role.Valid() {
			return counts, fmt.Errorf("seed user %s has unknown role %q", u.Username, u.Role)
		}
		existing, err := target.GetUser(ctx, u.ID)
		if err != nil {
			return counts, err
		}
		if existing != nil {
			continue
		}
		if err := target.CreateUser(ctx, types.User{ID: u.ID, Username: u.Username, Email: u.Email, Role: u.Role}); err != nil {
			return counts, fmt.Errorf("failed to seed user %s: %w", u.Username, err)
		}
		counts.Users++
	}

	for _, j := range file.Jobs {
		if j.ID == uuid.Nil || j.Title == "" {
			return counts, fmt.Errorf("seed job needs id and title")
		}
		existing, err := target.GetJob(ctx, j.ID)
		if err != nil {
			return counts, err
		}
		if existing != nil {
			continue
		}
		if err := target.CreateJob(ctx, types.Job{ID: j.ID, Title: j.Title, Department: j.Department}); err != nil {
			return counts, fmt.Errorf("failed to seed job %s: %w", j.Title, err)
		}
		counts.Jobs++
	}

	for _, a := range file.Applications {
		if a.ID == uuid.Nil || a.CandidateID == uuid.Nil || a.JobID == uuid.Nil {
			return counts, fmt.Errorf("seed application needs id, candidate_id and job_id")
		}
		existing, err := target.GetApplication(ctx, a.ID)
		if err != nil {
			return counts, err
		}
		if existing != nil {
			continue
		}
		app := types.NewApplication(a.ID, a.CandidateID, a.JobID, a.ResumeFile, now)
		if err := target.CreateApplication(ctx, app); err != nil {
			return counts, fmt.Errorf("failed to seed application %s: %w", a.ID, err)
		}
		counts.Applications++
	}
	return counts, nil
}
