package workflow

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorPredicates(t *testing.T) {
	nf := &NotFoundError{Resource: "application", ID: "42"}
	assert.Equal(t, "application not found: 42", nf.Error())
	assert.True(t, IsNotFound(fmt.Errorf("wrapped: %w", nf)))
	assert.False(t, IsForbidden(nf))

	assert.True(t, IsInvalidState(&InvalidStateError{Reason: "x"}))
	assert.True(t, IsForbidden(&ForbiddenError{Reason: "x"}))
	assert.True(t, IsValidation(&ValidationError{Message: "x"}))

	assert.Equal(t, "feedback not found", (&NotFoundError{Resource: "feedback"}).Error())
	assert.Equal(t, "rating: too high", (&ValidationError{Field: "rating", Message: "too high"}).Error())
}

func TestInvalidStage(t *testing.T) {
	err := invalidStage(9)
	assert.True(t, IsValidation(err))
	assert.Contains(t, err.Error(), "between 1 and 7")
}

func TestPendingConflict(t *testing.T) {
	err := pendingConflict([]StageConflict{
		{StageNumber: 2, StageName: "HR Telephonic Interview", Status: "assigned"},
		{StageNumber: 5, StageName: "BU Lead Round", Status: "completed"},
	})
	assert.Equal(t, "All selected stages must be in pending status. Invalid stages: Stage 2 (assigned), Stage 5 (completed)", err.Error())
}

func TestUniqueStages(t *testing.T) {
	assert.Equal(t, []int{3, 1, 2}, uniqueStages([]int{3, 1, 3, 2, 1}))
	assert.Empty(t, uniqueStages(nil))
}
