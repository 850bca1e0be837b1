package billerr

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNotFoundWrapped(t *testing.T) {
	err := fmt.Errorf("failed to evaluate scenario: %w", NotFound("bill", "1001/2025-08"))

	assert.True(t, IsNotFound(err))
	assert.False(t, IsSkipped(err))
	assert.Contains(t, err.Error(), "bill 1001/2025-08 not found")
}

func TestComputationSkippedUnwraps(t *testing.T) {
	cause := NotFound("plan", 9)
	err := &ComputationSkipped{Candidate: "plan=9", Err: cause}

	assert.True(t, IsSkipped(err))
	assert.True(t, IsNotFound(err), "skip should expose its cause")
}

func TestInsufficientHistory(t *testing.T) {
	var err error = &InsufficientHistoryError{UserID: 7, Period: "2025-01"}

	assert.True(t, IsInsufficientHistory(err))
	assert.Contains(t, err.Error(), "weak baseline")
}
