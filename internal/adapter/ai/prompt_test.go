package ai

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fairyhunter13/intake-qa-agent/internal/domain"
)

func Test_defaultSystemPrompt_LengthInstructionTracksBudget(t *testing.T) {
	t.Parallel()
	// The instruction must stay below the response clamp; a hardcoded number
	// here would drift the moment the budget changes.
	want := fmt.Sprintf("under %d characters", domain.SummaryBudget-10)
	assert.Contains(t, defaultSystemPrompt, want)
}
