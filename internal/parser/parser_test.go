package parser

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amitk432/Resolve25-sub002/pkg/types"
)

const validPlan = `
name: nightly-sync
strategy: parallel
context:
  session_id: sess-42
  environment:
    platform: linux
    cpu_cores: 4
    memory_mb: 8192
  policy:
    allow_authenticated: true
steps:
  - id: fetch
    type: http
    target: https://example.com/data
    priority: 3
    estimated_duration: 2s
    timeout: 30s
    requirements:
      memory_mb: 256
      network: true
    retry:
      max_attempts: 3
      backoff: exponential
      base_delay: 1s
      max_delay: 5s
  - id: store
    type: simulate
    dependencies: [fetch]
    priority: 8
`

func TestParseValidPlan(t *testing.T) {
	plan, err := Parse([]byte(validPlan))
	require.NoError(t, err)

	assert.Equal(t, "nightly-sync", plan.Name)
	assert.Equal(t, "parallel", plan.Strategy)
	require.NotNil(t, plan.Context)
	assert.Equal(t, "sess-42", plan.Context.SessionID)
	assert.Equal(t, 4, plan.Context.Environment.CPUCores)
	assert.True(t, plan.Context.Policy.AllowAuthenticated)

	steps, err := plan.Compile()
	require.NoError(t, err)
	require.Len(t, steps, 2)

	fetch := steps[0]
	assert.Equal(t, "fetch", fetch.ID)
	assert.Equal(t, "http", fetch.Type)
	assert.Equal(t, 2*time.Second, fetch.EstimatedDuration)
	assert.Equal(t, 30*time.Second, fetch.Timeout)
	assert.Equal(t, 256, fetch.Requirements.MemoryMB)
	assert.Equal(t, types.BackoffExponential, fetch.Retry.Backoff)
	assert.Equal(t, time.Second, fetch.Retry.BaseDelay)
	assert.Equal(t, 5*time.Second, fetch.Retry.MaxDelay)

	store := steps[1]
	assert.Equal(t, []string{"fetch"}, store.Dependencies)
	assert.Zero(t, store.Timeout)
}

func TestParseRejectsUnknownFields(t *testing.T) {
	_, err := Parse([]byte(`
steps:
  - id: a
    type: simulate
    typo_field: oops
`))

	var perr *ParseError
	require.ErrorAs(t, err, &perr)
	assert.Positive(t, perr.Line)
	assert.Contains(t, perr.Message, "typo_field")
}

func TestParseValidation(t *testing.T) {
	cases := map[string]struct {
		plan    string
		wantMsg string
	}{
		"no steps": {
			plan:    `name: empty`,
			wantMsg: "no steps",
		},
		"unknown strategy": {
			plan: `
strategy: turbo
steps:
  - {id: a, type: simulate}
`,
			wantMsg: "unknown strategy",
		},
		"missing step id": {
			plan: `
steps:
  - {type: simulate}
`,
			wantMsg: "has no id",
		},
		"duplicate step id": {
			plan: `
steps:
  - {id: a, type: simulate}
  - {id: a, type: simulate}
`,
			wantMsg: "duplicate step id",
		},
		"missing step type": {
			plan: `
steps:
  - {id: a}
`,
			wantMsg: "has no type",
		},
		"unknown backoff": {
			plan: `
steps:
  - id: a
    type: simulate
    retry: {max_attempts: 2, backoff: quadratic}
`,
			wantMsg: "unknown backoff",
		},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(tc.plan))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantMsg)
		})
	}
}

func TestCompileRejectsBadDurations(t *testing.T) {
	plan, err := Parse([]byte(`
steps:
  - id: a
    type: simulate
    timeout: soon
`))
	require.NoError(t, err)

	_, err = plan.Compile()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timeout")
}

func TestParseFileMissing(t *testing.T) {
	_, err := ParseFile("/nonexistent/plan.yaml")
	var perr *ParseError
	require.ErrorAs(t, err, &perr)
}
