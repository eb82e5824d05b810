package harness

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func loadFixture(t *testing.T, name string) *Scenario {
	t.Helper()
	sc, err := LoadScenario(filepath.Join("testdata", "scenarios", name+".yaml"))
	require.NoError(t, err)
	return sc
}

func TestRun_Fixtures(t *testing.T) {
	paths, err := filepath.Glob("testdata/scenarios/*.yaml")
	require.NoError(t, err)

	for _, path := range paths {
		name := strings.TrimSuffix(filepath.Base(path), ".yaml")
		t.Run(name, func(t *testing.T) {
			sc := loadFixture(t, name)
			result, err := Run(sc)
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
			assert.Len(t, result.Steps, len(sc.Steps))
		})
	}
}

func TestRun_Deterministic(t *testing.T) {
	sc := loadFixture(t, "add_post")

	first, err := Run(sc)
	require.NoError(t, err)
	second, err := Run(sc)
	require.NoError(t, err)

	a, err := MarshalGolden(sc.Name, first)
	require.NoError(t, err)
	b, err := MarshalGolden(sc.Name, second)
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
	assert.Equal(t, first.Fingerprint, second.Fingerprint)
}

func TestRun_TraceShape(t *testing.T) {
	result, err := Run(loadFixture(t, "add_post"))
	require.NoError(t, err)

	assert.Equal(t, []string{
		"auth/login/pending",
		"auth/login/fulfilled",
		"posts/addNewPost/pending",
		"posts/addNewPost/fulfilled",
		"notifications/shown",
		"notifications/dismissed",
		"posts/addNewPost/pending",
		"posts/addNewPost/rejected",
	}, result.Types())

	for i, ev := range result.Trace {
		assert.Equal(t, int64(i+1), ev.Seq)
	}
	// The thunk's lifecycle shares one flow.
	assert.Equal(t, result.Trace[2].Flow, result.Trace[3].Flow)
	assert.NotEqual(t, result.Trace[0].Flow, result.Trace[2].Flow)
}

func TestRun_ReportsStepMismatch(t *testing.T) {
	sc, err := ParseScenario([]byte(`
name: wrong_phase
description: the feed fetch fails but the step expects success
responses:
  - {method: GET, path: /fakeApi/posts, error: boom}
steps:
  - do: fetchPosts
    expect: {phase: fulfilled}
`))
	require.NoError(t, err)

	result, err := Run(sc)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "steps[0] fetchPosts: expected phase fulfilled, got rejected (boom)", result.Errors[0])
}

func TestRun_ReportsBadArgs(t *testing.T) {
	sc, err := ParseScenario([]byte(`
name: bad_args
description: unknown argument keys are rejected
steps:
  - do: login
    args: {user: ann}
  - do: logout
`))
	require.NoError(t, err)

	result, err := Run(sc)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "steps[0] login: decode args")
	assert.Empty(t, result.Steps, "run stops at the failing step")
}

func TestRun_ReportsFailedAssertions(t *testing.T) {
	sc, err := ParseScenario([]byte(`
name: failing_assertions
description: every assertion here is wrong
responses:
  - {method: POST, path: /fakeApi/login}
steps:
  - do: login
    args: {username: ann}
assertions:
  - {type: trace_count, action: auth/login/fulfilled, count: 2}
  - {type: select, selector: currentUsername, expect: bob}
`))
	require.NoError(t, err)

	result, err := Run(sc)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 2)
	assert.Contains(t, result.Errors[0], "2 occurrences of auth/login/fulfilled")
	assert.Contains(t, result.Errors[1], `currentUsername() = "bob"`)
	assert.Contains(t, result.Errors[1], `Actual: "ann"`)
}

func TestRun_UnknownRouteRejects(t *testing.T) {
	sc, err := ParseScenario([]byte(`
name: no_routes
description: a thunk without a canned response is rejected
steps:
  - do: fetchUsers
    expect: {phase: rejected, error: no response for GET /fakeApi/users}
`))
	require.NoError(t, err)

	result, err := Run(sc)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}
