package sqlerr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUsageError_Message(t *testing.T) {
	err := UsageArgs("SUBSTRING", []any{"abc", 1, nil}, "expects 2 or 3 arguments, got %d", 3)
	err.Scope = []string{"UPDATE users", "SELECT orders"}

	assert.Equal(t,
		`usage error: UPDATE users > SELECT orders: SUBSTRING: expects 2 or 3 arguments, got 3 (args: "abc", 1, NULL)`,
		err.Error())
	assert.ErrorIs(t, err, ErrUsage)
	assert.NotErrorIs(t, err, ErrResolution)
}

func TestResolutionError_Chain(t *testing.T) {
	err := Cyclic([]string{"A", "B", "A"})

	assert.True(t, err.Cycle)
	assert.Contains(t, err.Error(), "A -> B -> A")
	assert.ErrorIs(t, err, ErrResolution)
}

func TestCapabilityError_Message(t *testing.T) {
	withMin := &CapabilityError{Construct: "window function", Dialect: "mysql", Version: "5.7.44", MinVersion: "8.0.2"}
	assert.Equal(t, "window function requires mysql >= 8.0.2 (rendering for 5.7.44)", withMin.Error())

	never := &CapabilityError{Construct: "IGNORE NULLS", Dialect: "postgres"}
	assert.Equal(t, "IGNORE NULLS is not supported by postgres", never.Error())
	assert.ErrorIs(t, never, ErrCapability)
}

func TestRecover_ConvertsTypedPanics(t *testing.T) {
	run := func(v any) (err error) {
		defer Recover(&err)
		panic(v)
	}

	err := run(Usage("Set", "statement is prepared"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUsage)

	err = run(Unresolved([]string{"x"}))
	assert.ErrorIs(t, err, ErrResolution)

	err = run(&CapabilityError{Construct: "RETURNING", Dialect: "mysql"})
	assert.ErrorIs(t, err, ErrCapability)
}

func TestRecover_RepanicsForeignValues(t *testing.T) {
	assert.PanicsWithValue(t, "boom", func() {
		var err error
		defer Recover(&err)
		panic("boom")
	})
}

func TestRecover_NoPanic(t *testing.T) {
	run := func() (err error) {
		defer Recover(&err)
		return nil
	}
	assert.NoError(t, run())
}

func TestWithScope(t *testing.T) {
	ue := Usage("Where", "aggregate not allowed")
	wrapped := fmt.Errorf("build: %w", ue)

	got := WithScope(wrapped, []string{"SELECT users"})
	assert.Same(t, wrapped, got)
	assert.Equal(t, []string{"SELECT users"}, ue.Scope)

	// An existing scope is kept.
	WithScope(ue, []string{"other"})
	assert.Equal(t, []string{"SELECT users"}, ue.Scope)

	plain := errors.New("plain")
	assert.Same(t, plain, WithScope(plain, []string{"x"}))
}
