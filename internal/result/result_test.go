package result

import (
	"errors"
	"fmt"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOkAndErr(t *testing.T) {
	ok := Ok(42)
	assert.True(t, ok.IsOk())
	assert.False(t, ok.IsErr())
	assert.Equal(t, 42, ok.Value())
	assert.Nil(t, ok.Failure())

	bad := Err[int]("boom")
	assert.True(t, bad.IsErr())
	assert.Equal(t, "boom", bad.Err())
	assert.Equal(t, KindUnknown, bad.Kind())
}

func TestAccessorMisusePanics(t *testing.T) {
	assert.Panics(t, func() { Err[int]("boom").Value() })
	assert.Panics(t, func() { Ok(1).Err() })
}

func TestBindShortCircuits(t *testing.T) {
	calls := 0
	step := func(v int) Result[string] {
		calls++
		return Ok(strconv.Itoa(v))
	}

	out := Bind(Errf[int](KindRule, "first"), step)
	require.True(t, out.IsErr())
	assert.Equal(t, "first", out.Err())
	assert.Equal(t, KindRule, out.Kind())
	assert.Zero(t, calls)

	out = Bind(Ok(7), step)
	require.True(t, out.IsOk())
	assert.Equal(t, "7", out.Value())
	assert.Equal(t, 1, calls)
}

func TestThenRunsAtMostOneStepAfterFailure(t *testing.T) {
	var seen []string
	step := func(name string, fail bool) func(int) Result[int] {
		return func(v int) Result[int] {
			seen = append(seen, name)
			if fail {
				return Errf[int](KindRule, "%s failed", name)
			}
			return Ok(v + 1)
		}
	}

	out := Ok(0).
		Then(step("a", false)).
		Then(step("b", true)).
		Then(step("c", false))

	require.True(t, out.IsErr())
	assert.Equal(t, "b failed", out.Err())
	assert.Equal(t, []string{"a", "b"}, seen)
}

func TestMapRecoversPanics(t *testing.T) {
	out := Map(Ok(0), func(v int) int {
		panic("division by zero")
	})
	require.True(t, out.IsErr())
	assert.Equal(t, "division by zero", out.Err())
	assert.Equal(t, KindInvariant, out.Kind())

	out = Map(Ok(0), func(v int) int {
		panic(fmt.Errorf("wrapped %d", v))
	})
	assert.Equal(t, "wrapped 0", out.Err())

	doubled := Map(Ok(21), func(v int) int { return v * 2 })
	assert.Equal(t, 42, doubled.Value())
}

func TestFromErrorKeepsFailureKind(t *testing.T) {
	inner := &Failure{Kind: KindFetch, Message: "connection refused"}
	wrapped := fmt.Errorf("loading entity: %w", inner)

	out := FromError[int](KindUnknown, wrapped)
	assert.Equal(t, KindFetch, out.Kind())
	assert.Equal(t, "connection refused", out.Err())

	plain := FromError[int](KindFetch, errors.New("timeout"))
	assert.Equal(t, KindFetch, plain.Kind())
	assert.Equal(t, "timeout", plain.Err())
}

func TestUnwrap(t *testing.T) {
	v, err := Ok("a").Unwrap()
	assert.NoError(t, err)
	assert.Equal(t, "a", v)

	_, err = Errf[string](KindRule, "nope").Unwrap()
	var f *Failure
	require.ErrorAs(t, err, &f)
	assert.Equal(t, KindRule, f.Kind)
}

func TestCollect(t *testing.T) {
	all := Collect([]Result[int]{Ok(1), Ok(2)})
	assert.Equal(t, []int{1, 2}, all.Value())

	first := Collect([]Result[int]{Ok(1), Errf[int](KindStructural, "bad row 2"), Errf[int](KindStructural, "bad row 3")})
	assert.Equal(t, "bad row 2", first.Err())
}

func TestWithRuleDoesNotMutate(t *testing.T) {
	f := &Failure{Kind: KindRule, Message: "m"}
	tagged := f.WithRule("payment_ids_unique")
	assert.Empty(t, f.Rule)
	assert.Equal(t, "payment_ids_unique", tagged.Rule)
	assert.Equal(t, "rule", tagged.Kind.String())
}
