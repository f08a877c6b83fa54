// Package require wraps testify/require with the teacher's calling
// convention: require.NoError(t, err, "message") aborts the test on
// failure, unlike testing/assert's non-fatal variants.
package require

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func NoError(t testing.TB, err error, msg ...interface{}) {
	t.Helper()
	require.NoError(t, err, msg...)
}

func Equal(t testing.TB, expected, actual interface{}, msg ...interface{}) {
	t.Helper()
	require.Equal(t, expected, actual, msg...)
}

func NotNil(t testing.TB, obj interface{}, msg ...interface{}) {
	t.Helper()
	require.NotNil(t, obj, msg...)
}

func True(t testing.TB, ok bool, msg ...interface{}) {
	t.Helper()
	require.True(t, ok, msg...)
}

func ErrorIs(t testing.TB, err, target error, msg ...interface{}) {
	t.Helper()
	require.ErrorIs(t, err, target, msg...)
}
