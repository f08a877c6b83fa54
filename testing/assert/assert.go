// Package assert wraps testify/assert with the teacher's calling
// convention seen throughout beacon-chain tests: assert.Equal(t, want,
// got, "optional message"), non-fatal on failure.
package assert

import (
	"fmt"
	"reflect"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
)

func Equal(t testing.TB, expected, actual interface{}, msg ...interface{}) {
	t.Helper()
	assert.Equal(t, expected, actual, msg...)
}

func NotEqual(t testing.TB, expected, actual interface{}, msg ...interface{}) {
	t.Helper()
	assert.NotEqual(t, expected, actual, msg...)
}

func NoError(t testing.TB, err error, msg ...interface{}) {
	t.Helper()
	assert.NoError(t, err, msg...)
}

func ErrorContains(t testing.TB, want string, err error, msg ...interface{}) {
	t.Helper()
	if err == nil {
		t.Errorf("expected error containing %q, got nil", want)
		return
	}
	assert.Contains(t, err.Error(), want, msg...)
}

func True(t testing.TB, ok bool, msg ...interface{}) {
	t.Helper()
	assert.True(t, ok, msg...)
}

func False(t testing.TB, ok bool, msg ...interface{}) {
	t.Helper()
	assert.False(t, ok, msg...)
}

// DeepEqual compares unexported fields and all nested values via
// go-cmp, printing a structural diff on mismatch rather than just the
// two %v dumps testify's ObjectsAreEqual would produce.
func DeepEqual(t testing.TB, expected, actual interface{}, msg ...interface{}) {
	t.Helper()
	if diff := cmp.Diff(expected, actual, cmp.Exporter(func(reflect.Type) bool { return true })); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s%s", diff, formatMsg(msg))
	}
}

func formatMsg(msg []interface{}) string {
	if len(msg) == 0 {
		return ""
	}
	return "\n" + fmt.Sprint(msg...)
}
