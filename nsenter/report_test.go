package nsenter

import (
	"os"
	"testing"

	"github.com/hashicorp/go-multierror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nsutils/namespace"
)

func TestParseReport(t *testing.T) {
	assert.NoError(t, ParseReport(""))

	err := ParseReport("open:net:No such file or directory;setns:user:Operation not permitted")
	require.Error(t, err)
	merr, ok := err.(*multierror.Error)
	require.True(t, ok)
	require.Len(t, merr.Errors, 2)
	assert.Equal(t, "open net namespace: No such file or directory", merr.Errors[0].Error())
	assert.Equal(t, "setns user namespace: Operation not permitted", merr.Errors[1].Error())

	// 原因中的冒号保留
	err = ParseReport("setns:mnt:bad: value")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "setns mnt namespace: bad: value")

	for _, bad := range []string{"garbage", "mnt:Invalid argument"} {
		err = ParseReport(bad)
		require.Error(t, err, bad)
		assert.Contains(t, err.Error(), bad)
	}
}

func TestExpectedRoundTrip(t *testing.T) {
	expected := map[namespace.NsType]uint64{
		namespace.Mount: 4026531840,
		namespace.Net:   4026531992,
	}
	values := FormatExpected(expected)
	assert.Equal(t, []string{"mnt=4026531840", "net=4026531992"}, values)

	parsed, err := ParseExpected(values)
	require.NoError(t, err)
	assert.Equal(t, expected, parsed)

	for _, bad := range []string{"mnt", "cgroup=1", "net=abc"} {
		_, err := ParseExpected([]string{bad})
		assert.Error(t, err, bad)
	}
}

func TestVerify(t *testing.T) {
	expected := map[namespace.NsType]uint64{
		namespace.Mount: 4026531840,
		namespace.Net:   4026532999,
		namespace.UTS:   4026531838,
	}
	current := []namespace.Membership{
		{ID: 4026531840, Type: namespace.Mount},
		{ID: 4026531992, Type: namespace.Net},
		{ID: 4026531838, Type: namespace.UTS},
	}
	joined, missed := Verify(expected, current, []namespace.NsType{namespace.Net, namespace.Mount, namespace.UTS, namespace.IPC, namespace.PID})
	assert.Equal(t, []namespace.NsType{namespace.UTS, namespace.Mount}, joined)
	assert.Equal(t, []namespace.NsType{namespace.IPC, namespace.Net}, missed)
}

func TestConstructorNotRun(t *testing.T) {
	if os.Getenv(EnvPid) != "" {
		t.Skip("constructor environment set")
	}
	ran, report := ConstructorReport()
	assert.False(t, ran)
	assert.Empty(t, report)
}
