package namespace

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLinkTarget(t *testing.T) {
	ino, err := ParseLinkTarget("mnt:[4026531840]")
	assert.NoError(t, err)
	assert.Equal(t, uint64(4026531840), ino)

	ino, err = ParseLinkTarget("pid_for_children:[4026531836]")
	assert.NoError(t, err)
	assert.Equal(t, uint64(4026531836), ino)
}

func TestParseLinkTargetMalformed(t *testing.T) {
	for _, target := range []string{
		"",
		"mnt",
		"mnt:4026531840",
		"mnt:[4026531840",
		"mnt:4026531840]",
		":[4026531840]",
		"mnt:[]",
		"mnt:[abc]",
		"mnt:[+12]",
		"mnt:[-12]",
		"mnt:[12 ]",
		"MNT:[12]",
		"mnt:[99999999999999999999999]",
		"/proc/1/ns/mnt",
	} {
		_, err := ParseLinkTarget(target)
		assert.Error(t, err, "target %q", target)
		assert.True(t, errors.Is(err, ErrMalformedLink), "target %q", target)
	}
}

func TestParseLinkName(t *testing.T) {
	for _, name := range []string{"ipc", "mnt", "net", "pid", "user", "uts"} {
		nsType, ok := ParseLinkName(name)
		assert.True(t, ok, name)
		assert.Equal(t, name, nsType.String())
	}
	for _, name := range []string{"cgroup", "time", "pid_for_children", "mount", "network", ""} {
		_, ok := ParseLinkName(name)
		assert.False(t, ok, name)
	}
}

// 构造一个假的 ns 目录，links 为 链接名:链接目标
func fakeNsDir(t *testing.T, links map[string]string) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "ns")
	require.NoError(t, os.Mkdir(dir, 0755))
	for name, target := range links {
		require.NoError(t, os.Symlink(target, filepath.Join(dir, name)))
	}
	return dir
}

func TestResolve(t *testing.T) {
	dir := fakeNsDir(t, map[string]string{
		"mnt":              "mnt:[4026531840]",
		"net":              "net:[4026531992]",
		"cgroup":           "cgroup:[4026531835]",
		"pid_for_children": "pid:[4026531836]",
		"uts":              "uts:[bogus]",
	})
	// 普通文件即使名称匹配也不是链接
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ipc"), []byte("ipc:[4026531839]"), 0644))

	r := &Resolver{}
	memberships, err := r.Resolve(dir)
	require.NoError(t, err)
	assert.Equal(t, []Membership{
		{ID: 4026531840, Type: Mount},
		{ID: 4026531992, Type: Net},
	}, memberships)
}

func TestResolveFilter(t *testing.T) {
	dir := fakeNsDir(t, map[string]string{
		"mnt": "mnt:[4026531840]",
		"net": "net:[4026531992]",
		"pid": "pid:[4026531836]",
	})

	r := &Resolver{Filter: []NsType{PID}}
	memberships, err := r.Resolve(dir)
	require.NoError(t, err)
	assert.Equal(t, []Membership{{ID: 4026531836, Type: PID}}, memberships)
}

func TestResolveMissingDir(t *testing.T) {
	r := &Resolver{}
	memberships, err := r.Resolve(filepath.Join(t.TempDir(), "gone", "ns"))
	assert.Error(t, err)
	assert.Empty(t, memberships)
}

func TestResolveEmptyDir(t *testing.T) {
	r := &Resolver{}
	memberships, err := r.Resolve(fakeNsDir(t, nil))
	assert.NoError(t, err)
	assert.Empty(t, memberships)
}

func TestResolveSelf(t *testing.T) {
	if _, err := os.Stat("/proc/self/ns"); err != nil {
		t.Skip("no /proc/self/ns")
	}
	r := &Resolver{}
	memberships, err := r.Resolve("/proc/self/ns")
	require.NoError(t, err)
	byType := ByType(memberships)
	for _, nsType := range []NsType{Mount, Net, PID, UTS, IPC} {
		assert.NotZero(t, byType[nsType], "missing %s", nsType)
	}
}
