package nsenter

import (
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"nsutils/namespace"
	"nsutils/proc"
)

const testPID = 12345

// 假的 /proc/12345/ns，命名空间文件用普通文件代替
func fakeNsRoot(t *testing.T, names ...string) string {
	t.Helper()
	root := t.TempDir()
	nsDir := filepath.Join(root, "12345", "ns")
	require.NoError(t, os.MkdirAll(nsDir, 0755))
	for _, name := range names {
		require.NoError(t, os.WriteFile(filepath.Join(nsDir, name), nil, 0644))
	}
	return root
}

type setnsCall struct {
	fd   int
	flag int
}

func TestOrdered(t *testing.T) {
	ordered := Ordered([]namespace.NsType{namespace.Mount, namespace.Net, namespace.User, namespace.Net})
	assert.Equal(t, []namespace.NsType{namespace.User, namespace.Net, namespace.Mount}, ordered)
	assert.Empty(t, Ordered(nil))
}

func TestNeedsReexec(t *testing.T) {
	assert.False(t, NeedsReexec([]namespace.NsType{namespace.Net, namespace.IPC, namespace.UTS, namespace.PID}))
	assert.True(t, NeedsReexec([]namespace.NsType{namespace.Net, namespace.Mount}))
	assert.True(t, NeedsReexec([]namespace.NsType{namespace.User}))
}

func TestJoin(t *testing.T) {
	root := fakeNsRoot(t, "net", "uts", "ipc")
	var calls []setnsCall
	j := NewJoiner(root)
	j.setns = func(fd int, flag int) error {
		calls = append(calls, setnsCall{fd: fd, flag: flag})
		return nil
	}

	err := j.Join(testPID, []namespace.NsType{namespace.Net, namespace.UTS})
	assert.NoError(t, err)
	require.Len(t, calls, 2)
	assert.Equal(t, unix.CLONE_NEWUTS, calls[0].flag)
	assert.Equal(t, unix.CLONE_NEWNET, calls[1].flag)
	for _, c := range calls {
		assert.True(t, c.fd > 2, "fd %d", c.fd)
	}
}

func TestJoinContinuesAfterFailure(t *testing.T) {
	// mnt 文件不存在，ipc 的 setns 失败，net 仍然会被进入
	root := fakeNsRoot(t, "net", "ipc")
	var flags []int
	j := NewJoiner(root)
	j.setns = func(fd int, flag int) error {
		flags = append(flags, flag)
		if flag == unix.CLONE_NEWIPC {
			return unix.EPERM
		}
		return nil
	}

	err := j.Join(testPID, []namespace.NsType{namespace.Mount, namespace.IPC, namespace.Net})
	require.Error(t, err)
	assert.Equal(t, []int{unix.CLONE_NEWIPC, unix.CLONE_NEWNET}, flags)

	merr, ok := err.(*multierror.Error)
	require.True(t, ok, "%T", err)
	assert.Len(t, merr.Errors, 2)
	assert.Contains(t, err.Error(), "open mnt namespace")
	assert.Contains(t, err.Error(), "setns ipc namespace")
}

func TestJoinNothing(t *testing.T) {
	j := NewJoiner(fakeNsRoot(t))
	j.setns = func(fd int, flag int) error {
		t.Fatal("setns should not be called")
		return nil
	}
	assert.NoError(t, j.Join(testPID, nil))
}

func TestJoinRealSetnsOnRegularFile(t *testing.T) {
	// 普通文件不是命名空间，内核返回 EINVAL
	root := fakeNsRoot(t, "uts")
	err := NewJoiner(root).Join(testPID, []namespace.NsType{namespace.UTS})
	assert.Error(t, err)
}

func TestJoinVerifiedOnJoiningThread(t *testing.T) {
	if os.Geteuid() != 0 {
		t.Skip("requires root")
	}
	unshare, err := exec.LookPath("unshare")
	if err != nil {
		t.Skip("no unshare binary")
	}
	netOnly := []namespace.NsType{namespace.Net}

	cmd := exec.Command(unshare, "-n", "sleep", "30")
	require.NoError(t, cmd.Start())
	defer func() {
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
	}()
	pid := cmd.Process.Pid

	self, err := (&namespace.Resolver{Filter: netOnly}).Resolve(proc.NsDir("/proc", 0))
	require.NoError(t, err)
	selfNet := namespace.ByType(self)[namespace.Net]

	// 等待 unshare 创建新的网络命名空间并 exec sleep
	var targetNet uint64
	require.Eventually(t, func() bool {
		ms, err := (&namespace.Resolver{Filter: netOnly}).Resolve(proc.NsDir("/proc", pid))
		if err != nil {
			return false
		}
		id := namespace.ByType(ms)[namespace.Net]
		if id == 0 || id == selfNet {
			return false
		}
		targetNet = id
		return true
	}, 5*time.Second, 20*time.Millisecond)
	expected := map[namespace.NsType]uint64{namespace.Net: targetNet}

	type result struct {
		tid            int
		joinErr        error
		readErr        error
		joined, missed []namespace.NsType
	}
	done := make(chan result, 1)
	go func() {
		// 线程已进入其他命名空间，不解锁，goroutine 退出时线程随之销毁
		runtime.LockOSThread()
		r := result{tid: unix.Gettid()}
		r.joinErr = NewJoiner("/proc").Join(pid, netOnly)
		current, err := Current("/proc", netOnly)
		r.readErr = err
		r.joined, r.missed = Verify(expected, current, netOnly)
		done <- r
	}()
	r := <-done

	require.NoError(t, r.joinErr)
	require.NoError(t, r.readErr)
	assert.Equal(t, netOnly, r.joined)
	assert.Empty(t, r.missed)

	if r.tid != os.Getpid() {
		// 其他线程进入后，/proc/self 仍显示主线程原来的命名空间
		mainNs, err := (&namespace.Resolver{Filter: netOnly}).Resolve(proc.NsDir("/proc", 0))
		require.NoError(t, err)
		assert.Equal(t, selfNet, namespace.ByType(mainNs)[namespace.Net])
	}
}

func TestCurrentReadsThreadSelf(t *testing.T) {
	root := t.TempDir()
	nsDir := filepath.Join(root, "thread-self", "ns")
	require.NoError(t, os.MkdirAll(nsDir, 0755))
	require.NoError(t, os.Symlink("net:[4026532205]", filepath.Join(nsDir, "net")))
	selfDir := filepath.Join(root, "self", "ns")
	require.NoError(t, os.MkdirAll(selfDir, 0755))
	require.NoError(t, os.Symlink("net:[4026531833]", filepath.Join(selfDir, "net")))

	current, err := Current(root, []namespace.NsType{namespace.Net})
	require.NoError(t, err)
	assert.Equal(t, []namespace.Membership{{ID: 4026532205, Type: namespace.Net}}, current)
}
