package nsenter

import (
	"os"
	"path/filepath"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"nsutils/namespace"
	"nsutils/proc"
)

// JoinOrder 进入命名空间的顺序，user 最先以便获得目标命名空间内的权限
var JoinOrder = []namespace.NsType{
	namespace.User,
	namespace.IPC,
	namespace.UTS,
	namespace.Net,
	namespace.PID,
	namespace.Mount,
}

// Ordered 按 JoinOrder 排列 types 并去重
func Ordered(types []namespace.NsType) []namespace.NsType {
	want := make(map[namespace.NsType]bool, len(types))
	for _, t := range types {
		want[t] = true
	}
	var ordered []namespace.NsType
	for _, t := range JoinOrder {
		if want[t] {
			ordered = append(ordered, t)
		}
	}
	return ordered
}

// NeedsReexec mnt、user 只能在单线程时进入，需要重新执行自身交给构造函数处理
func NeedsReexec(types []namespace.NsType) bool {
	for _, t := range types {
		if t == namespace.Mount || t == namespace.User {
			return true
		}
	}
	return false
}

// Joiner 在当前进程内进入目标进程的命名空间
type Joiner struct {
	ProcRoot string
	setns    func(fd int, nstype int) error
}

func NewJoiner(procRoot string) *Joiner {
	if procRoot == "" {
		procRoot = proc.DefaultRoot
	}
	return &Joiner{
		ProcRoot: procRoot,
		setns:    unix.Setns,
	}
}

type nsFile struct {
	nsType namespace.NsType
	file   *os.File
}

// Join 依次进入 pid（0 表示当前进程）的 types 命名空间。
// 单个命名空间打开或 setns 失败时记录日志并跳过，其余命名空间照常进入，全部失败原因合并返回。
// setns 作用于当前线程，调用前需 runtime.LockOSThread，且之后的 exec/fork 必须在同一线程上执行
func (j *Joiner) Join(pid int, types []namespace.NsType) error {
	var result *multierror.Error
	nsDir := proc.NsDir(j.ProcRoot, pid)

	// 先全部打开，进入部分命名空间后目标路径可能变化
	var files []nsFile
	for _, t := range Ordered(types) {
		path := filepath.Join(nsDir, t.String())
		f, err := os.Open(path)
		if err != nil {
			log.Errorf("打开命名空间文件 %s 异常 %v", path, err)
			result = multierror.Append(result, errors.Wrapf(err, "open %s namespace", t))
			continue
		}
		files = append(files, nsFile{nsType: t, file: f})
	}

	for _, nf := range files {
		fd := int(nf.file.Fd())
		if err := j.setns(fd, nf.nsType.CloneFlag()); err != nil {
			log.Errorf("setns on fd %d with nstype %s 异常 %v", fd, nf.nsType, err)
			result = multierror.Append(result, errors.Wrapf(err, "setns %s namespace", nf.nsType))
		} else {
			log.Debugf("已进入 %s 命名空间", nf.nsType)
		}
		if err := nf.file.Close(); err != nil {
			log.Debugf("关闭命名空间文件异常 %v", err)
		}
	}
	return result.ErrorOrNil()
}
