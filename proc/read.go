package proc

import (
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/pkg/errors"
	"github.com/prometheus/procfs"
	log "github.com/sirupsen/logrus"
)

// ErrNoProcRoot 进程信息根目录不存在或不是目录
var ErrNoProcRoot = errors.New("could not read the process-information root")

// Stat 进程的基本属性
type Stat struct {
	PID       int
	ParentPID int
}

// CheckRoot 检查 root 是否为可读目录。扫描本身对此容错，调用方可据此终止
func CheckRoot(root string) error {
	info, err := os.Stat(root)
	if err != nil {
		return errors.Wrapf(ErrNoProcRoot, "%s: %v", root, err)
	}
	if !info.IsDir() {
		return errors.Wrapf(ErrNoProcRoot, "%s is not a directory", root)
	}
	return nil
}

// ListPIDs 列出 root 下全部数字命名的进程目录，按 PID 升序
func ListPIDs(root string) ([]int, error) {
	fs, err := procfs.NewFS(root)
	if err != nil {
		return nil, errors.Wrapf(ErrNoProcRoot, "%s: %v", root, err)
	}
	procs, err := fs.AllProcs()
	if err != nil {
		return nil, errors.Wrapf(err, "枚举进程目录 %s 异常", root)
	}

	pids := make([]int, 0, len(procs))
	for _, p := range procs {
		if p.PID <= 0 {
			continue
		}
		// AllProcs 只校验名称，不校验是否为目录
		info, err := os.Stat(PidPath(root, p.PID))
		if err != nil || !info.IsDir() {
			continue
		}
		pids = append(pids, p.PID)
	}
	sort.Ints(pids)
	return pids, nil
}

// ReadStat 读取 /proc/[pid]/stat 中的 PID 与 PPID，pid 为 0 时读取当前进程
func ReadStat(fs procfs.FS, pid int) (Stat, error) {
	var p procfs.Proc
	var err error
	if pid == 0 {
		p, err = fs.Self()
	} else {
		p, err = fs.Proc(pid)
	}
	if err != nil {
		return Stat{}, errors.Wrapf(err, "进程 %d 不存在", pid)
	}
	stat, err := p.Stat()
	if err != nil {
		return Stat{}, errors.Wrapf(err, "读取进程 %d stat 异常", pid)
	}
	return Stat{PID: stat.PID, ParentPID: stat.PPID}, nil
}

// ReadCmdline 读取原始命令行，\0 分隔符原样保留
func ReadCmdline(root string, pid int) (string, error) {
	path := filepath.Join(PidPath(root, pid), CmdlineName)
	content, err := os.ReadFile(path)
	if err != nil {
		return "", errors.Wrapf(err, "读取 %s 异常", path)
	}
	return string(content), nil
}

// PidPath 返回进程目录，pid 为 0 时返回 self
func PidPath(root string, pid int) string {
	if pid == 0 {
		return filepath.Join(root, SelfDir)
	}
	return filepath.Join(root, strconv.Itoa(pid))
}

// NsDir 返回进程的命名空间链接目录
func NsDir(root string, pid int) string {
	return filepath.Join(PidPath(root, pid), NamespaceDir)
}

// ThreadNsDir 返回当前线程的命名空间链接目录
func ThreadNsDir(root string) string {
	return filepath.Join(root, ThreadSelfDir, NamespaceDir)
}

// ParsePID 解析命令行传入的 PID，self 表示当前进程
func ParsePID(s string) (int, error) {
	if s == "" || s == SelfDir {
		return 0, nil
	}
	pid, err := strconv.Atoi(s)
	if err != nil || pid <= 0 {
		return 0, errors.Errorf("无效的进程号 %q", s)
	}
	return pid, nil
}

func logSkip(pid int, err error) {
	log.Debugf("跳过进程 %d: %v", pid, err)
}
