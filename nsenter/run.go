package nsenter

import (
	"os"
	"os/exec"
	"strconv"
	"strings"
	"syscall"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"nsutils/namespace"
)

// SelfExe 重新执行自身时使用的路径
var SelfExe = "/proc/self/exe"

// ExecArgs exec 子命令的参数。LogLevel、ProcRoot 以全局参数传给子进程，不写入环境变量
type ExecArgs struct {
	LogLevel string
	ProcRoot string
	Fork     bool
	Types    []namespace.NsType
	Expected []string // FormatExpected 的结果
	Command  string
	Args     []string
}

// Argv 组装 /proc/self/exe 的参数
func (e ExecArgs) Argv() []string {
	var argv []string
	if e.LogLevel != "" {
		argv = append(argv, "--log-level", e.LogLevel)
	}
	if e.ProcRoot != "" {
		argv = append(argv, "--proc", e.ProcRoot)
	}
	argv = append(argv, "exec")
	if e.Fork {
		argv = append(argv, "--fork")
	}
	if len(e.Types) > 0 {
		argv = append(argv, "--types", joinTypes(e.Types))
	}
	for _, v := range e.Expected {
		argv = append(argv, "--expect", v)
	}
	argv = append(argv, "--", e.Command)
	return append(argv, e.Args...)
}

// ReexecEnv 构造函数所需的环境变量
func ReexecEnv(procRoot string, pid int, types []namespace.NsType) []string {
	target := "self"
	if pid != 0 {
		target = strconv.Itoa(pid)
	}
	return []string{
		EnvPid + "=" + target,
		EnvTypes + "=" + joinTypes(types),
		EnvProc + "=" + procRoot,
	}
}

func joinTypes(types []namespace.NsType) string {
	names := make([]string, 0, len(types))
	for _, t := range Ordered(types) {
		names = append(names, t.String())
	}
	return strings.Join(names, ",")
}

// Reexec 带上环境变量重新执行自身，由构造函数在 Go 运行时启动前进入命名空间，再由 exec 子命令运行目标命令
func Reexec(procRoot string, pid int, types []namespace.NsType, execArgs ExecArgs) error {
	cmd := exec.Command(SelfExe, execArgs.Argv()...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Env = append(os.Environ(), ReexecEnv(procRoot, pid, types)...)
	log.Debugf("重新执行 %s %q", SelfExe, cmd.Args[1:])
	return cmd.Run()
}

// Run 运行目标命令。fork 为 false 时用 syscall.Exec 替换当前进程；
// 进入 pid 命名空间只对子进程生效，此时以子进程运行并等待其退出
func Run(command string, args []string, fork bool) error {
	// 寻找命令绝对路径，例如 ip 实际为 /usr/sbin/ip
	path, err := exec.LookPath(command)
	if err != nil {
		return errors.Wrapf(err, "查找命令 %s 异常", command)
	}

	if !fork {
		argv := append([]string{command}, args...)
		if err := syscall.Exec(path, argv, os.Environ()); err != nil {
			return errors.Wrapf(err, "执行命令 %s 异常", path)
		}
		return nil
	}

	cmd := exec.Command(path, args...)
	cmd.Args[0] = command
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

// ExitCode 从子进程错误中取出退出码，非退出类错误返回 -1
func ExitCode(err error) int {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}
