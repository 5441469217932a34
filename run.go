package main

import (
	"io"
	"os"
	"path/filepath"
	"runtime"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli"

	"nsutils/namespace"
	"nsutils/network"
	"nsutils/nsenter"
	"nsutils/output"
	"nsutils/proc"
)

type lsnsOptions struct {
	procRoot string
	types    []namespace.NsType
	task     *int // 为 nil 时不按进程过滤，0 表示当前进程
	workers  int
	output   output.Options
}

// RunLsns 扫描进程表、汇总命名空间并输出
func RunLsns(w io.Writer, opts lsnsOptions) error {
	if err := proc.CheckRoot(opts.procRoot); err != nil {
		return err
	}
	scanner := proc.NewScanner(opts.procRoot, opts.workers)
	summaries := namespace.Sorted(namespace.Aggregate(scanner.Scan()))
	summaries = namespace.FilterTypes(summaries, opts.types)

	if opts.task != nil {
		snap, err := scanner.Snapshot(*opts.task)
		if err != nil {
			return errors.Wrapf(err, "读取进程 %d 命名空间异常", *opts.task)
		}
		summaries = namespace.FilterProcess(summaries, snap)
	}
	log.Debugf("输出命名空间 %d 个", len(summaries))
	return output.Namespaces(w, summaries, opts.output)
}

type nsenterOptions struct {
	procRoot string
	pid      int
	types    []namespace.NsType
	command  string
	args     []string
}

// RunNsenter 进入目标进程的命名空间并执行命令。
// 包含 mnt 或 user 时需要单线程进程，交由重新执行后的构造函数完成
func RunNsenter(opts nsenterOptions) error {
	if len(opts.types) == 0 {
		log.Warnf("未选择任何命名空间，直接执行命令 %s", opts.command)
	}
	expected := targetNamespaces(opts.procRoot, opts.pid, opts.types)
	// pid 命名空间只对之后创建的子进程生效
	fork := contains(opts.types, namespace.PID)

	if nsenter.NeedsReexec(opts.types) {
		err := nsenter.Reexec(opts.procRoot, opts.pid, opts.types, reexecArgs(opts, expected, fork))
		return exitError(err)
	}

	// setns 只作用于当前线程，执行命令前不能切换到其他线程。不再解锁，goroutine 退出时线程随之销毁
	runtime.LockOSThread()

	if err := nsenter.NewJoiner(opts.procRoot).Join(opts.pid, opts.types); err != nil {
		// 部分命名空间进入失败时仍执行命令
		log.Errorf("进入命名空间异常，继续执行命令: %v", err)
	}
	logJoined(opts.procRoot, expected, opts.types)
	return exitError(nsenter.Run(opts.command, opts.args, fork))
}

// reexecArgs 组装重新执行自身时的参数，日志级别与进程信息目录以全局参数传递
func reexecArgs(opts nsenterOptions, expected map[namespace.NsType]uint64, fork bool) nsenter.ExecArgs {
	return nsenter.ExecArgs{
		LogLevel: log.GetLevel().String(),
		ProcRoot: opts.procRoot,
		Fork:     fork,
		Types:    opts.types,
		Expected: nsenter.FormatExpected(expected),
		Command:  opts.command,
		Args:     opts.args,
	}
}

type execOptions struct {
	procRoot string
	types    []namespace.NsType
	expected map[namespace.NsType]uint64
	fork     bool
	command  string
	args     []string
}

// RunExec 为重新执行后的 exec 子命令，构造函数已完成 setns，这里只检查结果并执行命令
func RunExec(opts execOptions) error {
	ran, report := nsenter.ConstructorReport()
	if !ran {
		log.Warnf("命名空间构造函数未执行")
	}
	if err := nsenter.ParseReport(report); err != nil {
		log.Errorf("进入命名空间异常，继续执行命令: %v", err)
	}
	for _, key := range []string{nsenter.EnvPid, nsenter.EnvTypes, nsenter.EnvProc} {
		_ = os.Unsetenv(key)
	}
	logJoined(opts.procRoot, opts.expected, opts.types)
	return exitError(nsenter.Run(opts.command, opts.args, opts.fork))
}

type linksOptions struct {
	procRoot string
	workers  int
	output   output.Options
}

// RunLinks 对每个网络命名空间取一个代表进程，列出其中的网络接口
func RunLinks(w io.Writer, opts linksOptions) error {
	if err := proc.CheckRoot(opts.procRoot); err != nil {
		return err
	}
	scanner := proc.NewScanner(opts.procRoot, opts.workers)
	summaries := namespace.Sorted(namespace.Aggregate(scanner.Scan()))
	summaries = namespace.FilterTypes(summaries, []namespace.NsType{namespace.Net})

	links := []network.Link{}
	for _, s := range summaries {
		nsPath := filepath.Join(proc.NsDir(opts.procRoot, int(s.PID)), namespace.Net.String())
		nsLinks, err := network.ListLinks(nsPath)
		if err != nil {
			// 代表进程可能已退出或无权限
			log.Warnf("跳过网络命名空间 %d: %v", s.ID, err)
			continue
		}
		for _, l := range nsLinks {
			l.Namespace = s.ID
			l.PID = s.PID
			links = append(links, l)
		}
	}
	return output.Links(w, links, opts.output)
}

// targetNamespaces 读取目标进程在 types 中的命名空间ID，用于进入后的校验
func targetNamespaces(procRoot string, pid int, types []namespace.NsType) map[namespace.NsType]uint64 {
	resolver := &namespace.Resolver{Filter: types}
	memberships, err := resolver.Resolve(proc.NsDir(procRoot, pid))
	if err != nil {
		log.Warnf("读取目标进程命名空间异常，跳过校验: %v", err)
		return nil
	}
	return namespace.ByType(memberships)
}

// logJoined 对比当前线程与目标进程的命名空间，记录未能进入的类型。需在执行 setns 的线程上调用
func logJoined(procRoot string, expected map[namespace.NsType]uint64, types []namespace.NsType) {
	if len(types) == 0 {
		return
	}
	current, err := nsenter.Current(procRoot, types)
	if err != nil {
		log.Debugf("读取当前进程命名空间异常 %v", err)
		return
	}
	joined, missed := nsenter.Verify(expected, current, types)
	for _, t := range joined {
		log.Debugf("已进入 %s 命名空间", t)
	}
	for _, t := range missed {
		log.Warnf("未能进入 %s 命名空间", t)
	}
}

// exitError 将命令的退出码透传为本进程的退出码
func exitError(err error) error {
	if err == nil {
		return nil
	}
	if code := nsenter.ExitCode(err); code >= 0 {
		return cli.NewExitError("", code)
	}
	return err
}

func contains(types []namespace.NsType, t namespace.NsType) bool {
	for _, v := range types {
		if v == t {
			return true
		}
	}
	return false
}
