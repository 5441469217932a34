package main

import (
	"fmt"

	"github.com/urfave/cli"

	"nsutils/namespace"
	"nsutils/nsenter"
	"nsutils/output"
	"nsutils/proc"
)

var globalFlags = []cli.Flag{
	cli.StringFlag{
		Name:   "proc",
		Value:  proc.DefaultRoot,
		Usage:  `进程信息目录`,
		EnvVar: "NSUTILS_PROC_ROOT",
	},
	cli.StringFlag{
		Name:   "log-level",
		Value:  "info",
		Usage:  `日志级别：debug、info、warn、error`,
		EnvVar: "NSUTILS_LOG_LEVEL",
	},
	cli.BoolFlag{
		Name:  "debug",
		Usage: `等同于 --log-level debug`,
	},
}

var workersFlag = cli.IntFlag{
	Name:   "workers, w",
	Value:  1,
	Usage:  `并发扫描的进程数`,
	EnvVar: "NSUTILS_WORKERS",
}

// LsnsCommand 列出全部命名空间：nsutils lsns [-t net] [-p pid]
var LsnsCommand = cli.Command{
	Name:  "lsns",
	Usage: `列出命名空间，每个命名空间显示一个代表进程：nsutils lsns -t net -t mnt`,
	Flags: []cli.Flag{
		cli.StringSliceFlag{
			Name:  "type, t",
			Usage: `只显示指定类型，可重复指定：ipc、mnt、net、pid、user、uts`,
		},
		cli.StringFlag{
			Name:  "task, p",
			Usage: `只显示该进程所属的命名空间`,
		},
		cli.BoolFlag{
			Name:  "json, J",
			Usage: `以JSON格式输出`,
		},
		cli.BoolFlag{
			Name:  "raw, r",
			Usage: `不对齐输出`,
		},
		cli.BoolFlag{
			Name:  "noheadings, n",
			Usage: `不输出表头`,
		},
		workersFlag,
	},
	Action: func(c *cli.Context) error {
		types, err := namespace.ParseTypes(c.StringSlice("type"))
		if err != nil {
			return err
		}
		opts := lsnsOptions{
			procRoot: c.GlobalString("proc"),
			types:    types,
			workers:  c.Int("workers"),
			output:   outputOptions(c),
		}
		if c.IsSet("task") {
			pid, err := proc.ParsePID(c.String("task"))
			if err != nil {
				return err
			}
			opts.task = &pid
		}
		return RunLsns(c.App.Writer, opts)
	},
}

// NsenterCommand 进入目标进程的命名空间后执行命令：nsutils nsenter -t 1234 --enter-net ip addr
var NsenterCommand = cli.Command{
	Name:           "nsenter",
	Usage:          `进入目标进程的命名空间后执行命令：nsutils nsenter -t [pid] --enter-net [command]`,
	ArgsUsage:      `COMMAND [ARGS...]`,
	SkipArgReorder: true,
	Flags: []cli.Flag{
		cli.StringFlag{
			Name:  "target, t",
			Value: "self",
			Usage: `目标进程号`,
		},
		cli.BoolFlag{Name: "enter-ipc", Usage: `进入 ipc 命名空间`},
		cli.BoolFlag{Name: "enter-pid", Usage: `进入 pid 命名空间，命令以子进程运行`},
		cli.BoolFlag{Name: "enter-net", Usage: `进入 net 命名空间`},
		cli.BoolFlag{Name: "enter-mount", Usage: `进入 mnt 命名空间`},
		cli.BoolFlag{Name: "enter-uts", Usage: `进入 uts 命名空间`},
		cli.BoolFlag{Name: "enter-user", Usage: `进入 user 命名空间`},
		cli.BoolFlag{
			Name:  "all, a",
			Usage: `进入全部命名空间`,
		},
	},
	Action: func(c *cli.Context) error {
		if len(c.Args()) < 1 {
			return fmt.Errorf(`缺少command参数`)
		}
		pid, err := proc.ParsePID(c.String("target"))
		if err != nil {
			return err
		}
		return RunNsenter(nsenterOptions{
			procRoot: c.GlobalString("proc"),
			pid:      pid,
			types:    selectedTypes(c),
			command:  c.Args().First(),
			args:     c.Args().Tail(),
		})
	},
}

// ExecCommand 不可显式调用。nsenter 重新执行 /proc/self/exe 后触发，此时构造函数已进入命名空间
var ExecCommand = cli.Command{
	Name:           "exec",
	Hidden:         true,
	SkipArgReorder: true,
	Flags: []cli.Flag{
		cli.BoolFlag{Name: "fork"},
		cli.StringFlag{Name: "types"},
		cli.StringSliceFlag{Name: "expect"},
	},
	Action: func(c *cli.Context) error {
		if len(c.Args()) < 1 {
			return fmt.Errorf(`缺少command参数`)
		}
		types, err := namespace.ParseTypes([]string{c.String("types")})
		if err != nil {
			return err
		}
		expected, err := nsenter.ParseExpected(c.StringSlice("expect"))
		if err != nil {
			return err
		}
		return RunExec(execOptions{
			procRoot: c.GlobalString("proc"),
			types:    types,
			expected: expected,
			fork:     c.Bool("fork"),
			command:  c.Args().First(),
			args:     c.Args().Tail(),
		})
	},
}

// LinksCommand 列出每个网络命名空间内的网络接口
var LinksCommand = cli.Command{
	Name:  "links",
	Usage: `列出每个网络命名空间内的网络接口及地址`,
	Flags: []cli.Flag{
		cli.BoolFlag{
			Name:  "json, J",
			Usage: `以JSON格式输出`,
		},
		cli.BoolFlag{
			Name:  "noheadings, n",
			Usage: `不输出表头`,
		},
		workersFlag,
	},
	Action: func(c *cli.Context) error {
		return RunLinks(c.App.Writer, linksOptions{
			procRoot: c.GlobalString("proc"),
			workers:  c.Int("workers"),
			output:   outputOptions(c),
		})
	},
}

func outputOptions(c *cli.Context) output.Options {
	return output.Options{
		NoHeadings: c.Bool("noheadings"),
		Raw:        c.Bool("raw"),
		JSON:       c.Bool("json"),
	}
}

// enter-* 开关与命名空间类型的对应关系
var enterFlags = []struct {
	name string
	t    namespace.NsType
}{
	{"enter-ipc", namespace.IPC},
	{"enter-pid", namespace.PID},
	{"enter-net", namespace.Net},
	{"enter-mount", namespace.Mount},
	{"enter-uts", namespace.UTS},
	{"enter-user", namespace.User},
}

// selectedTypes 汇总 nsenter 的选择开关，--all 选择全部类型
func selectedTypes(c *cli.Context) []namespace.NsType {
	if c.Bool("all") {
		return append([]namespace.NsType(nil), namespace.AllTypes...)
	}
	var types []namespace.NsType
	for _, f := range enterFlags {
		if c.Bool(f.name) {
			types = append(types, f.t)
		}
	}
	return types
}
