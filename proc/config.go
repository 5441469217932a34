package proc

import "github.com/prometheus/procfs"

// 进程信息文件系统路径
var (
	DefaultRoot   string = procfs.DefaultMountPoint // 默认挂载点 /proc
	CmdlineName   string = "cmdline"                // 命令行伪文件
	NamespaceDir  string = "ns"                     // 命名空间链接目录
	SelfDir       string = "self"                   // 当前进程
	ThreadSelfDir string = "thread-self"            // 当前线程
)
