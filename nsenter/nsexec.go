package nsenter

// Linux 的 setns 在进入 mnt、user 命名空间时要求调用进程为单线程，而 Go 运行时启动后即为多线程，直接调用会返回 EINVAL。
// 这里与 docker 的做法相同：通过 CGO 嵌入 __attribute__((constructor)) 修饰的 C 函数，在 Go 运行时初始化前完成 setns。
// 构造函数只在设置了 NSUTILS_NSENTER_PID 与 NSUTILS_NSENTER_TYPES 环境变量时生效，
// 单个命名空间失败不会中断其余命名空间，失败原因写入 nsutils_nsenter_errors 供 Go 侧读取并记录日志。
// 构造函数中的 setenv 对 Go 运行时不可见（Go 读取的是进程启动时的 envp），因此不通过环境变量回传结果。

/*
#define _GNU_SOURCE
#include <errno.h>
#include <fcntl.h>
#include <sched.h>
#include <stdio.h>
#include <stdlib.h>
#include <string.h>
#include <unistd.h>

static int nsutils_nsenter_ran = 0;
static char nsutils_nsenter_errors[4096];

// 与 Go 侧 JoinOrder 保持一致
static const struct {
	const char *name;
	int flag;
} join_order[] = {
	{ "user", CLONE_NEWUSER },
	{ "ipc", CLONE_NEWIPC },
	{ "uts", CLONE_NEWUTS },
	{ "net", CLONE_NEWNET },
	{ "pid", CLONE_NEWPID },
	{ "mnt", CLONE_NEWNS },
};

#define JOIN_TYPES (sizeof(join_order) / sizeof(join_order[0]))

// types 为逗号分隔的链接名，如 "net,mnt"
static int requested(const char *types, const char *name) {
	size_t len = strlen(name);
	const char *p = types;
	while (*p) {
		const char *end = strchr(p, ',');
		size_t n = end ? (size_t)(end - p) : strlen(p);
		if (n == len && strncmp(p, name, len) == 0) {
			return 1;
		}
		if (!end) {
			break;
		}
		p = end + 1;
	}
	return 0;
}

// 记录格式为 stage:type:reason，stage 为 open 或 setns
static void record_error(size_t *used, const char *stage, const char *name, int err) {
	size_t left = sizeof(nsutils_nsenter_errors) - *used;
	int n = snprintf(nsutils_nsenter_errors + *used, left, "%s%s:%s:%s", *used ? ";" : "", stage, name, strerror(err));
	if (n > 0 && (size_t)n < left) {
		*used += n;
	}
}

__attribute__((constructor)) static void nsutils_nsenter(void) {
	// 从环境变量中获取目标进程，未指定则直接返回
	char *pid = getenv("NSUTILS_NSENTER_PID");
	if (!pid) {
		return;
	}
	char *types = getenv("NSUTILS_NSENTER_TYPES");
	if (!types) {
		return;
	}
	char *root = getenv("NSUTILS_NSENTER_PROC");
	if (!root || !*root) {
		root = "/proc";
	}

	nsutils_nsenter_ran = 1;
	size_t used = 0;
	int fds[JOIN_TYPES];
	char nspath[1024];
	size_t i;

	// 先打开全部命名空间文件，进入 mnt 命名空间后原路径可能不再可见
	for (i = 0; i < JOIN_TYPES; i++) {
		fds[i] = -1;
		if (!requested(types, join_order[i].name)) {
			continue;
		}
		snprintf(nspath, sizeof(nspath), "%s/%s/ns/%s", root, pid, join_order[i].name);
		fds[i] = open(nspath, O_RDONLY | O_CLOEXEC);
		if (fds[i] < 0) {
			record_error(&used, "open", join_order[i].name, errno);
		}
	}

	for (i = 0; i < JOIN_TYPES; i++) {
		if (fds[i] < 0) {
			continue;
		}
		if (setns(fds[i], join_order[i].flag) == -1) {
			record_error(&used, "setns", join_order[i].name, errno);
		}
		close(fds[i]);
	}

	unsetenv("NSUTILS_NSENTER_PID");
	unsetenv("NSUTILS_NSENTER_TYPES");
	unsetenv("NSUTILS_NSENTER_PROC");
}

static int nsutils_nsenter_done(void) {
	return nsutils_nsenter_ran;
}

static const char *nsutils_nsenter_report(void) {
	return nsutils_nsenter_errors;
}
*/
import "C"

// 传递给构造函数的环境变量
const (
	EnvPid   = "NSUTILS_NSENTER_PID"
	EnvTypes = "NSUTILS_NSENTER_TYPES"
	EnvProc  = "NSUTILS_NSENTER_PROC"
)

// ConstructorReport 返回构造函数是否执行过，以及失败记录（stage:type:reason;...）
func ConstructorReport() (bool, string) {
	if C.nsutils_nsenter_done() == 0 {
		return false, ""
	}
	return true, C.GoString(C.nsutils_nsenter_report())
}
