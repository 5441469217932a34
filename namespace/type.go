package namespace

import (
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// NsType 命名空间类型，取值即 /proc/[pid]/ns 下的链接名
type NsType string

// 仅识别以下六种类型，cgroup、time 等内核新增类型会被忽略
const (
	IPC   NsType = "ipc"
	Mount NsType = "mnt"
	Net   NsType = "net"
	PID   NsType = "pid"
	User  NsType = "user"
	UTS   NsType = "uts"
)

// AllTypes 按链接名字典序排列，与 os.ReadDir 返回顺序一致
var AllTypes = []NsType{IPC, Mount, Net, PID, User, UTS}

var cloneFlags = map[NsType]int{
	IPC:   unix.CLONE_NEWIPC,
	Mount: unix.CLONE_NEWNS,
	Net:   unix.CLONE_NEWNET,
	PID:   unix.CLONE_NEWPID,
	User:  unix.CLONE_NEWUSER,
	UTS:   unix.CLONE_NEWUTS,
}

// 命令行中允许使用的长名称
var aliases = map[string]NsType{
	"mount":   Mount,
	"network": Net,
}

func (t NsType) String() string {
	return string(t)
}

// CloneFlag 返回 setns 所需的 CLONE_NEW* 标志，未知类型返回 0
func (t NsType) CloneFlag() int {
	return cloneFlags[t]
}

// ParseLinkName 严格匹配 ns 目录下的链接名
func ParseLinkName(name string) (NsType, bool) {
	t := NsType(name)
	if _, ok := cloneFlags[t]; ok {
		return t, true
	}
	return "", false
}

// ParseType 解析命令行传入的类型，额外接受 mount、network
func ParseType(s string) (NsType, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if t, ok := ParseLinkName(s); ok {
		return t, nil
	}
	if t, ok := aliases[s]; ok {
		return t, nil
	}
	return "", errors.Errorf("不支持的命名空间类型 %q", s)
}

// ParseTypes 解析多个类型并去重，保持首次出现的顺序
func ParseTypes(values []string) ([]NsType, error) {
	var types []NsType
	seen := make(map[NsType]bool)
	for _, v := range values {
		// 兼容 -t net,mnt 的逗号写法
		for _, part := range strings.Split(v, ",") {
			if part == "" {
				continue
			}
			t, err := ParseType(part)
			if err != nil {
				return nil, err
			}
			if !seen[t] {
				seen[t] = true
				types = append(types, t)
			}
		}
	}
	return types, nil
}
