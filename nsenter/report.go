package nsenter

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"

	"nsutils/namespace"
	"nsutils/proc"
)

// ParseReport 解析构造函数的失败记录，格式为 stage:type:reason;stage:type:reason
func ParseReport(report string) error {
	var result *multierror.Error
	for _, item := range strings.Split(report, ";") {
		if item == "" {
			continue
		}
		parts := strings.SplitN(item, ":", 3)
		if len(parts) != 3 {
			result = multierror.Append(result, errors.Errorf("无效的失败记录 %q", item))
			continue
		}
		result = multierror.Append(result, errors.Errorf("%s %s namespace: %s", parts[0], parts[1], parts[2]))
	}
	return result.ErrorOrNil()
}

// Current 读取当前线程的命名空间。setns 只改变调用线程，/proc/self 对应的是主线程
func Current(procRoot string, types []namespace.NsType) ([]namespace.Membership, error) {
	resolver := &namespace.Resolver{Filter: types}
	return resolver.Resolve(proc.ThreadNsDir(procRoot))
}

// FormatExpected 将 类型:ID 编码为 exec 子命令的参数，如 mnt=4026531840
func FormatExpected(expected map[namespace.NsType]uint64) []string {
	var values []string
	for t, id := range expected {
		values = append(values, fmt.Sprintf("%s=%d", t, id))
	}
	sort.Strings(values)
	return values
}

// ParseExpected 为 FormatExpected 的逆过程
func ParseExpected(values []string) (map[namespace.NsType]uint64, error) {
	expected := make(map[namespace.NsType]uint64, len(values))
	for _, v := range values {
		name, raw, found := strings.Cut(v, "=")
		if !found {
			return nil, errors.Errorf("无效的命名空间参数 %q", v)
		}
		t, ok := namespace.ParseLinkName(name)
		if !ok {
			return nil, errors.Errorf("无效的命名空间类型 %q", name)
		}
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return nil, errors.Wrapf(err, "无效的命名空间ID %q", raw)
		}
		expected[t] = id
	}
	return expected, nil
}

// Verify 比较进入后当前进程的命名空间与目标进程的命名空间，返回成功进入与未进入的类型。
// expected 中没有记录的类型视为未进入。setns 进入 pid 命名空间后 /proc/self/ns/pid 不变，pid 不参与比较
func Verify(expected map[namespace.NsType]uint64, current []namespace.Membership, types []namespace.NsType) (joined, missed []namespace.NsType) {
	now := namespace.ByType(current)
	for _, t := range Ordered(types) {
		if t == namespace.PID {
			continue
		}
		want, ok := expected[t]
		if ok && now[t] == want {
			joined = append(joined, t)
		} else {
			missed = append(missed, t)
		}
	}
	return joined, missed
}
