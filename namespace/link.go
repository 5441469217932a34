package namespace

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// ErrMalformedLink 链接目标不符合 <type>:[<inode>] 格式
var ErrMalformedLink = errors.New("malformed namespace link")

// Membership 进程与某个命名空间实例的归属关系
type Membership struct {
	ID   uint64 // 命名空间 inode 号
	Type NsType
}

// ParseLinkTarget 解析链接目标，例如 mnt:[4026531840]
func ParseLinkTarget(target string) (uint64, error) {
	sep := strings.Index(target, ":[")
	if sep <= 0 || !strings.HasSuffix(target, "]") {
		return 0, errors.Wrapf(ErrMalformedLink, "%q", target)
	}
	for _, r := range target[:sep] {
		if (r < 'a' || r > 'z') && r != '_' {
			return 0, errors.Wrapf(ErrMalformedLink, "%q", target)
		}
	}
	digits := target[sep+2 : len(target)-1]
	// ParseUint 会接受 "+1" 一类写法，这里只允许十进制数字
	if digits == "" || strings.IndexFunc(digits, func(r rune) bool { return r < '0' || r > '9' }) >= 0 {
		return 0, errors.Wrapf(ErrMalformedLink, "%q", target)
	}
	ino, err := strconv.ParseUint(digits, 10, 64)
	if err != nil {
		return 0, errors.Wrapf(ErrMalformedLink, "%q: %v", target, err)
	}
	return ino, nil
}

// Resolver 读取单个进程的 ns 目录，解析出全部命名空间归属
type Resolver struct {
	// Filter 非空时只解析其中的类型
	Filter []NsType
}

func (r *Resolver) wanted(t NsType) bool {
	if len(r.Filter) == 0 {
		return true
	}
	for _, f := range r.Filter {
		if f == t {
			return true
		}
	}
	return false
}

// Resolve 解析 nsDir 下的链接。目录不可读时返回错误，由调用方跳过该进程；
// 单个链接不可读或格式错误只跳过该链接
func (r *Resolver) Resolve(nsDir string) ([]Membership, error) {
	entries, err := os.ReadDir(nsDir)
	if err != nil {
		return nil, errors.Wrapf(err, "读取命名空间目录 %s 异常", nsDir)
	}

	var memberships []Membership
	for _, entry := range entries {
		if entry.Type()&os.ModeSymlink == 0 {
			continue
		}
		nsType, ok := ParseLinkName(entry.Name())
		if !ok || !r.wanted(nsType) {
			continue
		}
		linkPath := filepath.Join(nsDir, entry.Name())
		target, err := os.Readlink(linkPath)
		if err != nil {
			log.Debugf("读取链接 %s 异常 %v", linkPath, err)
			continue
		}
		ino, err := ParseLinkTarget(target)
		if err != nil {
			log.Debugf("解析链接 %s 异常 %v", linkPath, err)
			continue
		}
		memberships = append(memberships, Membership{ID: ino, Type: nsType})
	}
	return memberships, nil
}

// ByType 将归属列表转为 类型:ID 的映射
func ByType(memberships []Membership) map[NsType]uint64 {
	m := make(map[NsType]uint64, len(memberships))
	for _, ms := range memberships {
		m[ms.Type] = ms.ID
	}
	return m
}
