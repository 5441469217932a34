package network

import (
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/vishvananda/netlink"
	"github.com/vishvananda/netns"
)

// Link 网络命名空间内的一个网络接口
type Link struct {
	Namespace uint64   `json:"ns"`
	PID       int32    `json:"pid"` // 用于打开该命名空间的进程
	Name      string   `json:"name"`
	Type      string   `json:"type"`
	State     string   `json:"state"`
	MAC       string   `json:"mac,omitempty"`
	Addrs     []string `json:"addrs,omitempty"`
}

// FromNetlink 将 netlink 链接及其地址转为 Link
func FromNetlink(link netlink.Link, addrs []netlink.Addr) Link {
	attrs := link.Attrs()
	l := Link{
		Name:  attrs.Name,
		Type:  link.Type(),
		State: attrs.OperState.String(),
	}
	if len(attrs.HardwareAddr) > 0 {
		l.MAC = attrs.HardwareAddr.String()
	}
	for _, addr := range addrs {
		if addr.IPNet == nil {
			continue
		}
		l.Addrs = append(l.Addrs, addr.IPNet.String())
	}
	return l
}

// ListLinks 列出 nsPath（如 /proc/123/ns/net）所指网络命名空间内的全部接口。
// 通过 NewHandleAt 在目标命名空间内建立 netlink 连接，当前线程无需切换命名空间
func ListLinks(nsPath string) ([]Link, error) {
	ns, err := netns.GetFromPath(nsPath)
	if err != nil {
		return nil, errors.Wrapf(err, "打开网络命名空间 %s 异常", nsPath)
	}
	defer func() {
		if err := ns.Close(); err != nil {
			log.Errorf("关闭网络命名空间 %s 异常 %v", nsPath, err)
		}
	}()

	handle, err := netlink.NewHandleAt(ns)
	if err != nil {
		return nil, errors.Wrapf(err, "创建 %s netlink 句柄异常", nsPath)
	}
	defer handle.Delete()

	links, err := handle.LinkList()
	if err != nil {
		return nil, errors.Wrapf(err, "获取 %s 网络接口异常", nsPath)
	}

	result := make([]Link, 0, len(links))
	for _, link := range links {
		addrs, err := handle.AddrList(link, netlink.FAMILY_ALL)
		if err != nil {
			// 地址获取失败仍输出接口本身
			log.Debugf("获取接口 %s 地址异常 %v", link.Attrs().Name, err)
			addrs = nil
		}
		result = append(result, FromNetlink(link, addrs))
	}
	return result, nil
}
