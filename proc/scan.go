package proc

import (
	"sort"

	"github.com/pkg/errors"
	"github.com/prometheus/procfs"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"nsutils/namespace"
)

// ErrNoNamespaces 进程没有任何可读的命名空间链接
var ErrNoNamespaces = errors.New("no readable namespace links")

// Scanner 扫描进程表，为每个进程构造快照
type Scanner struct {
	Root     string
	Workers  int // 并发扫描的进程数，小于等于 1 时顺序扫描
	Resolver *namespace.Resolver
}

func NewScanner(root string, workers int) *Scanner {
	if root == "" {
		root = DefaultRoot
	}
	return &Scanner{
		Root:     root,
		Workers:  workers,
		Resolver: &namespace.Resolver{},
	}
}

// Scan 返回按 PID 升序排列的快照。根目录不可用时返回空结果，
// 进程中途退出或命名空间不可读时跳过该进程
func (s *Scanner) Scan() []namespace.ProcessSnapshot {
	fs, err := procfs.NewFS(s.Root)
	if err != nil {
		log.Warnf("进程信息目录 %s 不可用 %v", s.Root, err)
		return nil
	}
	pids, err := ListPIDs(s.Root)
	if err != nil {
		log.Warnf("%v", err)
		return nil
	}

	results := make([]*namespace.ProcessSnapshot, len(pids))
	collect := func(i int) {
		snap, err := s.snapshot(fs, pids[i])
		if err != nil {
			logSkip(pids[i], err)
			return
		}
		results[i] = &snap
	}

	if s.Workers <= 1 {
		for i := range pids {
			collect(i)
		}
	} else {
		// 每个 goroutine 只写自己的下标，无需加锁
		var g errgroup.Group
		g.SetLimit(s.Workers)
		for i := range pids {
			g.Go(func() error {
				collect(i)
				return nil
			})
		}
		_ = g.Wait()
	}

	snapshots := make([]namespace.ProcessSnapshot, 0, len(results))
	for _, snap := range results {
		if snap != nil {
			snapshots = append(snapshots, *snap)
		}
	}
	// 聚合的代表进程依赖 PID 顺序，而不是扫描完成顺序
	sort.SliceStable(snapshots, func(i, j int) bool {
		return snapshots[i].PID < snapshots[j].PID
	})
	log.Debugf("扫描进程 %d 个，有效快照 %d 个", len(pids), len(snapshots))
	return snapshots
}

// Snapshot 构造单个进程的快照，pid 为 0 表示当前进程
func (s *Scanner) Snapshot(pid int) (namespace.ProcessSnapshot, error) {
	fs, err := procfs.NewFS(s.Root)
	if err != nil {
		return namespace.ProcessSnapshot{}, errors.Wrapf(ErrNoProcRoot, "%s: %v", s.Root, err)
	}
	return s.snapshot(fs, pid)
}

func (s *Scanner) snapshot(fs procfs.FS, pid int) (namespace.ProcessSnapshot, error) {
	stat, err := ReadStat(fs, pid)
	if err != nil {
		return namespace.ProcessSnapshot{}, err
	}
	cmdline, err := ReadCmdline(s.Root, pid)
	if err != nil {
		return namespace.ProcessSnapshot{}, err
	}
	memberships, err := s.Resolver.Resolve(NsDir(s.Root, pid))
	if err != nil {
		return namespace.ProcessSnapshot{}, err
	}
	if len(memberships) == 0 {
		return namespace.ProcessSnapshot{}, errors.Wrapf(ErrNoNamespaces, "进程 %d", pid)
	}
	return namespace.ProcessSnapshot{
		PID:         int32(stat.PID),
		ParentPID:   int32(stat.ParentPID),
		CommandLine: cmdline,
		Memberships: memberships,
	}, nil
}
