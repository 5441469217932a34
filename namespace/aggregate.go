package namespace

import "sort"

// ProcessSnapshot 扫描时单个进程的快照，创建后不再修改
type ProcessSnapshot struct {
	PID         int32
	ParentPID   int32
	CommandLine string // 原始 cmdline 内容，保留 \0 分隔符
	Memberships []Membership
}

// Summary 聚合后的单个命名空间
type Summary struct {
	ID          uint64 `json:"ns"`
	Type        NsType `json:"type"`
	MemberCount uint32 `json:"nprocs"`
	PID         int32  `json:"pid"`  // 代表进程
	ParentPID   int32  `json:"ppid"` // 代表进程的父进程
	CommandLine string `json:"command"`
}

// Aggregate 将按 PID 升序排列的快照折叠为 命名空间ID:Summary。
// 同一 ID 后写覆盖：类型与代表进程取最后一个合并的快照，因此代表进程是持有该命名空间的最大 PID；
// MemberCount 按归属出现次数累加，不做去重
func Aggregate(snapshots []ProcessSnapshot) map[uint64]Summary {
	result := make(map[uint64]Summary)
	for _, snap := range snapshots {
		for _, ms := range snap.Memberships {
			count := uint32(1)
			if prev, exists := result[ms.ID]; exists {
				count = prev.MemberCount + 1
			}
			result[ms.ID] = Summary{
				ID:          ms.ID,
				Type:        ms.Type,
				MemberCount: count,
				PID:         snap.PID,
				ParentPID:   snap.ParentPID,
				CommandLine: snap.CommandLine,
			}
		}
	}
	return result
}

// Sorted 按 ID、类型排序输出，map 的遍历顺序不可依赖
func Sorted(summaries map[uint64]Summary) []Summary {
	list := make([]Summary, 0, len(summaries))
	for _, s := range summaries {
		list = append(list, s)
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].ID != list[j].ID {
			return list[i].ID < list[j].ID
		}
		return list[i].Type < list[j].Type
	})
	return list
}

// FilterTypes 只保留指定类型，types 为空时原样返回
func FilterTypes(summaries []Summary, types []NsType) []Summary {
	if len(types) == 0 {
		return summaries
	}
	keep := make(map[NsType]bool, len(types))
	for _, t := range types {
		keep[t] = true
	}
	var filtered []Summary
	for _, s := range summaries {
		if keep[s.Type] {
			filtered = append(filtered, s)
		}
	}
	return filtered
}

// FilterProcess 只保留 snap 所属的命名空间，对应 lsns --task
func FilterProcess(summaries []Summary, snap ProcessSnapshot) []Summary {
	owned := make(map[uint64]bool, len(snap.Memberships))
	for _, ms := range snap.Memberships {
		owned[ms.ID] = true
	}
	var filtered []Summary
	for _, s := range summaries {
		if owned[s.ID] {
			filtered = append(filtered, s)
		}
	}
	return filtered
}
