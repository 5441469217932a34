// Package namespace 解析 /proc/[pid]/ns 下的命名空间链接，并把进程快照聚合为按命名空间划分的视图。
//
// 链接目标的格式固定为 <type>:[<inode>]，inode 号在同一类型中唯一标识一个命名空间实例。
package namespace
