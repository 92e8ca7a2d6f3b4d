//go:build !unix

package fsx

// 非 unix 平台没有统一的 EXDEV errno；跨盘 rename 失败按普通错误处理。
func isEXDEV(err error) bool { return false }
