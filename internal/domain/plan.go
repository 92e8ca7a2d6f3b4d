package domain

// MovePlan 规划一次文件移动（只描述 src/dst；真正执行在 move 阶段）。
//
// 不变量：同一次 run 内所有 MovePlan 的 DstAbs 两两不同，且不与规划时刻
// 目标目录快照中的已有条目重名。规划之后、执行之前出现的外部写入不在
// 防护范围内（落到 move 阶段的普通失败）。
type MovePlan struct {
	SrcAbs string
	DstAbs string
}

// FailureRecord 是两个并发阶段共享的失败记录（extract / move）。
// Src 统一使用相对输入目录的路径，便于用户定位。
type FailureRecord struct {
	Src   string
	Stage string // StageExtract / StageMove
	Code  string
	Msg   string
}
