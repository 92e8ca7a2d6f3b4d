package planner

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/John-Robertt/photomv/internal/domain"
)

// DestState 是规划时刻对目标目录的一次性快照（只做 ReadDir，不读文件内容）。
// 快照之后出现的外部写入不在防护范围内。
type DestState struct {
	Dir           string
	ExistingNames map[string]struct{}
}

// ReadDestState 读取目标目录现状。若目录不存在，返回空状态且不报错
//（setup 阶段负责创建；这里的宽容只为可测试性）。
func ReadDestState(dir string) (DestState, error) {
	st := DestState{
		Dir:           filepath.Clean(dir),
		ExistingNames: map[string]struct{}{},
	}

	entries, err := os.ReadDir(st.Dir)
	if err != nil {
		if os.IsNotExist(err) {
			return st, nil
		}
		return DestState{}, err
	}

	for _, e := range entries {
		st.ExistingNames[e.Name()] = struct{}{}
	}
	return st, nil
}

// Extraction 是 extract 阶段的一条成功结果：候选文件 + 原始时间戳字符串。
type Extraction struct {
	File      domain.PhotoFile
	Timestamp string
}

// BaseName 把时间戳字符串变成文件系统安全、按拍摄时间可排序的基础名：
// ":" -> "-"，" " -> "_"，固定 .jpg 扩展名。时间戳原样透传，不做校验。
func BaseName(ts string) string {
	return strings.NewReplacer(":", "-", " ", "_").Replace(ts) + ".jpg"
}

// AssignName 为一个时间戳分配未占用的目标文件名。永不失败：
// 基础名冲突时依次尝试 _1、_2……直到同时满足
// (i) 不在 claimed 集合中，(ii) 不在目标目录快照中。
//
// 成功的名字在返回前写入 claimed——规划是单线程单遍，因此这一步
// 对本次规划等价于原子预留；最坏情况下尝试次数与共享同一时间戳的
// 候选数量成线性关系，循环必然终止。
func AssignName(ts string, claimed map[string]struct{}, st DestState) string {
	base := BaseName(ts)

	name := base
	for n := 1; ; n++ {
		if !taken(name, claimed, st) {
			claimed[name] = struct{}{}
			return name
		}
		ext := filepath.Ext(base)
		name = fmt.Sprintf("%s_%d%s", strings.TrimSuffix(base, ext), n, ext)
	}
}

func taken(name string, claimed map[string]struct{}, st DestState) bool {
	if _, ok := claimed[name]; ok {
		return true
	}
	_, ok := st.ExistingNames[name]
	return ok
}

// PlanMoves 是规划阶段的单遍顺序通道：按传入顺序（即枚举顺序）为每条
// 提取成功的结果分配目标名。顺序性是正确性前提——claimed 集合是可变
// 状态，并行化只会把锁串行化或引入投机重试，对纯内存工作不值得。
//
// 产出保证：所有 DstAbs 两两不同，且不与 st 快照中的既有条目重名。
func PlanMoves(extractions []Extraction, st DestState) []domain.MovePlan {
	claimed := make(map[string]struct{}, len(extractions))

	moves := make([]domain.MovePlan, 0, len(extractions))
	for _, ex := range extractions {
		name := AssignName(ex.Timestamp, claimed, st)
		moves = append(moves, domain.MovePlan{
			SrcAbs: ex.File.AbsPath,
			DstAbs: filepath.Join(st.Dir, name),
		})
	}
	return moves
}
