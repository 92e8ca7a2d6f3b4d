package planner

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/John-Robertt/photomv/internal/domain"
)

const ts = "2023:05:01 10:00:00"

func TestBaseName_FilesystemSafe(t *testing.T) {
	got := BaseName(ts)
	want := "2023-05-01_10-00-00.jpg"
	if got != want {
		t.Fatalf("期望 %q，实际=%q", want, got)
	}
}

func TestAssignName_SameTimestampTwice(t *testing.T) {
	st := DestState{Dir: "/out", ExistingNames: map[string]struct{}{}}
	claimed := map[string]struct{}{}

	first := AssignName(ts, claimed, st)
	second := AssignName(ts, claimed, st)

	if first != "2023-05-01_10-00-00.jpg" {
		t.Fatalf("首个名字不符合预期：%q", first)
	}
	if second != "2023-05-01_10-00-00_1.jpg" {
		t.Fatalf("冲突后缀不符合预期：%q", second)
	}
	if _, ok := claimed[second]; !ok {
		t.Fatalf("返回前应写入 claimed：%v", claimed)
	}
}

func TestAssignName_SkipsOnDiskEntries(t *testing.T) {
	// 目标目录已有基础名：新候选必须拿 _1，绝不覆盖既有文件。
	st := DestState{Dir: "/out", ExistingNames: map[string]struct{}{
		"2023-05-01_10-00-00.jpg": {},
	}}
	claimed := map[string]struct{}{}

	got := AssignName(ts, claimed, st)
	if got != "2023-05-01_10-00-00_1.jpg" {
		t.Fatalf("期望跳过盘上既有条目：%q", got)
	}
}

func TestAssignName_GapInSuffixes(t *testing.T) {
	// 盘上有基础名与 _2：应分配 _1（逐个递增，取第一个空位）。
	st := DestState{Dir: "/out", ExistingNames: map[string]struct{}{
		"2023-05-01_10-00-00.jpg":   {},
		"2023-05-01_10-00-00_2.jpg": {},
	}}
	claimed := map[string]struct{}{}

	got := AssignName(ts, claimed, st)
	if got != "2023-05-01_10-00-00_1.jpg" {
		t.Fatalf("期望 _1，实际=%q", got)
	}
}

func TestPlanMoves_PairwiseDistinctAndDeterministic(t *testing.T) {
	st := DestState{Dir: "/out", ExistingNames: map[string]struct{}{}}

	exs := []Extraction{
		{File: domain.PhotoFile{AbsPath: "/in/a.jpg", RelPath: "a.jpg"}, Timestamp: ts},
		{File: domain.PhotoFile{AbsPath: "/in/b.jpg", RelPath: "b.jpg"}, Timestamp: ts},
		{File: domain.PhotoFile{AbsPath: "/in/c.jpg", RelPath: "c.jpg"}, Timestamp: "2024:01:02 03:04:05"},
	}

	run := func() []domain.MovePlan { return PlanMoves(exs, st) }

	first := run()
	seen := map[string]struct{}{}
	for _, mv := range first {
		if _, dup := seen[mv.DstAbs]; dup {
			t.Fatalf("目标路径重复：%q", mv.DstAbs)
		}
		seen[mv.DstAbs] = struct{}{}
	}

	// 同样输入重跑：逐条一致（命名确定性）。
	second := run()
	if len(first) != len(second) {
		t.Fatalf("两次规划条数不同：%d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("位置 %d 两次规划不一致：%+v vs %+v", i, first[i], second[i])
		}
	}

	want0 := filepath.Join("/out", "2023-05-01_10-00-00.jpg")
	want1 := filepath.Join("/out", "2023-05-01_10-00-00_1.jpg")
	if first[0].DstAbs != want0 || first[1].DstAbs != want1 {
		t.Fatalf("冲突分配不符合预期：%+v", first[:2])
	}
}

func TestPlanMoves_ManySharedTimestamps(t *testing.T) {
	// 病态输入：N 个候选共享同一秒。后缀线性增长，N 个目标名两两不同。
	st := DestState{Dir: "/out", ExistingNames: map[string]struct{}{}}

	const n = 200
	exs := make([]Extraction, 0, n)
	for i := 0; i < n; i++ {
		exs = append(exs, Extraction{
			File:      domain.PhotoFile{AbsPath: filepath.Join("/in", "x", "p"+string(rune('a'+i%26))+".jpg")},
			Timestamp: ts,
		})
	}

	moves := PlanMoves(exs, st)
	if len(moves) != n {
		t.Fatalf("期望 %d 条 move，实际 %d", n, len(moves))
	}
	seen := map[string]struct{}{}
	for _, mv := range moves {
		if _, dup := seen[mv.DstAbs]; dup {
			t.Fatalf("目标路径重复：%q", mv.DstAbs)
		}
		seen[mv.DstAbs] = struct{}{}
	}
}

func TestReadDestState_MissingDirIsEmpty(t *testing.T) {
	st, err := ReadDestState(filepath.Join(t.TempDir(), "nope"))
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if len(st.ExistingNames) != 0 {
		t.Fatalf("期望空快照：%+v", st)
	}
}

func TestReadDestState_SnapshotsEntries(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "2023-05-01_10-00-00.jpg"), []byte("x"), 0o644); err != nil {
		t.Fatalf("写入文件失败：%v", err)
	}

	st, err := ReadDestState(dir)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if _, ok := st.ExistingNames["2023-05-01_10-00-00.jpg"]; !ok {
		t.Fatalf("快照缺少既有条目：%+v", st.ExistingNames)
	}
}
