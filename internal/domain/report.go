package domain

import (
	"encoding/json"
	"sort"
	"time"
)

const (
	FileStatusMoved   = "moved"
	FileStatusPlanned = "planned"
	FileStatusFailed  = "failed"

	// FileStatusExtracted 只出现在进度事件里（extract 阶段成功），
	// 最终 RunReport 中不会出现该状态。
	FileStatusExtracted = "extracted"
)

const (
	StageExtract = "extract"
	StageMove    = "move"
	StageSetup   = "setup"
)

const (
	ErrCodeExtractIO          = "extract_io"
	ErrCodeExtractDecode      = "extract_decode"
	ErrCodeExtractTagNotFound = "extract_tag_not_found"
	ErrCodeMoveFailed         = "move_failed"
	ErrCodeMoveCrossDevice    = "move_cross_device"
	ErrCodeTargetConflict     = "target_conflict"
	ErrCodeIOFailed           = "io_failed"

	ErrCodeConfigInvalid       = "config_invalid"
	ErrCodeConfigMissingInput  = "config_missing_input"
	ErrCodeConfigMissingOutput = "config_missing_output"

	ErrCodeSetupInputInvalid = "setup_input_invalid"
	ErrCodeSetupOutputNested = "setup_output_nested"
	ErrCodeSetupOutputCreate = "setup_output_create"
)

// RunReport 是对外稳定输出（stdout JSON / --report 文件）的结构。
type RunReport struct {
	RunID     string `json:"run_id"`
	InputDir  string `json:"input_dir"`
	OutputDir string `json:"output_dir"`
	FullScan  bool   `json:"full_scan"`
	DryRun    bool   `json:"dry_run"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	Summary ReportSummary `json:"summary"`
	Items   []FileResult  `json:"items"`
}

type ReportSummary struct {
	Moved   int `json:"moved"`
	Planned int `json:"planned"`
	Failed  int `json:"failed"`
}

// FileResult 对应一个候选文件的最终去向。
//
// 分区不变量：一次 run 结束后，每个候选文件恰好出现在一个 FileResult 中
// （moved / planned / failed 三者之一），不会重复也不会遗漏。
type FileResult struct {
	Src    string `json:"src"`
	Dst    string `json:"dst"`
	Status string `json:"status"`

	Stage     string `json:"stage,omitempty"`
	ErrorCode string `json:"error_code,omitempty"`
	ErrorMsg  string `json:"error_msg,omitempty"`
}

// Finalize 做三件事：
// 1) 时间统一为 UTC（确保 JSON 为 RFC3339 且后缀 Z）
// 2) items 稳定排序：按 Src 字典序；Src=="" 的合成条目排在最后
// 3) summary 由 items 计算得出
func (r *RunReport) Finalize() {
	r.StartedAt = r.StartedAt.UTC()
	r.FinishedAt = r.FinishedAt.UTC()

	sort.SliceStable(r.Items, func(i, j int) bool {
		a := r.Items[i].Src
		b := r.Items[j].Src
		if a == "" && b == "" {
			return false
		}
		if a == "" {
			return false
		}
		if b == "" {
			return true
		}
		return a < b
	})

	var s ReportSummary
	for _, it := range r.Items {
		switch it.Status {
		case FileStatusMoved:
			s.Moved++
		case FileStatusPlanned:
			s.Planned++
		case FileStatusFailed:
			s.Failed++
		}
	}
	r.Summary = s
}

// MarshalJSON 仅用于集中约束输出的稳定性（避免未来不小心引入非确定字段）。
// 当前只是透传 encoding/json 的默认行为。
func (r RunReport) MarshalJSON() ([]byte, error) {
	type Alias RunReport
	return json.Marshal(Alias(r))
}
