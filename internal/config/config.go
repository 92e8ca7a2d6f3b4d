package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

const (
	// ErrCodeInvalid 表示配置文件无法读取/解析，或字段不合法。
	ErrCodeInvalid = "config_invalid"
	// ErrCodeMissingInput 表示 CLI、环境变量与配置文件都没有给出输入目录。
	ErrCodeMissingInput = "config_missing_input"
	// ErrCodeMissingOutput 表示 CLI、环境变量与配置文件都没有给出输出目录。
	ErrCodeMissingOutput = "config_missing_output"
)

// FileName 是固定的配置文件名（在 cwd 下发现，可选）。
const FileName = "photomv.json"

// DefaultConcurrency 是并发的内置默认值（当各来源都未指定时）。
const DefaultConcurrency = 4

// 环境变量覆盖（优先级介于 CLI 与配置文件之间）。
const (
	EnvInput       = "PHOTOMV_INPUT"
	EnvOutput      = "PHOTOMV_OUTPUT"
	EnvFullScan    = "PHOTOMV_FULL_SCAN"
	EnvConcurrency = "PHOTOMV_CONCURRENCY"
)

// CLIArgs 只包含 CLI 暴露的入口，并保留“是否显式指定”的信息。
// 这能保证覆盖优先级可实现：例如 --full-scan=false 必须能覆盖环境变量。
type CLIArgs struct {
	In    string
	InSet bool

	Out    string
	OutSet bool

	FullScan    bool
	FullScanSet bool

	DryRun    bool
	DryRunSet bool

	Report    string
	ReportSet bool
}

// FileConfig 对应 photomv.json 的解析结构。
type FileConfig struct {
	Input       string   `json:"input"`
	Output      string   `json:"output"`
	FullScan    *bool    `json:"full_scan"`
	Concurrency int      `json:"concurrency"`
	ExcludeDirs []string `json:"exclude_dirs"`
	Report      string   `json:"report"`
}

// EffectiveConfig 是合并并做最小规范化后的最终配置
// （实现层直接消费，不再做二次默认/优先级判断）。
type EffectiveConfig struct {
	InputDir  string
	OutputDir string

	FullScan bool
	DryRun   bool

	Concurrency int
	ExcludeDirs []string

	// ReportPath 非空时把 RunReport 以 JSON 额外落盘一份（原子写）。
	ReportPath string
}

// Error 是配置阶段的结构化错误（带 error_code）。
type Error struct {
	Code string
	Path string
	Err  error
}

func (e *Error) Error() string {
	switch e.Code {
	case ErrCodeMissingInput:
		return fmt.Sprintf("%s：未指定输入目录（--in / %s / %s 的 input 字段）", e.Code, EnvInput, FileName)
	case ErrCodeMissingOutput:
		return fmt.Sprintf("%s：未指定输出目录（--out / %s / %s 的 output 字段）", e.Code, EnvOutput, FileName)
	case ErrCodeInvalid:
		if e.Err != nil {
			return fmt.Sprintf("%s：配置无效（%s）：%v", e.Code, e.Path, e.Err)
		}
		return fmt.Sprintf("%s：配置无效（%s）", e.Code, e.Path)
	default:
		if e.Err != nil {
			return fmt.Sprintf("%s：%v", e.Code, e.Err)
		}
		return e.Code
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Code 从 error 中提取 error_code；若不是 *Error 则返回空串。
func Code(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// LoadEffective 发现并读取配置文件，然后与环境变量、CLI 参数合并为最终配置。
//
// 发现规则（固定）：<cwd>/photomv.json，不存在不算错误。
//
// 覆盖优先级（固定，从高到低）：CLI > 环境变量 > 配置文件 > 内置默认。
// dry_run 与 report 只由 CLI / 配置文件控制（不设环境变量入口）。
func LoadEffective(cwd string, cli CLIArgs) (EffectiveConfig, error) {
	cwdAbs, err := filepath.Abs(cwd)
	if err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cwd, Err: err}
	}

	cfgPath := filepath.Join(cwdAbs, FileName)
	fc, err := readFileConfig(cfgPath)
	if err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
	}

	// input：CLI > env > config；缺失是硬错误。
	in := ""
	switch {
	case cli.InSet && strings.TrimSpace(cli.In) != "":
		in = cli.In
	case strings.TrimSpace(os.Getenv(EnvInput)) != "":
		in = os.Getenv(EnvInput)
	case strings.TrimSpace(fc.Input) != "":
		in = fc.Input
	default:
		return EffectiveConfig{}, &Error{Code: ErrCodeMissingInput, Path: cfgPath}
	}

	// output：同上。
	out := ""
	switch {
	case cli.OutSet && strings.TrimSpace(cli.Out) != "":
		out = cli.Out
	case strings.TrimSpace(os.Getenv(EnvOutput)) != "":
		out = os.Getenv(EnvOutput)
	case strings.TrimSpace(fc.Output) != "":
		out = fc.Output
	default:
		return EffectiveConfig{}, &Error{Code: ErrCodeMissingOutput, Path: cfgPath}
	}

	// full_scan：CLI > env > config > 默认 false。
	fullScan := false
	if cli.FullScanSet {
		fullScan = cli.FullScan
	} else if v := strings.TrimSpace(os.Getenv(EnvFullScan)); v != "" {
		b, e := strconv.ParseBool(v)
		if e != nil {
			return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: EnvFullScan, Err: fmt.Errorf("%s=%q 不是布尔值", EnvFullScan, v)}
		}
		fullScan = b
	} else if fc.FullScan != nil {
		fullScan = *fc.FullScan
	}

	// dry_run：CLI 独占（配置文件不提供该字段，避免“以为在试跑其实在动文件”）。
	dryRun := false
	if cli.DryRunSet {
		dryRun = cli.DryRun
	}

	// concurrency：env > config > 默认；范围 [1, 32]，超出截断。
	concurrency := fc.Concurrency
	if v := strings.TrimSpace(os.Getenv(EnvConcurrency)); v != "" {
		n, e := strconv.Atoi(v)
		if e != nil {
			return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: EnvConcurrency, Err: fmt.Errorf("%s=%q 不是整数", EnvConcurrency, v)}
		}
		concurrency = n
	}
	if concurrency == 0 {
		concurrency = DefaultConcurrency
	}
	if concurrency < 1 {
		concurrency = 1
	}
	if concurrency > 32 {
		concurrency = 32
	}

	// report：CLI > config；留空表示不落盘。
	report := strings.TrimSpace(fc.Report)
	if cli.ReportSet {
		report = strings.TrimSpace(cli.Report)
	}
	if report != "" {
		report = absCleanFrom(cwdAbs, report)
	}

	return EffectiveConfig{
		InputDir:    absCleanFrom(cwdAbs, in),
		OutputDir:   absCleanFrom(cwdAbs, out),
		FullScan:    fullScan,
		DryRun:      dryRun,
		Concurrency: concurrency,
		ExcludeDirs: append([]string(nil), fc.ExcludeDirs...),
		ReportPath:  report,
	}, nil
}

// absCleanFrom 以 base 为基准，把 p 变为 clean + absolute。
// - p 若已是绝对路径：直接 Clean
// - p 若是相对路径：Join(base, p) 后 Clean
func absCleanFrom(base, p string) string {
	p = filepath.Clean(strings.TrimSpace(p))
	if p == "" {
		return ""
	}
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Clean(filepath.Join(base, p))
}

// readFileConfig 读取并解析 JSON 配置文件。文件不存在不算错误。
func readFileConfig(path string) (FileConfig, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, nil
		}
		return FileConfig{}, err
	}
	var fc FileConfig
	if err := json.Unmarshal(b, &fc); err != nil {
		return FileConfig{}, err
	}
	return fc, nil
}
