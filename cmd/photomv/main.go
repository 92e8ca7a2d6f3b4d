package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/John-Robertt/photomv/internal/app/run"
	"github.com/John-Robertt/photomv/internal/config"
	"github.com/John-Robertt/photomv/internal/domain"
	"github.com/John-Robertt/photomv/internal/exifx"
	"github.com/John-Robertt/photomv/internal/infra/fsx"
)

func main() {
	// .env 可选：便于把 PHOTOMV_* 环境变量放在项目目录里（缺失不算错误）。
	_ = godotenv.Load()

	args := os.Args[1:]
	if len(args) == 0 || isHelp(args[0]) {
		printUsage()
		return
	}

	switch args[0] {
	case "run":
		if code := runCmd(args[1:]); code != 0 {
			os.Exit(code)
		}
	default:
		fmt.Fprintf(os.Stderr, "未知命令：%q\n\n", args[0])
		printUsage()
		os.Exit(2)
	}
}

func runCmd(args []string) int {
	for _, a := range args {
		if isHelp(a) {
			printRunUsage()
			return 0
		}
	}

	ra, err := parseRunArgs(args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "参数错误：%v\n\n", err)
		printRunUsage()
		return 2
	}

	cwd, err := os.Getwd()
	if err != nil {
		fmt.Fprintf(os.Stderr, "读取当前目录失败：%v\n", err)
		return 1
	}

	eff, err := config.LoadEffective(cwd, config.CLIArgs{
		In:          ra.In,
		InSet:       ra.InSet,
		Out:         ra.Out,
		OutSet:      ra.OutSet,
		FullScan:    ra.FullScan,
		FullScanSet: ra.FullScanSet,
		DryRun:      ra.DryRun,
		DryRunSet:   ra.DryRunSet,
		Report:      ra.Report,
		ReportSet:   ra.ReportSet,
	})
	if err != nil {
		emitReport(reportForAbort(config.EffectiveConfig{DryRun: ra.DryRun}, config.Code(err), err))
		return 1
	}

	// setup 错误让整个 run 不开始（区别于单文件失败）。
	if err := run.Setup(eff); err != nil {
		emitReport(reportForAbort(eff, run.SetupCode(err), err))
		return 1
	}

	progressW, interactive := pickProgressWriter()
	var obs run.Observer
	if interactive {
		obs = newProgressUI(progressW)
	}

	ex := exifx.Scanner{FullScan: eff.FullScan}
	rr := run.ExecuteWithObserver(context.Background(), eff, ex, obs)

	// --report：dry-run 禁止落盘，apply 时原子写。
	if eff.ReportPath != "" && !eff.DryRun {
		if err := writeReportFile(eff.ReportPath, rr); err != nil {
			fmt.Fprintf(os.Stderr, "写入报告失败：%v\n", err)
			emitReport(rr)
			return 1
		}
	}

	emitReport(rr)
	if interactive {
		emitLocations(progressW, eff)
	}

	// 单文件失败不改变退出码：报告已完整呈现 failed 条目，
	// 让脚本方能区分“run 没跑起来”与“跑完但有失败条目”。
	return 0
}

type runArgs struct {
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

func parseRunArgs(args []string) (runArgs, error) {
	ra := runArgs{}

	takeValue := func(i *int, name string) (string, error) {
		if *i+1 >= len(args) {
			return "", fmt.Errorf("%s 需要一个值", name)
		}
		*i++
		return args[*i], nil
	}
	parseBool := func(name, v string) (bool, error) {
		switch v {
		case "true":
			return true, nil
		case "false":
			return false, nil
		default:
			return false, fmt.Errorf("%s 只能是 true 或 false，实际是 %q", name, v)
		}
	}

	for i := 0; i < len(args); i++ {
		a := args[i]
		switch {
		case a == "--in":
			v, err := takeValue(&i, "--in")
			if err != nil {
				return runArgs{}, err
			}
			ra.In = v
			ra.InSet = true
		case strings.HasPrefix(a, "--in="):
			ra.In = strings.TrimPrefix(a, "--in=")
			ra.InSet = true
		case a == "--out":
			v, err := takeValue(&i, "--out")
			if err != nil {
				return runArgs{}, err
			}
			ra.Out = v
			ra.OutSet = true
		case strings.HasPrefix(a, "--out="):
			ra.Out = strings.TrimPrefix(a, "--out=")
			ra.OutSet = true
		case a == "--full-scan":
			ra.FullScan = true
			ra.FullScanSet = true
		case strings.HasPrefix(a, "--full-scan="):
			b, err := parseBool("--full-scan", strings.TrimPrefix(a, "--full-scan="))
			if err != nil {
				return runArgs{}, err
			}
			ra.FullScan = b
			ra.FullScanSet = true
		case a == "--dry-run":
			ra.DryRun = true
			ra.DryRunSet = true
		case strings.HasPrefix(a, "--dry-run="):
			b, err := parseBool("--dry-run", strings.TrimPrefix(a, "--dry-run="))
			if err != nil {
				return runArgs{}, err
			}
			ra.DryRun = b
			ra.DryRunSet = true
		case a == "--report":
			v, err := takeValue(&i, "--report")
			if err != nil {
				return runArgs{}, err
			}
			ra.Report = v
			ra.ReportSet = true
		case strings.HasPrefix(a, "--report="):
			ra.Report = strings.TrimPrefix(a, "--report=")
			ra.ReportSet = true
		default:
			return runArgs{}, fmt.Errorf("未知参数 %q", a)
		}
	}

	return ra, nil
}

func isHelp(s string) bool {
	return s == "-h" || s == "--help" || s == "help"
}

func printUsage() {
	fmt.Fprint(os.Stdout, `用法：
  photomv run --in <dir> --out <dir> [--full-scan] [--dry-run] [--report <path>]

命令：
  run    按拍摄时间重命名并移动 JPEG（默认直接执行；--dry-run 只规划）

使用 "photomv run --help" 查看详细说明。
`)
}

func printRunUsage() {
	fmt.Fprint(os.Stdout, `用法：
  photomv run --in <dir> --out <dir> [--full-scan] [--dry-run] [--report <path>]

参数：
  --in         输入目录（也可用 PHOTOMV_INPUT 或 photomv.json 的 input）
  --out        输出目录（也可用 PHOTOMV_OUTPUT 或 photomv.json 的 output）
  --full-scan  读取整个文件再解码 EXIF（默认只读头部 64KiB 窗口）
  --dry-run    只扫描/提取/规划，不移动任何文件
  --report     额外把 RunReport JSON 原子写入该路径（dry-run 不落盘）
  -h, --help   显示帮助
`)
}

func emitReport(rr domain.RunReport) {
	if isTTY(os.Stdout) {
		fmt.Fprintf(os.Stdout, "完成：moved=%d planned=%d failed=%d\n",
			rr.Summary.Moved, rr.Summary.Planned, rr.Summary.Failed,
		)
		if rr.Summary.Failed > 0 {
			for _, it := range rr.Items {
				if it.Status != domain.FileStatusFailed {
					continue
				}
				key := it.Src
				if key == "" {
					key = "<run>"
				}
				fmt.Fprintf(os.Stderr, "%s %s: %s\n", key, it.ErrorCode, it.ErrorMsg)
			}
		}
		return
	}

	// stdout 非 TTY：stdout 必须且仅输出一个 RunReport JSON（日志/摘要走 stderr）。
	enc := json.NewEncoder(os.Stdout)
	_ = enc.Encode(rr)
	fmt.Fprintf(os.Stderr, "完成：moved=%d planned=%d failed=%d\n",
		rr.Summary.Moved, rr.Summary.Planned, rr.Summary.Failed,
	)
}

// reportForAbort 为“run 没跑起来”的错误（config / setup）合成一份报告，
// 保证 stdout 的 JSON 契约在失败路径也成立。
func reportForAbort(eff config.EffectiveConfig, code string, err error) domain.RunReport {
	now := time.Now().UTC()
	rr := domain.RunReport{
		InputDir:   eff.InputDir,
		OutputDir:  eff.OutputDir,
		FullScan:   eff.FullScan,
		DryRun:     eff.DryRun,
		StartedAt:  now,
		FinishedAt: now,
		Items: []domain.FileResult{{
			Src:       "",
			Status:    domain.FileStatusFailed,
			Stage:     domain.StageSetup,
			ErrorCode: code,
			ErrorMsg:  err.Error(),
		}},
	}
	rr.Finalize()
	return rr
}

func writeReportFile(path string, rr domain.RunReport) error {
	b, err := json.MarshalIndent(rr, "", "  ")
	if err != nil {
		return err
	}
	b = append(b, '\n')
	return fsx.WriteFileAtomicReplace(filepath.Dir(path), filepath.Base(path), b)
}

func isTTY(f *os.File) bool {
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}

func pickProgressWriter() (io.Writer, bool) {
	// 进度输出只在交互终端启用；默认走 stderr（不污染 stdout JSON）。
	if isTTY(os.Stderr) {
		return os.Stderr, true
	}
	// 某些环境（例如仅重定向 stderr）下，stdout 仍是 TTY：退化输出到 stdout。
	if isTTY(os.Stdout) {
		return os.Stdout, true
	}
	return nil, false
}

func emitLocations(w io.Writer, eff config.EffectiveConfig) {
	// 这两行用于降低“完成后不知道产物在哪”的摩擦，且不影响 stdout JSON 契约。
	if w == nil {
		return
	}
	fmt.Fprintf(w, "out: %s\n", eff.OutputDir)
	if eff.ReportPath != "" && !eff.DryRun {
		fmt.Fprintf(w, "report: %s\n", eff.ReportPath)
	}
}
