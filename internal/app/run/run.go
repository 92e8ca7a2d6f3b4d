package run

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/John-Robertt/photomv/internal/app/planner"
	"github.com/John-Robertt/photomv/internal/config"
	"github.com/John-Robertt/photomv/internal/domain"
	"github.com/John-Robertt/photomv/internal/exifx"
	"github.com/John-Robertt/photomv/internal/infra/fsx"
	"github.com/John-Robertt/photomv/internal/scan"
)

// Extractor 从单个文件提取拍摄时间字符串。
// 生产实现是 exifx.Scanner；测试可注入桩以构造提取成败组合。
type Extractor interface {
	Scan(path string) (string, error)
}

// Execute 执行一次 run（scan -> extract -> plan -> move），返回对外稳定的 RunReport。
// 该函数尽量把错误“降级”为单文件失败（单条失败不影响其他文件）。
func Execute(ctx context.Context, eff config.EffectiveConfig, ex Extractor) domain.RunReport {
	return ExecuteWithObserver(ctx, eff, ex, nil)
}

// ExecuteWithObserver 与 Execute 相同，但允许传入 Observer 以输出进度/阶段信息（由上层决定是否启用）。
//
// 分区不变量：扫描得到的每个候选文件，恰好出现在返回的 Items 中一次
// （moved / planned / failed 之一）。两个并发阶段（extract / move）的失败
// 统一进 Sink，成功走索引切片，最后合并——不重复、不遗漏。
func ExecuteWithObserver(ctx context.Context, eff config.EffectiveConfig, ex Extractor, obs Observer) domain.RunReport {
	started := time.Now().UTC()

	if obs != nil {
		obs.OnStart(eff)
	}

	rr := domain.RunReport{
		RunID:     uuid.NewString(),
		InputDir:  eff.InputDir,
		OutputDir: eff.OutputDir,
		FullScan:  eff.FullScan,
		DryRun:    eff.DryRun,
		StartedAt: started,
		Items:     make([]domain.FileResult, 0, 128),
	}

	workers := eff.Concurrency
	if workers < 1 {
		workers = 1
	}

	scanStarted := time.Now()
	files, err := scan.Scan(eff.InputDir, eff.ExcludeDirs)
	if err != nil {
		rr.Items = append(rr.Items, syntheticFailed(domain.ErrCodeIOFailed, fmt.Sprintf("扫描失败：%v", err)))
		return finish(&rr)
	}
	if obs != nil {
		obs.OnPhaseDone("scan", map[string]any{"files": len(files)}, time.Since(scanStarted))
	}

	// extract：按文件并发（worker pool）。成功写入索引切片（每个下标只有
	// 一个 worker 写），失败进 Sink；wg.Wait 是规划前的同步屏障。
	var sink Sink
	timestamps := make([]string, len(files))
	extracted := make([]bool, len(files))

	type fileEvent struct {
		res domain.FileResult
		dur time.Duration
	}

	extractStarted := time.Now()
	{
		jobs := make(chan int)
		events := make(chan fileEvent, len(files))

		var wg sync.WaitGroup
		for w := 0; w < workers; w++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for i := range jobs {
					oneStarted := time.Now()
					f := files[i]
					res := domain.FileResult{Src: f.RelPath, Status: domain.FileStatusExtracted, Stage: domain.StageExtract}

					ts, err := extractOne(ctx, ex, f.AbsPath)
					if err != nil {
						code := extractErrCode(err)
						sink.Add(domain.FailureRecord{Src: f.RelPath, Stage: domain.StageExtract, Code: code, Msg: err.Error()})
						res.Status = domain.FileStatusFailed
						res.ErrorCode = code
						res.ErrorMsg = err.Error()
					} else {
						timestamps[i] = ts
						extracted[i] = true
					}
					events <- fileEvent{res: res, dur: time.Since(oneStarted)}
				}
			}()
		}

		go func() {
			for i := range files {
				jobs <- i
			}
			close(jobs)
			wg.Wait()
			close(events)
		}()

		done := 0
		for ev := range events {
			done++
			if obs != nil {
				obs.OnFileDone("extract", done, len(files), ev.res, ev.dur)
			}
		}
	}

	okCount := 0
	for i := range extracted {
		if extracted[i] {
			okCount++
		}
	}
	if obs != nil {
		obs.OnPhaseDone("extract", map[string]any{
			"ok":     okCount,
			"failed": sink.Len(),
		}, time.Since(extractStarted))
	}

	// plan：单线程单遍（顺序性是命名正确性的前提，见 planner）。
	planStarted := time.Now()
	st, err := planner.ReadDestState(eff.OutputDir)
	if err != nil {
		// 目标目录快照失败：所有提取成功的候选都无法规划，逐条降级为失败。
		for i := range files {
			if !extracted[i] {
				continue
			}
			sink.Add(domain.FailureRecord{
				Src:   files[i].RelPath,
				Stage: domain.StageMove,
				Code:  domain.ErrCodeIOFailed,
				Msg:   fmt.Sprintf("读取输出目录失败：%v", err),
			})
		}
		rr.Items = append(rr.Items, failureItems(&sink)...)
		return finish(&rr)
	}

	okIdx := make([]int, 0, okCount)
	extractions := make([]planner.Extraction, 0, okCount)
	for i := range files {
		if !extracted[i] {
			continue
		}
		okIdx = append(okIdx, i)
		extractions = append(extractions, planner.Extraction{File: files[i], Timestamp: timestamps[i]})
	}
	moves := planner.PlanMoves(extractions, st)
	if obs != nil {
		obs.OnPhaseDone("plan", map[string]any{"moves": len(moves)}, time.Since(planStarted))
	}

	// dry-run：规划即终点，不触盘。
	if eff.DryRun {
		for j := range moves {
			rr.Items = append(rr.Items, domain.FileResult{
				Src:    files[okIdx[j]].RelPath,
				Dst:    dstRel(eff, moves[j].DstAbs),
				Status: domain.FileStatusPlanned,
			})
		}
		rr.Items = append(rr.Items, failureItems(&sink)...)
		return finish(&rr)
	}

	// move：按文件并发。目标名两两不同（规划保证），所以 worker 之间没有
	// 共享目标路径；单条 rename 失败只影响自己。
	moveStarted := time.Now()
	moved := make([]bool, len(moves))
	{
		jobs := make(chan int)
		events := make(chan fileEvent, len(moves))

		var wg sync.WaitGroup
		for w := 0; w < workers; w++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for j := range jobs {
					oneStarted := time.Now()
					mv := moves[j]
					src := files[okIdx[j]].RelPath
					res := domain.FileResult{Src: src, Dst: dstRel(eff, mv.DstAbs), Status: domain.FileStatusMoved}

					err := moveOne(ctx, mv)
					if err != nil {
						code := domain.ErrCodeMoveFailed
						if fsx.IsCrossDevice(err) {
							code = domain.ErrCodeMoveCrossDevice
						}
						sink.Add(domain.FailureRecord{Src: src, Stage: domain.StageMove, Code: code, Msg: err.Error()})
						res.Status = domain.FileStatusFailed
						res.Stage = domain.StageMove
						res.ErrorCode = code
						res.ErrorMsg = err.Error()
					} else {
						moved[j] = true
					}
					events <- fileEvent{res: res, dur: time.Since(oneStarted)}
				}
			}()
		}

		go func() {
			for j := range moves {
				jobs <- j
			}
			close(jobs)
			wg.Wait()
			close(events)
		}()

		done := 0
		for ev := range events {
			done++
			if obs != nil {
				obs.OnFileDone("move", done, len(moves), ev.res, ev.dur)
			}
		}
	}

	movedCount := 0
	for j := range moved {
		if moved[j] {
			movedCount++
		}
	}
	if obs != nil {
		obs.OnPhaseDone("move", map[string]any{
			"moved":  movedCount,
			"failed": len(moves) - movedCount,
		}, time.Since(moveStarted))
	}

	// 汇总：成功的 move 走索引切片，全部失败从 Sink 排出；二者无交集。
	for j := range moves {
		if !moved[j] {
			continue
		}
		rr.Items = append(rr.Items, domain.FileResult{
			Src:    files[okIdx[j]].RelPath,
			Dst:    dstRel(eff, moves[j].DstAbs),
			Status: domain.FileStatusMoved,
		})
	}
	rr.Items = append(rr.Items, failureItems(&sink)...)
	return finish(&rr)
}

func finish(rr *domain.RunReport) domain.RunReport {
	rr.FinishedAt = time.Now().UTC()
	rr.Finalize()
	return *rr
}

func extractOne(ctx context.Context, ex Extractor, path string) (string, error) {
	// ctx 取消：剩余文件统一降级为失败（保持分区不变量，不中途丢弃）。
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return ex.Scan(path)
}

func moveOne(ctx context.Context, mv domain.MovePlan) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return fsx.Rename(mv.SrcAbs, mv.DstAbs)
}

func extractErrCode(err error) string {
	switch exifx.Kind(err) {
	case exifx.KindIO:
		return domain.ErrCodeExtractIO
	case exifx.KindDecode:
		return domain.ErrCodeExtractDecode
	case exifx.KindTagNotFound:
		return domain.ErrCodeExtractTagNotFound
	default:
		return domain.ErrCodeIOFailed
	}
}

func failureItems(s *Sink) []domain.FileResult {
	recs := s.Drain()
	out := make([]domain.FileResult, 0, len(recs))
	for _, r := range recs {
		out = append(out, domain.FileResult{
			Src:       r.Src,
			Status:    domain.FileStatusFailed,
			Stage:     r.Stage,
			ErrorCode: r.Code,
			ErrorMsg:  r.Msg,
		})
	}
	return out
}

// dstRel 把目标绝对路径转为相对输出目录的路径（报告里更短更稳定）。
func dstRel(eff config.EffectiveConfig, abs string) string {
	if rel, err := filepath.Rel(eff.OutputDir, abs); err == nil {
		return rel
	}
	return abs
}

func syntheticFailed(code, msg string) domain.FileResult {
	return domain.FileResult{
		Src:       "",
		Status:    domain.FileStatusFailed,
		Stage:     domain.StageSetup,
		ErrorCode: code,
		ErrorMsg:  msg,
	}
}
