package run

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/John-Robertt/photomv/internal/config"
	"github.com/John-Robertt/photomv/internal/domain"
	"github.com/John-Robertt/photomv/internal/infra/fsx"
)

// SetupError 是 run 开始前的环境校验错误（带 error_code）。
// 与单文件失败不同：setup 错误表示整个 run 无法开始，上层应以非零码退出。
type SetupError struct {
	Code string
	Path string
	Err  error
}

func (e *SetupError) Error() string {
	switch e.Code {
	case domain.ErrCodeSetupInputInvalid:
		return fmt.Sprintf("%s：输入目录不存在或不是目录：%q", e.Code, e.Path)
	case domain.ErrCodeSetupOutputNested:
		return fmt.Sprintf("%s：输出目录不能等于或位于输入目录之下：%q", e.Code, e.Path)
	case domain.ErrCodeSetupOutputCreate:
		return fmt.Sprintf("%s：创建输出目录失败：%q：%v", e.Code, e.Path, e.Err)
	default:
		if e.Err != nil {
			return fmt.Sprintf("%s：%v", e.Code, e.Err)
		}
		return e.Code
	}
}

func (e *SetupError) Unwrap() error { return e.Err }

// SetupCode 从 error 中提取 error_code；若不是 *SetupError 则返回空串。
func SetupCode(err error) string {
	var e *SetupError
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// Setup 校验并准备运行环境。任何失败都让整个 run 不开始：
// 1) 输入目录必须存在且是目录
// 2) 输出目录不能等于输入目录，也不能嵌套在输入目录之下
//    （否则移动产物会被后续扫描再次捡起，语义无法收敛）
// 3) 输出目录不存在则创建（dry-run 也创建——目录是幂等准备动作，不算移动）
func Setup(eff config.EffectiveConfig) error {
	fi, err := os.Stat(eff.InputDir)
	if err != nil || !fi.IsDir() {
		return &SetupError{Code: domain.ErrCodeSetupInputInvalid, Path: eff.InputDir, Err: err}
	}

	if isSameOrUnder(eff.OutputDir, eff.InputDir) {
		return &SetupError{Code: domain.ErrCodeSetupOutputNested, Path: eff.OutputDir}
	}

	if err := fsx.EnsureDir(eff.OutputDir); err != nil {
		return &SetupError{Code: domain.ErrCodeSetupOutputCreate, Path: eff.OutputDir, Err: err}
	}
	return nil
}

func isSameOrUnder(path, base string) bool {
	path = filepath.Clean(path)
	base = filepath.Clean(base)
	if path == base {
		return true
	}
	sep := string(filepath.Separator)
	return strings.HasPrefix(path, base+sep)
}
