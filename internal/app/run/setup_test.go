package run

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/John-Robertt/photomv/internal/config"
	"github.com/John-Robertt/photomv/internal/domain"
)

func TestSetup_InputMissing(t *testing.T) {
	root := t.TempDir()

	err := Setup(config.EffectiveConfig{
		InputDir:  filepath.Join(root, "nope"),
		OutputDir: filepath.Join(root, "out"),
	})
	if err == nil {
		t.Fatalf("期望错误，但得到 nil")
	}
	if SetupCode(err) != domain.ErrCodeSetupInputInvalid {
		t.Fatalf("期望 code=%s，实际 code=%s（%v）", domain.ErrCodeSetupInputInvalid, SetupCode(err), err)
	}
}

func TestSetup_InputIsFile(t *testing.T) {
	root := t.TempDir()
	in := filepath.Join(root, "in")
	if err := os.WriteFile(in, []byte("x"), 0o644); err != nil {
		t.Fatalf("写入文件失败：%v", err)
	}

	err := Setup(config.EffectiveConfig{InputDir: in, OutputDir: filepath.Join(root, "out")})
	if SetupCode(err) != domain.ErrCodeSetupInputInvalid {
		t.Fatalf("期望 code=%s，实际 %v", domain.ErrCodeSetupInputInvalid, err)
	}
}

func TestSetup_OutputEqualsInput(t *testing.T) {
	in := t.TempDir()

	err := Setup(config.EffectiveConfig{InputDir: in, OutputDir: in})
	if SetupCode(err) != domain.ErrCodeSetupOutputNested {
		t.Fatalf("期望 code=%s，实际 %v", domain.ErrCodeSetupOutputNested, err)
	}
}

func TestSetup_OutputNestedInInput(t *testing.T) {
	in := t.TempDir()

	err := Setup(config.EffectiveConfig{InputDir: in, OutputDir: filepath.Join(in, "sub", "out")})
	if SetupCode(err) != domain.ErrCodeSetupOutputNested {
		t.Fatalf("期望 code=%s，实际 %v", domain.ErrCodeSetupOutputNested, err)
	}
}

func TestSetup_InputNestedInOutputIsAllowed(t *testing.T) {
	// 反向嵌套（输入在输出之下）不构成回捡问题，允许。
	out := t.TempDir()
	in := filepath.Join(out, "in")
	if err := os.MkdirAll(in, 0o755); err != nil {
		t.Fatalf("创建目录失败：%v", err)
	}

	if err := Setup(config.EffectiveConfig{InputDir: in, OutputDir: out}); err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
}

func TestSetup_CreatesOutputDir(t *testing.T) {
	root := t.TempDir()
	in := filepath.Join(root, "in")
	out := filepath.Join(root, "a", "b", "out")
	if err := os.MkdirAll(in, 0o755); err != nil {
		t.Fatalf("创建目录失败：%v", err)
	}

	if err := Setup(config.EffectiveConfig{InputDir: in, OutputDir: out}); err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	fi, err := os.Stat(out)
	if err != nil || !fi.IsDir() {
		t.Fatalf("期望输出目录被创建：fi=%v err=%v", fi, err)
	}
}

func TestSetup_OutputIsFile(t *testing.T) {
	root := t.TempDir()
	in := filepath.Join(root, "in")
	out := filepath.Join(root, "out")
	if err := os.MkdirAll(in, 0o755); err != nil {
		t.Fatalf("创建目录失败：%v", err)
	}
	if err := os.WriteFile(out, []byte("x"), 0o644); err != nil {
		t.Fatalf("写入文件失败：%v", err)
	}

	err := Setup(config.EffectiveConfig{InputDir: in, OutputDir: out})
	if SetupCode(err) != domain.ErrCodeSetupOutputCreate {
		t.Fatalf("期望 code=%s，实际 %v", domain.ErrCodeSetupOutputCreate, err)
	}
}
