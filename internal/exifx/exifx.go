package exifx

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/rwcarlsen/goexif/exif"
)

// DefaultWindow 是默认的头部读取窗口。典型 JPEG 的 EXIF 块位于文件开头的
// APP1 段内，64 KiB 足以覆盖绝大多数相机的写法；窗口之外的标签只能靠
// full-scan 模式读到。
const DefaultWindow = 64 * 1024

const (
	// KindIO 表示文件无法打开/读取。
	KindIO = "io"
	// KindDecode 表示解码器拒绝了读到的字节（含无 EXIF 数据的 JPEG）。
	KindDecode = "decode"
	// KindTagNotFound 表示解码成功但没有拍摄时间标签。
	KindTagNotFound = "tag_not_found"
)

// Error 是提取阶段的结构化错误（带 kind）。
type Error struct {
	Path string
	Kind string
	Err  error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindIO:
		return fmt.Sprintf("读取文件失败：%q：%v", e.Path, e.Err)
	case KindDecode:
		return fmt.Sprintf("解码 EXIF 失败：%q：%v", e.Path, e.Err)
	case KindTagNotFound:
		return fmt.Sprintf("未找到 DateTimeOriginal 标签：%q", e.Path)
	default:
		if e.Err != nil {
			return fmt.Sprintf("%s：%v", e.Kind, e.Err)
		}
		return e.Kind
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Kind 从 error 中提取失败类别；若不是 *Error 则返回空串。
func Kind(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Scanner 从单个文件中提取拍摄时间字符串。
//
// 读取策略是一个延迟/吞吐权衡：
// - 默认只读头部窗口（Window，0 表示 DefaultWindow）：快，但窗口之外的
//   标签会表现为 decode / tag_not_found 失败
// - FullScan=true：读整个文件后解码，精确但慢
type Scanner struct {
	FullScan bool
	Window   int
}

// Scan 返回 DateTimeOriginal 的原始字符串值（"YYYY:MM:DD HH:MM:SS"），
// 不做进一步校验，原样交给命名阶段。除读取外没有任何副作用。
func (s Scanner) Scan(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", &Error{Path: path, Kind: KindIO, Err: err}
	}
	defer f.Close()

	var buf []byte
	if s.FullScan {
		buf, err = io.ReadAll(f)
		if err != nil {
			return "", &Error{Path: path, Kind: KindIO, Err: err}
		}
	} else {
		w := s.Window
		if w <= 0 {
			w = DefaultWindow
		}
		buf = make([]byte, w)
		n, err := io.ReadFull(f, buf)
		if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
			return "", &Error{Path: path, Kind: KindIO, Err: err}
		}
		buf = buf[:n]
	}

	// 解码器是黑盒：任何解码失败（含“根本没有 EXIF 段”）都归为 decode。
	x, err := exif.Decode(bytes.NewReader(buf))
	if err != nil {
		return "", &Error{Path: path, Kind: KindDecode, Err: err}
	}

	tag, err := x.Get(exif.DateTimeOriginal)
	if err != nil {
		return "", &Error{Path: path, Kind: KindTagNotFound, Err: err}
	}

	v, err := tag.StringVal()
	if err != nil {
		// 标签存在但不是 ASCII 字符串：按解码失败处理。
		return "", &Error{Path: path, Kind: KindDecode, Err: err}
	}
	return v, nil
}
