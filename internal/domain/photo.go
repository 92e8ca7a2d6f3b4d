package domain

// PhotoFile 描述一次扫描得到的 JPEG 候选文件（只做 stat，不读内容）。
//
// 不变量（实现必须遵守）：
// - AbsPath 必须是 clean + absolute
// - 扫描阶段只做 stat，不读文件内容
// - 枚举完成后不再修改（后续阶段只读）
type PhotoFile struct {
	AbsPath string
	RelPath string
	Base    string // filename without ext
	Ext     string // ".jpg"
	Size    int64
	ModUnix int64
}
