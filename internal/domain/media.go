package domain

// MediaFile 描述一次扫描得到的媒体文件（只做 stat，不读内容）。
//
// 不变量（实现必须遵守）：
// - AbsPath 必须是 clean + absolute
// - 扫描阶段只做 stat，不读文件内容
type MediaFile struct {
	AbsPath string
	RelPath string
	Base    string // filename without ext
	Ext     string // ".mp4"
	Size    int64
	ModUnix int64
}

// WorkItem 是按 CODE 聚合后的工作单元。
// 为了数据局部性，WorkItem 只保存文件下标（指向 []MediaFile），避免复制大结构体。
type WorkItem struct {
	Code    Code
	FileIdx []int
}

// Unmatched 描述一个无法归属到唯一 CODE 的输入文件。
type Unmatched struct {
	File       MediaFile
	Kind       string // "no_match" / "ambiguous"
	Candidates []Code
}
