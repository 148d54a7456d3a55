package domain

// 搬移方式：move 删除源目录项；hardlink 让目标成为同一数据的第二个名字，源保留。
const (
	ModeMove     = "move"
	ModeHardlink = "hardlink"
)

// MediaFileSet 描述同一作品的一组待搬移文件（由 naming 层构造并传入搬移层）。
//
// 不变量：
// - Files 非空，创建时所有路径都存在；顺序保留，决定多分片时的 -CD{n} 编号
// - Basename 不含路径与扩展名，且已由 naming 层做过非法字符清理与长度截断
// - 搬移层不会在调用结束后继续持有该结构
type MediaFileSet struct {
	Code     Code
	Files    []string // 绝对路径，len >= 1
	SaveDir  string
	Basename string
	Mode     string // ModeMove / ModeHardlink

	// Attr 是按文件名计算出的特殊属性标签（""/"U"/"C"/"UC"）。
	// 由 naming 层计算一次后缓存在这里，搬移层只读。
	Attr string
}
