// Package purge 判断一个目录是否可以在搬移完成后被安全清理。
//
// 判定是目录列表 + 规则表的纯函数，没有持久化状态；每次清理尝试都重新计算。
package purge

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// smallFileThreshold 以下的文件按“疑似残留元数据”处理（可删除）。
const smallFileThreshold = 10 * 1024

// Verdict 是目录安全性判定结果：Safe=false 时 Reasons 按条目顺序给出阻止原因。
type Verdict struct {
	Safe    bool
	Reasons []string
}

// deletableExts 是确认可删除的扩展名：图片、字幕、sidecar 元数据、
// 校验/链接文件、常见临时与备份后缀。
var deletableExts = map[string]struct{}{
	// 图片
	".jpg": {}, ".jpeg": {}, ".png": {}, ".gif": {}, ".bmp": {},
	".tiff": {}, ".tif": {}, ".webp": {},
	// 元数据与信息文件
	".nfo": {}, ".xml": {}, ".txt": {}, ".json": {}, ".db": {},
	".ini": {}, ".log": {},
	// 字幕
	".srt": {}, ".ass": {}, ".ssa": {}, ".vtt": {}, ".sub": {},
	".idx": {}, ".sup": {},
	// 链接与校验
	".url": {}, ".lnk": {}, ".torrent": {}, ".magnet": {},
	".md5": {}, ".sha1": {},
	// 临时与备份
	".tmp": {}, ".temp": {}, ".bak": {}, ".old": {}, ".swp": {},
}

// deletableNames 是确认可删除的完整文件名（全小写比较）：
// 常见封面/海报/横幅命名惯例、系统索引文件、标准 NFO 聚合名。
var deletableNames = map[string]struct{}{
	"thumbs.db": {}, "desktop.ini": {}, ".ds_store": {},
	"folder.jpg": {}, "folder.png": {},
	"cover.jpg": {}, "cover.png": {},
	"poster.jpg": {}, "poster.png": {},
	"fanart.jpg": {}, "fanart.png": {},
	"background.jpg": {}, "background.png": {},
	"banner.jpg": {}, "banner.png": {},
	"logo.jpg": {}, "logo.png": {},
	"movie.nfo": {}, "tvshow.nfo": {}, "season.nfo": {}, "episode.nfo": {},
}

// rule 是一条按优先级顺序评估的判定规则。
//
// block 非空表示该条目阻止清理；matched 表示规则命中（终止后续规则）。
// 规则表形态让新增可删除类别时不必改动控制流。
type rule func(e entry) (matched bool, block string)

type entry struct {
	name    string // 原始文件名
	lower   string // 全小写，含扩展名
	ext     string // 全小写扩展名
	isDir   bool
	size    int64
	impExts map[string]struct{}
}

var rules = []rule{
	// 子目录永远阻止（本分析器不递归检查嵌套目录）。
	func(e entry) (bool, string) {
		if e.isDir {
			return true, "子目录: " + e.name
		}
		return false, ""
	},
	// 重要扩展名（调用方的视频扩展名集合）阻止。
	func(e entry) (bool, string) {
		if _, ok := e.impExts[e.ext]; ok {
			return true, "视频文件: " + e.name
		}
		return false, ""
	},
	// 可删除扩展名：跳过。
	func(e entry) (bool, string) {
		_, ok := deletableExts[e.ext]
		return ok, ""
	},
	// 可删除文件名：跳过。
	func(e entry) (bool, string) {
		_, ok := deletableNames[e.lower]
		return ok, ""
	},
	// 小文件视为残留元数据：跳过。
	func(e entry) (bool, string) {
		return e.size < smallFileThreshold, ""
	},
}

// Analyze 对 folderPath 的每个目录项按规则表判定，汇总为 Verdict。
//
// importantExts 中的扩展名必须是全小写、以 '.' 开头。
// 路径不存在或不是目录：按“空目录”处理，返回 safe（这让清理可以无条件调用）。
// 列目录的 I/O 错误不向上传播：返回 unsafe + 诊断原因。
func Analyze(folderPath string, importantExts map[string]struct{}) Verdict {
	fi, err := os.Stat(folderPath)
	if err != nil || !fi.IsDir() {
		return Verdict{Safe: true, Reasons: []string{}}
	}

	entries, err := os.ReadDir(folderPath)
	if err != nil {
		return Verdict{Safe: false, Reasons: []string{fmt.Sprintf("访问目录失败: %v", err)}}
	}

	reasons := make([]string, 0, 4)
	for _, de := range entries {
		e := entry{
			name:    de.Name(),
			lower:   strings.ToLower(de.Name()),
			isDir:   de.IsDir(),
			impExts: importantExts,
		}
		e.ext = filepath.Ext(e.lower)

		if !e.isDir {
			if info, err := de.Info(); err == nil {
				e.size = info.Size()
			} else {
				// stat 失败：size 视为 0（小文件规则会放行），与清理时的再判定一致。
				e.size = 0
			}
		}

		matched := false
		for _, r := range rules {
			ok, block := r(e)
			if !ok {
				continue
			}
			if block != "" {
				reasons = append(reasons, block)
			}
			matched = true
			break
		}
		if !matched {
			reasons = append(reasons, "未知文件: "+e.name)
		}
	}

	return Verdict{Safe: len(reasons) == 0, Reasons: reasons}
}
