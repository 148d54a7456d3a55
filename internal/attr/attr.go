// Package attr 通过文件名启发式检测影片文件的特殊属性。
//
// 属性字母表：U（无码流出/无码破解）、C（内嵌字幕）。
// 输出是固定顺序 U 在 C 前的短标签：""、"U"、"C"、"UC"。
package attr

import (
	"path/filepath"
	"regexp"
	"strings"
)

// uncenRE 匹配“无码流出/破解”的关键词：拉丁缩写与中文两类写法都要覆盖。
var uncenRE = regexp.MustCompile(`(?i)(uncen(sor(ed)?)?([-_\s]*leak(ed)?)?|leak(ed)?|[无無][码碼](流出|破解))`)

// contributor 是一条独立的检测规则：输入大写化的 base 与可选的 CODE，
// 返回它贡献的属性字母（可能多个，例如 "UC"）；不命中返回空串。
//
// 规则之间互不依赖，便于单独测试与增删（集合合并在 Detect 中统一完成）。
type contributor func(base string, knownID string) string

var contributors = []contributor{
	matchUncensoredKeyword,
	matchTrailingToken,
	matchIDSuffix,
}

// Detect 从文件名（可附带已知 CODE）推导属性标签。
//
// 纯函数，永不失败：knownID 为空只是跳过对应规则。
// filename 可以带路径与扩展名，内部只取 base name。
func Detect(filename string, knownID string) string {
	base := filepath.Base(filename)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	base = strings.ToUpper(base)

	var hasU, hasC bool
	for _, c := range contributors {
		for _, r := range c(base, knownID) {
			switch r {
			case 'U':
				hasU = true
			case 'C':
				hasC = true
			}
		}
	}

	// 固定渲染顺序：U 在 C 前；重复贡献自然坍缩。
	out := ""
	if hasU {
		out += "U"
	}
	if hasC {
		out += "C"
	}
	return out
}

func matchUncensoredKeyword(base, _ string) string {
	if uncenRE.MatchString(base) {
		return "U"
	}
	return ""
}

// matchTrailingToken 识别以 -U/-C/-UC 结尾的命名惯例（按最后一个连字符切分）。
func matchTrailingToken(base, _ string) string {
	idx := strings.LastIndex(base, "-")
	if idx < 0 {
		return ""
	}
	switch base[idx+1:] {
	case "U", "C", "UC":
		return base[idx+1:]
	default:
		return ""
	}
}

// matchIDSuffix 在已知 CODE 时识别紧跟其后的 UC/U/C 标记，
// 例如 "IPX-177C"、"IPX_177uc"。CODE 内部的 -/_ 分隔符可互换、可重复、可省略。
func matchIDSuffix(base, knownID string) string {
	knownID = strings.TrimSpace(knownID)
	if knownID == "" {
		return ""
	}

	var b strings.Builder
	for _, seg := range strings.FieldsFunc(knownID, func(r rune) bool { return r == '-' || r == '_' }) {
		if b.Len() > 0 {
			b.WriteString(`[_-]*`)
		}
		b.WriteString(regexp.QuoteMeta(seg))
	}
	b.WriteString(`(UC|U|C)\b`)

	re, err := regexp.Compile(`(?i)` + b.String())
	if err != nil {
		// knownID 经过 QuoteMeta，理论上不可达；保守起见视为不命中。
		return ""
	}
	m := re.FindStringSubmatch(base)
	if m == nil {
		return ""
	}
	return strings.ToUpper(m[1])
}
