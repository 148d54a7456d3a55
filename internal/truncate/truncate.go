// Package truncate 把候选文件名截断到长度预算内，同时尽量保住可读性：
// 优先在标点处截断，按字节计长时绝不切开多字节字符。
package truncate

import (
	"strings"
	"unicode/utf8"
)

// 长度单位：按字符数或按 UTF-8 字节数计长。
// 字节单位服务于以字节数限制文件名的文件系统（例如 ext4 的 255 字节）。
const (
	UnitChars = "chars"
	UnitBytes = "bytes"
)

// punctuationSet 是截断点候选：宽窄两类（CJK 全角与拉丁半角）标点。
// 块切分在这些字符之后立即断开，使截断结果停在语义边界上。
const punctuationSet = `。！？；，、：“”‘’（）【】《》〈〉…·～—-_=+|\/*&^%$#@`

// Truncate 把 name 截断到 maxLen（按 unit 计长）以内。
//
// 返回值 degenerate=true 表示命中了“扩展名独占甚至超出预算”的退化情形：
// 此时返回的是被截断的扩展名本身（或空串），调用方应把它当作可上报的警告，
// 而不是静默接受。除该情形外，结果长度一定 <= maxLen。
//
// 对已经足够短的输入是幂等的：原样返回。
func Truncate(name string, maxLen int, unit string, preserveExt bool) (result string, degenerate bool) {
	if name == "" {
		return name, false
	}
	if measure(name, unit) <= maxLen {
		return name, false
	}

	base, ext := name, ""
	if preserveExt {
		if idx := strings.LastIndex(name, "."); idx >= 0 {
			base, ext = name[:idx], name[idx:]
		}
	}

	avail := maxLen - measure(ext, unit)
	if avail <= 0 {
		// 扩展名本身就占满/超出预算：只能保留截断后的扩展名。
		if preserveExt && ext != "" {
			return cut(ext, maxLen, unit), true
		}
		return "", true
	}

	// 先按标点切块，再贪心累加：保住尽可能多的完整语义块。
	out := ""
	for _, chunk := range splitAfterPunct(base) {
		if measure(out+chunk, unit) <= avail {
			out += chunk
			continue
		}
		if remain := avail - measure(out, unit); remain > 0 {
			out += cut(chunk, remain, unit)
		}
		break
	}

	// 病态输入（无标点或首块即超长）兜底：对 base 做平坦左截断。
	if out == "" || measure(out, unit) > avail {
		out = cut(base, avail, unit)
	}
	return out + ext, false
}

func measure(s string, unit string) int {
	if unit == UnitChars {
		return utf8.RuneCountInString(s)
	}
	return len(s)
}

// cut 取 s 的前 n 个单位；字节单位下回退到完整字符边界，绝不产出非法编码。
func cut(s string, n int, unit string) string {
	if n <= 0 {
		return ""
	}
	if unit == UnitChars {
		runes := []rune(s)
		if len(runes) <= n {
			return s
		}
		return string(runes[:n])
	}
	if len(s) <= n {
		return s
	}
	b := []byte(s)[:n]
	for len(b) > 0 && !utf8.Valid(b) {
		b = b[:len(b)-1]
	}
	return string(b)
}

// splitAfterPunct 把 s 切成块：每个标点字符归属其前面的块（断点在标点之后）。
func splitAfterPunct(s string) []string {
	parts := make([]string, 0, 8)
	cur := strings.Builder{}
	for _, r := range s {
		cur.WriteRune(r)
		if strings.ContainsRune(punctuationSet, r) {
			parts = append(parts, cur.String())
			cur.Reset()
		}
	}
	if cur.Len() > 0 {
		parts = append(parts, cur.String())
	}
	return parts
}
