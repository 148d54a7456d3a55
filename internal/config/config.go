package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/John-Robertt/AVMO/internal/domain"
)

const (
	// ErrCodeNotFound 表示无参运行但 cwd 下没有 avmo.json。
	ErrCodeNotFound = "config_not_found"
	// ErrCodeInvalid 表示配置文件无法读取/解析，或字段不合法。
	ErrCodeInvalid = "config_invalid"
	// ErrCodeMissingPath 表示无参运行但配置文件缺少 path 字段。
	ErrCodeMissingPath = "config_missing_path"
)

const (
	// DefaultConcurrency 是并发的内置默认值（当配置未指定时）。
	DefaultConcurrency = 4
	// DefaultMaxNameLength 是文件名长度预算的默认值（按字节，给 255 字节
	// 上限的文件系统留出 -CD{n} 与扩展名的余量）。
	DefaultMaxNameLength = 240
)

// DefaultImportantExtensions 是默认的重要（视频）扩展名集合：
// 清理判定中这些文件永远阻止删除，同时也是扫描阶段的采集范围。
var DefaultImportantExtensions = []string{
	".3gp", ".avi", ".f4v", ".flv", ".iso", ".m2ts", ".m4v", ".mkv",
	".mov", ".mp4", ".mpeg", ".mpg", ".rm", ".rmvb", ".strm", ".ts",
	".vob", ".webm", ".wmv",
}

// CLIArgs 只包含 CLI 暴露的入口（path/mode/apply），并保留“是否显式指定”的信息。
// 这能保证覆盖优先级可实现：例如 --apply=false 必须能覆盖 config.apply=true。
type CLIArgs struct {
	Path string

	Mode    string
	ModeSet bool

	Apply    bool
	ApplySet bool
}

// FileConfig 对应 avmo.json 的解析结构。
type FileConfig struct {
	Path                string   `json:"path"`
	Apply               *bool    `json:"apply"`
	Mode                string   `json:"mode"`
	Concurrency         int      `json:"concurrency"`
	CleanupSource       *bool    `json:"cleanup_source"`
	ImportantExtensions []string `json:"important_extensions"`
	MaxNameLength       int      `json:"max_name_length"`
	LengthUnit          string   `json:"length_unit"`
	PreserveExt         *bool    `json:"preserve_ext"`
	ExcludeDirs         []string `json:"exclude_dirs"`
	Journal             *bool    `json:"journal"`
}

// EffectiveConfig 是合并并做最小规范化后的最终配置（实现层直接消费，不再做二次默认/优先级判断）。
type EffectiveConfig struct {
	Path string

	Apply bool
	Mode  string // domain.ModeMove / domain.ModeHardlink

	Concurrency   int
	CleanupSource bool

	// ImportantExts 已规范化：全小写、带点、去重后保持稳定顺序。
	ImportantExts []string

	MaxNameLen  int
	LengthUnit  string // "bytes" / "chars"
	PreserveExt bool

	ExcludeDirs []string
	Journal     bool
}

// ImportantExtSet 把 ImportantExts 转为集合，供清理判定使用。
func (e EffectiveConfig) ImportantExtSet() map[string]struct{} {
	s := make(map[string]struct{}, len(e.ImportantExts))
	for _, x := range e.ImportantExts {
		s[x] = struct{}{}
	}
	return s
}

// Error 是配置阶段的结构化错误（带 error_code）。
type Error struct {
	Code string
	Path string
	Err  error
}

func (e *Error) Error() string {
	switch e.Code {
	case ErrCodeNotFound:
		return fmt.Sprintf("%s：未找到配置文件 %q", e.Code, e.Path)
	case ErrCodeMissingPath:
		return fmt.Sprintf("%s：配置文件 %q 缺少必填字段 path", e.Code, e.Path)
	case ErrCodeInvalid:
		if e.Err != nil {
			return fmt.Sprintf("%s：配置文件 %q 无效：%v", e.Code, e.Path, e.Err)
		}
		return fmt.Sprintf("%s：配置文件 %q 无效", e.Code, e.Path)
	default:
		if e.Err != nil {
			return fmt.Sprintf("%s：%v", e.Code, e.Err)
		}
		return e.Code
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Code 从 error 中提取 error_code；若不是 *Error 则返回空串。
func Code(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// LoadEffective 按文档约定发现并读取配置文件，然后与 CLI 参数合并为最终配置。
//
// 发现规则（固定）：
// 1) CLI 提供 path：尝试读取 <path>/avmo.json（可选）
// 2) CLI 未提供 path：必须读取 <cwd>/avmo.json（必选），且其中必须包含 path
//
// 覆盖优先级（固定）：
// - path：CLI path > config path
// - mode：CLI > config > 默认 move
// - apply：CLI --apply/--apply=false > config > 默认 false
// - 其他字段：仅由 config 控制（CLI 不暴露）
func LoadEffective(cwd string, cli CLIArgs) (EffectiveConfig, error) {
	cwdAbs, err := filepath.Abs(cwd)
	if err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cwd, Err: err}
	}

	var (
		cfgPath string
		fc      FileConfig
	)

	if strings.TrimSpace(cli.Path) != "" {
		// CLI 给了 path：配置文件可选，位置固定在 <path>/avmo.json。
		absPath := absCleanFrom(cwdAbs, cli.Path)
		cfgPath = filepath.Join(absPath, "avmo.json")

		fc, _, err = readFileConfig(cfgPath)
		if err != nil {
			return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
		}
		// 不存在也不报错。

		return merge(absPath, cli, fc, cfgPath)
	}

	// CLI 没给 path：必须读取 <cwd>/avmo.json，且其中必须包含 path。
	cfgPath = filepath.Join(cwdAbs, "avmo.json")
	var exists bool
	fc, exists, err = readFileConfig(cfgPath)
	if err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
	}
	if !exists {
		return EffectiveConfig{}, &Error{Code: ErrCodeNotFound, Path: cfgPath, Err: os.ErrNotExist}
	}
	if strings.TrimSpace(fc.Path) == "" {
		return EffectiveConfig{}, &Error{Code: ErrCodeMissingPath, Path: cfgPath}
	}

	absPath := absCleanFrom(cwdAbs, fc.Path)
	return merge(absPath, cli, fc, cfgPath)
}

func merge(absPath string, cli CLIArgs, fc FileConfig, cfgPath string) (EffectiveConfig, error) {
	// mode：CLI > config > 默认 move
	mode := domain.ModeMove
	if cli.ModeSet {
		mode = cli.Mode
	} else if strings.TrimSpace(fc.Mode) != "" {
		mode = fc.Mode
	}
	if err := validateMode(mode); err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
	}

	// apply：CLI > config > 默认 false
	apply := false
	if cli.ApplySet {
		apply = cli.Apply
	} else if fc.Apply != nil {
		apply = *fc.Apply
	}

	concurrency := fc.Concurrency
	if concurrency == 0 {
		concurrency = DefaultConcurrency
	}
	// 文档约定：范围建议 [1, 32]；超出截断。
	if concurrency < 1 {
		concurrency = 1
	}
	if concurrency > 32 {
		concurrency = 32
	}

	cleanup := true
	if fc.CleanupSource != nil {
		cleanup = *fc.CleanupSource
	}

	exts, err := normalizeExtensions(fc.ImportantExtensions)
	if err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
	}

	maxLen := fc.MaxNameLength
	if maxLen == 0 {
		maxLen = DefaultMaxNameLength
	}
	if maxLen < 0 {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: fmt.Errorf("max_name_length 不能为负数：%d", fc.MaxNameLength)}
	}

	unit := strings.TrimSpace(fc.LengthUnit)
	if unit == "" {
		unit = "bytes"
	}
	switch unit {
	case "bytes", "chars":
		// ok
	default:
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: fmt.Errorf("length_unit 只能是 bytes 或 chars，实际是 %q", fc.LengthUnit)}
	}

	preserveExt := true
	if fc.PreserveExt != nil {
		preserveExt = *fc.PreserveExt
	}

	journal := true
	if fc.Journal != nil {
		journal = *fc.Journal
	}

	return EffectiveConfig{
		Path:          absPath,
		Apply:         apply,
		Mode:          mode,
		Concurrency:   concurrency,
		CleanupSource: cleanup,
		ImportantExts: exts,
		MaxNameLen:    maxLen,
		LengthUnit:    unit,
		PreserveExt:   preserveExt,
		ExcludeDirs:   append([]string(nil), fc.ExcludeDirs...),
		Journal:       journal,
	}, nil
}

func validateMode(m string) error {
	switch m {
	case domain.ModeMove, domain.ModeHardlink:
		return nil
	case "":
		return fmt.Errorf("mode 不能为空")
	default:
		return fmt.Errorf("mode 只能是 move 或 hardlink，实际是 %q", m)
	}
}

// normalizeExtensions 规范化扩展名列表：全小写、补齐点前缀、去重、保持顺序。
// 空列表使用内置默认集合。
func normalizeExtensions(exts []string) ([]string, error) {
	if len(exts) == 0 {
		return append([]string(nil), DefaultImportantExtensions...), nil
	}

	out := make([]string, 0, len(exts))
	seen := make(map[string]struct{}, len(exts))
	for _, x := range exts {
		x = strings.ToLower(strings.TrimSpace(x))
		if x == "" || x == "." {
			return nil, fmt.Errorf("important_extensions 含空条目")
		}
		if !strings.HasPrefix(x, ".") {
			x = "." + x
		}
		if _, ok := seen[x]; ok {
			continue
		}
		seen[x] = struct{}{}
		out = append(out, x)
	}
	return out, nil
}

// absCleanFrom 以 base 为基准，把 p 变为 clean + absolute。
// - p 若已是绝对路径：直接 Clean
// - p 若是相对路径：Join(base, p) 后 Clean
func absCleanFrom(base, p string) string {
	p = filepath.Clean(strings.TrimSpace(p))
	if p == "" {
		return ""
	}
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Clean(filepath.Join(base, p))
}

// readFileConfig 读取并解析 JSON 配置文件。
// 返回值 exists 表示该文件是否存在（不存在不算错误）。
func readFileConfig(path string) (fc FileConfig, exists bool, err error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, false, nil
		}
		return FileConfig{}, false, err
	}
	if err := json.Unmarshal(b, &fc); err != nil {
		return FileConfig{}, true, err
	}
	return fc, true, nil
}
