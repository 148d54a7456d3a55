// Package relocate 执行单个作品的一组文件的物理搬移（move / hardlink），
// 处理目标冲突，并在搬移后对源目录做保守的清理级联。
package relocate

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/John-Robertt/AVMO/internal/domain"
	"github.com/John-Robertt/AVMO/internal/infra/fsx"
	"github.com/John-Robertt/AVMO/internal/purge"
)

// 通过可替换的函数指针，让测试能稳定模拟“源文件删除失败”等错误。
var removeFunc = os.Remove

// EventSink 接收搬移过程中的非致命事件（重复删除、清理跳过/失败等）。
//
// 约束：实现必须并发安全；relocate 只发事件，不做任何输出。
// 传 nil 表示丢弃事件。
type EventSink interface {
	Event(kind string, fields map[string]any)
}

// Options 控制一次 Relocate 调用的行为。
type Options struct {
	// CleanupSource 为 true 时，在所有文件处理完成后对源目录执行清理级联。
	CleanupSource bool
	// ImportantExts 是清理判定中“必须保留”的视频扩展名集合（全小写、带点）。
	ImportantExts map[string]struct{}
	Sink          EventSink
}

// Error 是搬移阶段的结构化致命错误（带 error_code）。
// 重复冲突、源文件缺失、清理失败都不走这里：它们被就地恢复并反映在 Outcome 中。
type Error struct {
	Code string // domain.ErrCode*
	Path string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s：%q：%v", e.Code, e.Path, e.Err)
	}
	return fmt.Sprintf("%s：%q", e.Code, e.Path)
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

// Relocate 按 set 的顺序逐个搬移文件，返回完整的 RelocationOutcome。
//
// 目标命名：单文件 => {basename}{ext}；N 文件 => {basename}-CD{i}{ext}（i 从 1 起，按原顺序）。
//
// 预期内、不构成错误的情形：
//   - 目标已存在：当前源文件被删除（注意：不做内容比较——这是刻意保留的历史策略，
//     被丢弃的文件可能与目标并不相同；每次删除都会发 duplicate_deleted 事件供审计）
//   - 源文件缺失（常见于重复运行）：记为 missing，继续处理同组其余文件
//
// 致命错误（返回 *Error 并中止组内剩余文件）：目标已存在但源删除失败、
// 目标父目录无法创建、move/hardlink 本身失败。多文件组的部分搬移因此可能发生，
// Outcome 会如实反映，不做回滚。
func Relocate(set domain.MediaFileSet, opts Options) (domain.RelocationOutcome, error) {
	out := domain.RelocationOutcome{
		Files:          make([]domain.FileOutcome, len(set.Files)),
		NewPaths:       make([]string, 0, len(set.Files)),
		CleanupReasons: []string{},
	}

	saveDir, err := filepath.Abs(set.SaveDir)
	if err != nil {
		return out, &Error{Code: domain.ErrCodeIOFailed, Path: set.SaveDir, Err: err}
	}

	// 清理级联以第一个文件的原始父目录为对象（搬移后再从 outcome 读就晚了）。
	firstSrc, err := filepath.Abs(set.Files[0])
	if err != nil {
		return out, &Error{Code: domain.ErrCodeIOFailed, Path: set.Files[0], Err: err}
	}
	srcDir := filepath.Dir(firstSrc)

	for i := range set.Files {
		srcAbs, e := filepath.Abs(set.Files[i])
		if e != nil {
			failFrom(&out, set.Files, i)
			return out, &Error{Code: domain.ErrCodeIOFailed, Path: set.Files[i], Err: e}
		}

		dstAbs := filepath.Join(saveDir, dstName(set, i, filepath.Ext(srcAbs)))
		out.Files[i] = domain.FileOutcome{Src: srcAbs, Dst: dstAbs, Status: domain.FileStatusFailed}

		// 源与目标是同一路径：文件已在目标位置。绝不能走“重复删除”分支，
		// 否则会把唯一副本删掉。
		if srcAbs == dstAbs {
			out.Files[i].Status = domain.FileStatusMoved
			emit(opts.Sink, "already_in_place", map[string]any{"path": srcAbs})
			continue
		}

		if _, e := os.Lstat(dstAbs); e == nil {
			// 目标已存在：当前源是重复内容，删除源文件。
			if re := removeFunc(srcAbs); re != nil {
				if os.IsNotExist(re) {
					// 源也不在：重复运行的典型形态，非致命。
					out.Files[i].Status = domain.FileStatusMissing
					continue
				}
				failFrom(&out, set.Files, i+1)
				return out, &Error{Code: domain.ErrCodeDuplicateUnresolvable, Path: dstAbs, Err: re}
			}
			out.Files[i].Status = domain.FileStatusDuplicate
			emit(opts.Sink, "duplicate_deleted", map[string]any{"src": srcAbs, "dst": dstAbs})
			continue
		} else if !os.IsNotExist(e) {
			failFrom(&out, set.Files, i+1)
			return out, &Error{Code: domain.ErrCodeIOFailed, Path: dstAbs, Err: e}
		}

		if _, e := os.Lstat(srcAbs); e != nil {
			if os.IsNotExist(e) {
				out.Files[i].Status = domain.FileStatusMissing
				continue
			}
			failFrom(&out, set.Files, i+1)
			return out, &Error{Code: domain.ErrCodeIOFailed, Path: srcAbs, Err: e}
		}

		if e := os.MkdirAll(filepath.Dir(dstAbs), 0o755); e != nil {
			failFrom(&out, set.Files, i+1)
			return out, &Error{Code: domain.ErrCodeDestUnwritable, Path: dstAbs, Err: e}
		}

		switch set.Mode {
		case domain.ModeHardlink:
			if e := fsx.Hardlink(srcAbs, dstAbs); e != nil {
				failFrom(&out, set.Files, i+1)
				return out, &Error{Code: domain.ErrCodeMoveFailed, Path: dstAbs, Err: e}
			}
			out.Files[i].Status = domain.FileStatusHardlinked
		default:
			if e := fsx.Move(srcAbs, dstAbs); e != nil {
				failFrom(&out, set.Files, i+1)
				return out, &Error{Code: domain.ErrCodeMoveFailed, Path: dstAbs, Err: e}
			}
			out.Files[i].Status = domain.FileStatusMoved
		}
		out.NewPaths = append(out.NewPaths, dstAbs)
	}

	if opts.CleanupSource {
		cleanupSourceDir(&out, srcDir, opts)
	}
	return out, nil
}

func dstName(set domain.MediaFileSet, i int, ext string) string {
	if len(set.Files) == 1 {
		return set.Basename + ext
	}
	return fmt.Sprintf("%s-CD%d%s", set.Basename, i+1, ext)
}

// failFrom 把 from 起尚未处理的文件标记为 failed（含目标路径便于定位）。
func failFrom(out *domain.RelocationOutcome, files []string, from int) {
	for i := from; i < len(files); i++ {
		if out.Files[i].Status == "" {
			out.Files[i] = domain.FileOutcome{Src: files[i], Status: domain.FileStatusFailed}
		} else {
			out.Files[i].Status = domain.FileStatusFailed
		}
	}
}

// cleanupSourceDir 执行清理级联：safe 则逐项删除后移除目录；unsafe 只记录原因。
// 所有单项删除失败都只发事件并跳过，永不影响 Outcome 的成败。
func cleanupSourceDir(out *domain.RelocationOutcome, srcDir string, opts Options) {
	out.CleanupAttempted = true

	v := purge.Analyze(srcDir, opts.ImportantExts)
	if !v.Safe {
		out.CleanupReasons = v.Reasons
		emit(opts.Sink, "cleanup_blocked", map[string]any{"dir": srcDir, "reasons": v.Reasons})
		return
	}

	entries, err := os.ReadDir(srcDir)
	if err != nil {
		// 目录已不存在（或刚好被并发移除）：best-effort，不算失败。
		_ = fsx.RemoveDirIfEmpty(srcDir)
		return
	}

	for _, e := range entries {
		p := filepath.Join(srcDir, e.Name())
		if e.IsDir() {
			// 子目录只在自身为空时删除，否则保留——刻意保守，不做递归。
			if re := os.Remove(p); re != nil {
				emit(opts.Sink, "cleanup_skip_subdir", map[string]any{"path": p})
			}
			continue
		}
		if re := os.Remove(p); re != nil {
			emit(opts.Sink, "cleanup_remove_failed", map[string]any{"path": p, "error": re.Error()})
		}
	}

	if err := os.Remove(srcDir); err != nil {
		emit(opts.Sink, "cleanup_remove_failed", map[string]any{"path": srcDir, "error": err.Error()})
		return
	}
	out.CleanupDone = true
	emit(opts.Sink, "cleanup_done", map[string]any{"dir": srcDir})
}

func emit(sink EventSink, kind string, fields map[string]any) {
	if sink == nil {
		return
	}
	sink.Event(kind, fields)
}
