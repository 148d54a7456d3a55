package run

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/John-Robertt/AVMO/internal/app"
	"github.com/John-Robertt/AVMO/internal/app/planner"
	"github.com/John-Robertt/AVMO/internal/config"
	"github.com/John-Robertt/AVMO/internal/domain"
	"github.com/John-Robertt/AVMO/internal/infra/journal"
	"github.com/John-Robertt/AVMO/internal/relocate"
	"github.com/John-Robertt/AVMO/internal/scan"
	"github.com/John-Robertt/AVMO/internal/truncate"
)

// Execute 执行一次 run（dry-run/apply），并返回对外稳定的 RunReport。
// 该函数尽量把错误“降级”为 item 级失败（单条失败不影响其他）。
func Execute(ctx context.Context, eff config.EffectiveConfig) domain.RunReport {
	return ExecuteWithObserver(ctx, eff, nil)
}

// ExecuteWithObserver 与 Execute 相同，但允许传入 Observer 以输出进度/阶段信息（由上层决定是否启用）。
func ExecuteWithObserver(ctx context.Context, eff config.EffectiveConfig, obs Observer) domain.RunReport {
	started := time.Now().UTC()

	if obs != nil {
		obs.OnStart(eff)
	}

	rr := domain.RunReport{
		Path:      eff.Path,
		DryRun:    !eff.Apply,
		RunID:     uuid.NewString(),
		StartedAt: started,
		Items:     make([]domain.ItemResult, 0, 128),
	}

	// journal 只在 apply 下开启：dry-run 不做任何物理操作，也就无可审计之事。
	var store *journal.Store
	if eff.Apply && eff.Journal {
		s, err := journal.Open(filepath.Join(eff.Path, "out", "journal.db"))
		if err != nil {
			rr.Items = append(rr.Items, syntheticFailed(domain.ErrCodeIOFailed, fmt.Sprintf("打开 journal 失败：%v", err)))
			rr.FinishedAt = time.Now().UTC()
			rr.Finalize()
			return rr
		}
		store = s
		defer store.Close()
	}

	scanStarted := time.Now()
	files, err := scan.ScanMedia(eff.Path, eff.ImportantExts, eff.ExcludeDirs)
	if err != nil {
		rr.Items = append(rr.Items, syntheticFailed(domain.ErrCodeIOFailed, fmt.Sprintf("扫描失败：%v", err)))
		rr.FinishedAt = time.Now().UTC()
		rr.Finalize()
		return rr
	}
	scanDur := time.Since(scanStarted)

	groupStarted := time.Now()
	items, unmatched, err := app.GroupByCode(files)
	if err != nil {
		rr.Items = append(rr.Items, syntheticFailed(domain.ErrCodeIOFailed, fmt.Sprintf("分组失败：%v", err)))
		rr.FinishedAt = time.Now().UTC()
		rr.Finalize()
		return rr
	}
	groupDur := time.Since(groupStarted)

	if obs != nil {
		// 输出按文档约定：scan 行同时展示 files + unmatched（unmatched 来自分组阶段）。
		obs.OnPhaseDone("scan", map[string]any{
			"files":     len(files),
			"unmatched": len(unmatched),
		}, scanDur)
		obs.OnPhaseDone("group", map[string]any{
			"codes": len(items),
		}, groupDur)
	}

	// unmatched：每个输入文件单独形成一条 item（更可解释，便于用户逐个修复）。
	for _, u := range unmatched {
		rr.Items = append(rr.Items, unmatchedItem(u))
	}

	// 规划阶段：纯计算，不会失败；警告随 plan 带到 item。
	planStarted := time.Now()
	popts := planner.Options{
		LibraryRoot: eff.Path,
		Mode:        eff.Mode,
		MaxNameLen:  eff.MaxNameLen,
		LengthUnit:  lengthUnit(eff.LengthUnit),
		PreserveExt: eff.PreserveExt,
	}
	plans := make([]plannedItem, 0, len(items))
	var multiPart, planFiles int
	for _, it := range items {
		set, warns := planner.Build(files, it, popts)
		plans = append(plans, plannedItem{set: set, warnings: warns})
		planFiles += len(set.Files)
		if len(set.Files) > 1 {
			multiPart++
		}
	}
	planDur := time.Since(planStarted)

	if obs != nil {
		obs.OnPhaseDone("plan", map[string]any{
			"items":      len(plans),
			"files":      planFiles,
			"multi_part": multiPart,
		}, planDur)
	}

	// 执行阶段：按 CODE 并发（worker pool），item 内串行。
	// 目标目录按 CODE 划分，同一目录永远只属于一个 worker。
	workers := eff.Concurrency
	if workers < 1 {
		workers = 1
	}

	if obs != nil {
		obs.OnPhaseDone("exec", map[string]any{
			"workers":     workers,
			"total_items": len(plans),
		}, 0)
	}

	type execResult struct {
		code domain.Code
		res  domain.ItemResult
		dur  time.Duration
	}

	jobs := make(chan plannedItem)
	results := make(chan execResult, len(plans))

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for p := range jobs {
				oneStarted := time.Now()
				r := execOne(ctx, eff, p, store, rr.RunID)
				results <- execResult{
					code: p.set.Code,
					res:  r,
					dur:  time.Since(oneStarted),
				}
			}
		}()
	}

	go func() {
		for _, p := range plans {
			jobs <- p
		}
		close(jobs)
		wg.Wait()
		close(results)
	}()

	done := 0
	for it := range results {
		done++
		rr.Items = append(rr.Items, it.res)
		if obs != nil {
			obs.OnItemDone(done, len(plans), it.code, it.res, it.dur)
		}
	}

	rr.FinishedAt = time.Now().UTC()
	rr.Finalize()
	return rr
}

type plannedItem struct {
	set      domain.MediaFileSet
	warnings []string
}

func execOne(ctx context.Context, eff config.EffectiveConfig, p plannedItem, store *journal.Store, runID string) domain.ItemResult {
	item := domain.ItemResult{
		Code:           string(p.set.Code),
		Attr:           p.set.Attr,
		Status:         domain.StatusProcessed, // 失败时覆盖
		Warnings:       append([]string(nil), p.warnings...),
		Candidates:     []string{},
		CleanupReasons: []string{},
	}
	if item.Warnings == nil {
		item.Warnings = []string{}
	}

	// dry-run：只输出规划结果，不碰文件系统。
	if !eff.Apply {
		item.Files = plannedFiles(eff, p.set)
		return item
	}

	var sink relocate.EventSink
	if store != nil {
		sink = &journalSink{ctx: ctx, store: store, runID: runID, code: string(p.set.Code)}
	}

	outcome, err := relocate.Relocate(p.set, relocate.Options{
		CleanupSource: eff.CleanupSource,
		ImportantExts: eff.ImportantExtSet(),
		Sink:          sink,
	})

	item.Files = make([]domain.FileOutcome, 0, len(outcome.Files))
	allMissing := len(outcome.Files) > 0
	for _, f := range outcome.Files {
		if f.Status != domain.FileStatusMissing {
			allMissing = false
		}
		item.Files = append(item.Files, domain.FileOutcome{
			Src:    relTo(eff.Path, f.Src),
			Dst:    relTo(eff.Path, f.Dst),
			Status: f.Status,
		})
		// moved/hardlinked 不经过事件 sink，单独补记 journal。
		if store != nil && (f.Status == domain.FileStatusMoved || f.Status == domain.FileStatusHardlinked) {
			_ = store.Record(ctx, journal.FileOp{
				RunID: runID,
				Code:  string(p.set.Code),
				Op:    f.Status,
				Src:   f.Src,
				Dst:   f.Dst,
			})
		}
	}

	item.CleanupDone = outcome.CleanupDone
	if len(outcome.CleanupReasons) > 0 {
		item.CleanupReasons = outcome.CleanupReasons
	}
	if outcome.CleanupAttempted && !outcome.CleanupDone {
		if len(outcome.CleanupReasons) > 0 {
			item.Warnings = append(item.Warnings, domain.WarnCleanupBlocked)
		} else {
			item.Warnings = append(item.Warnings, domain.WarnCleanupFailed)
		}
	}

	if err != nil {
		item.Status = domain.StatusFailed
		item.ErrorCode = relocate.Code(err)
		if item.ErrorCode == "" {
			item.ErrorCode = domain.ErrCodeIOFailed
		}
		item.ErrorMsg = err.Error()
		return item
	}

	// 全部源文件都不在了（典型于失败后重跑）：没做任何事，标记 skipped。
	if allMissing {
		item.Status = domain.StatusSkipped
	}
	return item
}

// plannedFiles 产出 dry-run 下的文件结果：目标路径按搬移层的命名规则推算。
func plannedFiles(eff config.EffectiveConfig, set domain.MediaFileSet) []domain.FileOutcome {
	out := make([]domain.FileOutcome, 0, len(set.Files))
	for i, src := range set.Files {
		ext := filepath.Ext(src)
		name := set.Basename + ext
		if len(set.Files) > 1 {
			name = fmt.Sprintf("%s-CD%d%s", set.Basename, i+1, ext)
		}
		out = append(out, domain.FileOutcome{
			Src:    relTo(eff.Path, src),
			Dst:    relTo(eff.Path, filepath.Join(set.SaveDir, name)),
			Status: domain.FileStatusPlanned,
		})
	}
	return out
}

func unmatchedItem(u domain.Unmatched) domain.ItemResult {
	item := domain.ItemResult{
		Code:           "",
		Status:         domain.StatusUnmatched,
		ErrorCode:      domain.ErrCodeUnmatchedCode,
		Warnings:       []string{},
		Candidates:     []string{},
		CleanupReasons: []string{},
		Files: []domain.FileOutcome{{
			Src:    u.File.RelPath,
			Dst:    "",
			Status: domain.FileStatusFailed,
		}},
	}

	switch u.Kind {
	case "ambiguous":
		item.Candidates = make([]string, 0, len(u.Candidates))
		for _, c := range u.Candidates {
			item.Candidates = append(item.Candidates, string(c))
		}
		item.ErrorMsg = fmt.Sprintf("解析到多个不同 CODE（ambiguous）：%v；请重命名文件/目录使其只包含一个 CODE", item.Candidates)
	default:
		item.ErrorMsg = "无法从文件名或父目录解析出 CODE；请确保文件名包含类似 IPX-177 的片段"
	}
	return item
}

func syntheticFailed(code, msg string) domain.ItemResult {
	return domain.ItemResult{
		Code:           "",
		Status:         domain.StatusFailed,
		ErrorCode:      code,
		ErrorMsg:       msg,
		Warnings:       []string{},
		Candidates:     []string{},
		CleanupReasons: []string{},
		Files:          []domain.FileOutcome{},
	}
}

// relTo 尽量输出相对 root 的路径；失败则原样返回（至少可追溯）。
func relTo(root, p string) string {
	if p == "" {
		return ""
	}
	if rel, err := filepath.Rel(root, p); err == nil {
		return rel
	}
	return p
}

func lengthUnit(u string) string {
	if u == truncate.UnitChars {
		return truncate.UnitChars
	}
	return truncate.UnitBytes
}

// journalSink 把搬移层的非致命事件桥接到 SQLite journal。
// 记录失败只能吞掉：journal 是审计辅助，绝不能反过来让搬移失败。
type journalSink struct {
	ctx   context.Context
	store *journal.Store
	runID string
	code  string
}

func (s *journalSink) Event(kind string, fields map[string]any) {
	op := journal.FileOp{RunID: s.runID, Code: s.code, Op: kind}
	for k, v := range fields {
		sv, ok := v.(string)
		if !ok {
			continue
		}
		switch k {
		case "src", "path", "dir":
			op.Src = sv
		case "dst":
			op.Dst = sv
		case "error":
			op.Detail = sv
		}
	}
	if op.Detail == "" {
		if reasons, ok := fields["reasons"].([]string); ok && len(reasons) > 0 {
			op.Detail = fmt.Sprintf("%v", reasons)
		}
	}
	_ = s.store.Record(s.ctx, op)
}
