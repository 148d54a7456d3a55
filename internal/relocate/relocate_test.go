package relocate

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/John-Robertt/AVMO/internal/domain"
)

var testImportantExts = map[string]struct{}{
	".mp4": {}, ".mkv": {}, ".avi": {},
}

type recordingSink struct {
	mu     sync.Mutex
	events []string
}

func (s *recordingSink) Event(kind string, fields map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, kind)
}

func (s *recordingSink) has(kind string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.events {
		if e == kind {
			return true
		}
	}
	return false
}

func writeFile(t *testing.T, path string, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("创建目录失败：%v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("写入失败：%v", err)
	}
}

func TestRelocate_SingleFileMove(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "in", "ipx-177.mp4")
	writeFile(t, src, "data")

	set := domain.MediaFileSet{
		Code:     "IPX-177",
		Files:    []string{src},
		SaveDir:  filepath.Join(root, "out", "IPX-177"),
		Basename: "IPX-177",
		Mode:     domain.ModeMove,
	}

	out, err := Relocate(set, Options{})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	want := filepath.Join(root, "out", "IPX-177", "IPX-177.mp4")
	if len(out.NewPaths) != 1 || out.NewPaths[0] != want {
		t.Fatalf("NewPaths 不符合预期：%v", out.NewPaths)
	}
	if out.Files[0].Status != domain.FileStatusMoved {
		t.Fatalf("状态不符合预期：%s", out.Files[0].Status)
	}
	if _, e := os.Stat(want); e != nil {
		t.Fatalf("目标文件不存在：%v", e)
	}
	if _, e := os.Stat(src); !os.IsNotExist(e) {
		t.Fatalf("源文件应已消失")
	}
}

func TestRelocate_MultiFileCDNaming(t *testing.T) {
	root := t.TempDir()
	src1 := filepath.Join(root, "in", "x-001-cd1.mp4")
	src2 := filepath.Join(root, "in", "x-001-cd2.mp4")
	writeFile(t, src1, "part1")
	writeFile(t, src2, "part2")

	set := domain.MediaFileSet{
		Code:     "X-001",
		Files:    []string{src1, src2},
		SaveDir:  filepath.Join(root, "out", "X-001"),
		Basename: "X",
		Mode:     domain.ModeMove,
	}

	out, err := Relocate(set, Options{})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	want1 := filepath.Join(set.SaveDir, "X-CD1.mp4")
	want2 := filepath.Join(set.SaveDir, "X-CD2.mp4")
	if len(out.NewPaths) != 2 || out.NewPaths[0] != want1 || out.NewPaths[1] != want2 {
		t.Fatalf("-CD{n} 编号应按原顺序：%v", out.NewPaths)
	}
	b1, _ := os.ReadFile(want1)
	b2, _ := os.ReadFile(want2)
	if string(b1) != "part1" || string(b2) != "part2" {
		t.Fatalf("分片内容与顺序不一致：%q %q", b1, b2)
	}
}

func TestRelocate_DuplicateDeletesSource(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "in", "ipx-177.mp4")
	writeFile(t, src, "newer copy")
	dst := filepath.Join(root, "out", "IPX-177", "IPX-177.mp4")
	writeFile(t, dst, "existing")

	sink := &recordingSink{}
	set := domain.MediaFileSet{
		Code:     "IPX-177",
		Files:    []string{src},
		SaveDir:  filepath.Dir(dst),
		Basename: "IPX-177",
		Mode:     domain.ModeMove,
	}

	out, err := Relocate(set, Options{Sink: sink})
	if err != nil {
		t.Fatalf("重复冲突不应是错误：%v", err)
	}
	if len(out.NewPaths) != 0 {
		t.Fatalf("重复文件不应产生新路径：%v", out.NewPaths)
	}
	if out.Files[0].Status != domain.FileStatusDuplicate {
		t.Fatalf("状态应为 duplicate：%s", out.Files[0].Status)
	}
	if _, e := os.Stat(src); !os.IsNotExist(e) {
		t.Fatalf("重复的源文件应已删除")
	}
	// 既有目标保持原内容（不比较、不覆盖）。
	b, _ := os.ReadFile(dst)
	if string(b) != "existing" {
		t.Fatalf("目标文件被意外改动：%q", b)
	}
	if !sink.has("duplicate_deleted") {
		t.Fatalf("应发出 duplicate_deleted 事件：%v", sink.events)
	}
}

func TestRelocate_RerunReportsMissing(t *testing.T) {
	root := t.TempDir()
	src1 := filepath.Join(root, "in", "x-001-cd1.mp4")
	src2 := filepath.Join(root, "in", "x-001-cd2.mp4")
	writeFile(t, src1, "part1")
	writeFile(t, src2, "part2")

	set := domain.MediaFileSet{
		Code:     "X-001",
		Files:    []string{src1, src2},
		SaveDir:  filepath.Join(root, "out", "X-001"),
		Basename: "X-001",
		Mode:     domain.ModeMove,
	}

	if _, err := Relocate(set, Options{}); err != nil {
		t.Fatalf("首次搬移失败：%v", err)
	}

	// 重复运行：源已消失、目标已存在，应逐个记为 missing，不崩溃、不报错。
	out, err := Relocate(set, Options{})
	if err != nil {
		t.Fatalf("重复运行不应报错：%v", err)
	}
	for i, f := range out.Files {
		if f.Status != domain.FileStatusMissing {
			t.Fatalf("文件 %d 状态应为 missing：%s", i, f.Status)
		}
	}
	if len(out.NewPaths) != 0 {
		t.Fatalf("重复运行不应产生新路径：%v", out.NewPaths)
	}
}

func TestRelocate_HardlinkKeepsSource(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "in", "ipx-177.mp4")
	writeFile(t, src, "data")

	set := domain.MediaFileSet{
		Code:     "IPX-177",
		Files:    []string{src},
		SaveDir:  filepath.Join(root, "out", "IPX-177"),
		Basename: "IPX-177",
		Mode:     domain.ModeHardlink,
	}

	out, err := Relocate(set, Options{})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if out.Files[0].Status != domain.FileStatusHardlinked {
		t.Fatalf("状态应为 hardlinked：%s", out.Files[0].Status)
	}

	si, err1 := os.Stat(src)
	di, err2 := os.Stat(out.NewPaths[0])
	if err1 != nil || err2 != nil {
		t.Fatalf("硬链接模式下源与目标都必须存在：%v %v", err1, err2)
	}
	if !os.SameFile(si, di) {
		t.Fatalf("源与目标应指向同一数据")
	}
}

func TestRelocate_CleanupRemovesSafeFolder(t *testing.T) {
	root := t.TempDir()
	srcDir := filepath.Join(root, "in", "IPX-177")
	src := filepath.Join(srcDir, "ipx-177.mp4")
	writeFile(t, src, "data")
	writeFile(t, filepath.Join(srcDir, "poster.jpg"), strings.Repeat("x", 20*1024))
	writeFile(t, filepath.Join(srcDir, "movie.nfo"), "<nfo/>")

	sink := &recordingSink{}
	set := domain.MediaFileSet{
		Code:     "IPX-177",
		Files:    []string{src},
		SaveDir:  filepath.Join(root, "out", "IPX-177"),
		Basename: "IPX-177",
		Mode:     domain.ModeMove,
	}

	out, err := Relocate(set, Options{
		CleanupSource: true,
		ImportantExts: testImportantExts,
		Sink:          sink,
	})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if !out.CleanupAttempted || !out.CleanupDone {
		t.Fatalf("清理应已执行：%+v", out)
	}
	if _, e := os.Stat(srcDir); !os.IsNotExist(e) {
		t.Fatalf("源目录应已删除")
	}
	if !sink.has("cleanup_done") {
		t.Fatalf("应发出 cleanup_done 事件：%v", sink.events)
	}
}

func TestRelocate_CleanupBlockedByOtherVideo(t *testing.T) {
	root := t.TempDir()
	srcDir := filepath.Join(root, "in", "mixed")
	src := filepath.Join(srcDir, "ipx-177.mp4")
	writeFile(t, src, "data")
	writeFile(t, filepath.Join(srcDir, "other.mkv"), "other title")

	set := domain.MediaFileSet{
		Code:     "IPX-177",
		Files:    []string{src},
		SaveDir:  filepath.Join(root, "out", "IPX-177"),
		Basename: "IPX-177",
		Mode:     domain.ModeMove,
	}

	out, err := Relocate(set, Options{
		CleanupSource: true,
		ImportantExts: testImportantExts,
	})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if !out.CleanupAttempted || out.CleanupDone {
		t.Fatalf("清理应被阻止：%+v", out)
	}
	if len(out.CleanupReasons) == 0 || !strings.Contains(out.CleanupReasons[0], "other.mkv") {
		t.Fatalf("阻止原因应提及 other.mkv：%v", out.CleanupReasons)
	}
	if _, e := os.Stat(filepath.Join(srcDir, "other.mkv")); e != nil {
		t.Fatalf("被阻止时目录内容必须原样保留：%v", e)
	}
}

func TestRelocate_SourceEqualsDestination(t *testing.T) {
	root := t.TempDir()
	dst := filepath.Join(root, "out", "IPX-177", "IPX-177.mp4")
	writeFile(t, dst, "data")

	set := domain.MediaFileSet{
		Code:     "IPX-177",
		Files:    []string{dst},
		SaveDir:  filepath.Dir(dst),
		Basename: "IPX-177",
		Mode:     domain.ModeMove,
	}

	out, err := Relocate(set, Options{})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	// 文件已在目标位置：绝不能被当作重复而删除。
	if _, e := os.Stat(dst); e != nil {
		t.Fatalf("唯一副本被删除：%v", e)
	}
	if len(out.NewPaths) != 0 {
		t.Fatalf("已就位的文件不应计入新路径：%v", out.NewPaths)
	}
}

func TestRelocate_FatalAbortsRemaining(t *testing.T) {
	root := t.TempDir()
	src1 := filepath.Join(root, "in", "x-001-cd1.mp4")
	src2 := filepath.Join(root, "in", "x-001-cd2.mp4")
	writeFile(t, src1, "part1")
	writeFile(t, src2, "part2")

	// 第一个文件的目标已存在且源文件无法删除 => 致命。
	dst1 := filepath.Join(root, "out", "X-001", "X-001-CD1.mp4")
	writeFile(t, dst1, "existing")

	old := removeFunc
	removeFunc = func(path string) error { return os.ErrPermission }
	defer func() { removeFunc = old }()

	set := domain.MediaFileSet{
		Code:     "X-001",
		Files:    []string{src1, src2},
		SaveDir:  filepath.Join(root, "out", "X-001"),
		Basename: "X-001",
		Mode:     domain.ModeMove,
	}

	out, err := Relocate(set, Options{})
	if err == nil {
		t.Fatalf("期望 duplicate_unresolvable 错误")
	}
	if Code(err) != domain.ErrCodeDuplicateUnresolvable {
		t.Fatalf("错误码不符合预期：%q（%v）", Code(err), err)
	}
	// 数据不能丢：源文件必须仍然存在。
	if _, e := os.Stat(src1); e != nil {
		t.Fatalf("源文件必须保留：%v", e)
	}
	if out.Files[1].Status != domain.FileStatusFailed {
		t.Fatalf("剩余文件应标记为 failed：%s", out.Files[1].Status)
	}
}
