package fsx

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestMove_SameFilesystem(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "a.mp4")
	dst := filepath.Join(dir, "b.mp4")
	if err := os.WriteFile(src, []byte("data"), 0o644); err != nil {
		t.Fatalf("写入失败：%v", err)
	}

	if err := Move(src, dst); err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if _, err := os.Stat(src); !os.IsNotExist(err) {
		t.Fatalf("源文件应已消失")
	}
	b, err := os.ReadFile(dst)
	if err != nil || string(b) != "data" {
		t.Fatalf("目标内容不一致：%q, %v", string(b), err)
	}
}

func TestMove_CrossDeviceFallback(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "a.mp4")
	dst := filepath.Join(dir, "b.mp4")
	if err := os.WriteFile(src, []byte("跨盘内容"), 0o644); err != nil {
		t.Fatalf("写入失败：%v", err)
	}

	// 只对最终目标路径模拟 EXDEV；临时文件 rename 到位必须放行，
	// 否则 copy+delete 退化路径无法完成。
	old := renameFunc
	renameFunc = func(oldpath, newpath string) error {
		if oldpath == src {
			return &os.LinkError{Op: "rename", Old: oldpath, New: newpath, Err: exdevErr()}
		}
		return old(oldpath, newpath)
	}
	defer func() { renameFunc = old }()

	if err := Move(src, dst); err != nil {
		t.Fatalf("EXDEV 应退化为 copy+delete：%v", err)
	}
	if _, err := os.Stat(src); !os.IsNotExist(err) {
		t.Fatalf("源文件应已删除")
	}
	b, err := os.ReadFile(dst)
	if err != nil || string(b) != "跨盘内容" {
		t.Fatalf("目标内容不一致：%q, %v", string(b), err)
	}

	// 退化路径不应留下临时文件。
	entries, _ := os.ReadDir(dir)
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".b.mp4.tmp-") {
			t.Fatalf("临时文件未清理：%q", e.Name())
		}
	}
}

func TestMove_NonEXDEVErrorPropagates(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "a.mp4")
	if err := os.WriteFile(src, []byte("x"), 0o644); err != nil {
		t.Fatalf("写入失败：%v", err)
	}

	old := renameFunc
	renameFunc = func(oldpath, newpath string) error { return os.ErrPermission }
	defer func() { renameFunc = old }()

	if err := Move(src, filepath.Join(dir, "b.mp4")); err == nil {
		t.Fatalf("期望错误，但得到 nil")
	}
	if _, err := os.Stat(src); err != nil {
		t.Fatalf("失败时源文件必须保留：%v", err)
	}
}

func TestHardlink(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "a.mp4")
	dst := filepath.Join(dir, "b.mp4")
	if err := os.WriteFile(src, []byte("data"), 0o644); err != nil {
		t.Fatalf("写入失败：%v", err)
	}

	if err := Hardlink(src, dst); err != nil {
		t.Fatalf("不期望错误：%v", err)
	}

	si, err1 := os.Stat(src)
	di, err2 := os.Stat(dst)
	if err1 != nil || err2 != nil {
		t.Fatalf("硬链接后源与目标都必须存在：%v %v", err1, err2)
	}
	if !os.SameFile(si, di) {
		t.Fatalf("源与目标应指向同一数据")
	}
}

func TestRemoveDirIfEmpty(t *testing.T) {
	dir := t.TempDir()
	empty := filepath.Join(dir, "empty")
	if err := os.Mkdir(empty, 0o755); err != nil {
		t.Fatalf("创建目录失败：%v", err)
	}
	if err := RemoveDirIfEmpty(empty); err != nil {
		t.Fatalf("空目录删除失败：%v", err)
	}
	if _, err := os.Stat(empty); !os.IsNotExist(err) {
		t.Fatalf("空目录应已删除")
	}

	// 非空目录：不报错、不删除。
	nonEmpty := filepath.Join(dir, "nonempty")
	if err := os.Mkdir(nonEmpty, 0o755); err != nil {
		t.Fatalf("创建目录失败：%v", err)
	}
	if err := os.WriteFile(filepath.Join(nonEmpty, "f"), []byte("x"), 0o644); err != nil {
		t.Fatalf("写入失败：%v", err)
	}
	if err := RemoveDirIfEmpty(nonEmpty); err != nil {
		t.Fatalf("非空目录不应报错：%v", err)
	}
	if _, err := os.Stat(nonEmpty); err != nil {
		t.Fatalf("非空目录必须保留：%v", err)
	}

	// 不存在的目录：no-op。
	if err := RemoveDirIfEmpty(filepath.Join(dir, "absent")); err != nil {
		t.Fatalf("不存在的目录不应报错：%v", err)
	}
}

func TestWriteFileAtomicReplace(t *testing.T) {
	dir := t.TempDir()

	if err := WriteFileAtomicReplace(dir, "report.json", []byte("v1")); err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if err := WriteFileAtomicReplace(dir, "report.json", []byte("v2")); err != nil {
		t.Fatalf("覆盖写入失败：%v", err)
	}

	b, err := os.ReadFile(filepath.Join(dir, "report.json"))
	if err != nil || string(b) != "v2" {
		t.Fatalf("内容不一致：%q, %v", string(b), err)
	}

	entries, _ := os.ReadDir(dir)
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".report.json.tmp-") {
			t.Fatalf("临时文件未清理：%q", e.Name())
		}
	}
}
