//go:build unix

package fsx

import (
	"os"
	"syscall"
	"testing"
)

func exdevErr() error { return syscall.EXDEV }

func TestIsCrossDevice(t *testing.T) {
	err := Rename("/nonexistent/a", "/nonexistent/b")
	if err == nil {
		t.Fatalf("期望错误，但得到 nil")
	}
	if IsCrossDevice(err) {
		t.Fatalf("普通错误不应被判为 EXDEV")
	}

	old := renameFunc
	renameFunc = func(oldpath, newpath string) error {
		return &os.LinkError{Op: "rename", Old: oldpath, New: newpath, Err: syscall.EXDEV}
	}
	defer func() { renameFunc = old }()

	err = Rename("/a", "/b")
	if !IsCrossDevice(err) {
		t.Fatalf("EXDEV 应被识别为 CrossDeviceError，实际：%T %v", err, err)
	}
}
