// Package walker enumerates the directories under a root as a lazy sequence.
package walker

import (
	"fmt"
	"io/fs"
	"iter"
	"log/slog"
	"os"
	"path"
	"path/filepath"
)

// Walker 遍历根目录下的所有子目录（先序、按名称排序）。
// 无法读取的子目录被跳过，只有根目录不可读时才产出错误
type Walker struct {
	fsys   fs.FS
	prefix string
	logger *slog.Logger
}

// New 创建遍历本地目录 root 的 Walker，产出的路径以 root 为前缀
func New(root string, logger *slog.Logger) *Walker {
	w := NewFS(os.DirFS(root), logger)
	w.prefix = root
	return w
}

// NewFS 创建遍历任意文件系统的 Walker，产出的路径相对于 fsys 的根
func NewFS(fsys fs.FS, logger *slog.Logger) *Walker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Walker{fsys: fsys, logger: logger}
}

// Directories 返回子目录序列。序列是惰性的，每次迭代重新读取文件系统
func (w *Walker) Directories() iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		entries, err := fs.ReadDir(w.fsys, ".")
		if err != nil {
			yield("", fmt.Errorf("read %s: %w", w.display("."), err))
			return
		}
		w.walkEntries(".", entries, yield)
	}
}

func (w *Walker) walkDir(dir string, yield func(string, error) bool) bool {
	entries, err := fs.ReadDir(w.fsys, dir)
	if err != nil {
		w.logger.Debug("skipping unreadable directory",
			slog.String("path", w.display(dir)),
			slog.String("error", err.Error()),
		)
		return true
	}
	return w.walkEntries(dir, entries, yield)
}

func (w *Walker) walkEntries(dir string, entries []fs.DirEntry, yield func(string, error) bool) bool {
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		p := path.Join(dir, entry.Name())
		if !yield(w.display(p), nil) {
			return false
		}
		if !w.walkDir(p, yield) {
			return false
		}
	}
	return true
}

func (w *Walker) display(p string) string {
	if w.prefix == "" {
		return p
	}
	return filepath.Join(w.prefix, filepath.FromSlash(p))
}
