package copier

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/dgallion1/docmerge/internal/doctree"
)

const (
	dirPerm  fs.FileMode = 0o755
	filePerm fs.FileMode = 0o644
)

// CopyError reports the destination or source path a copy failed on.
type CopyError struct {
	Op   string // mkdir, open, create, write, readdir, symlink
	Path string
	Err  error
}

func (e *CopyError) Error() string {
	return fmt.Sprintf("copy: %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *CopyError) Unwrap() error { return e.Err }

// Result summarizes what one Copy call wrote.
type Result struct {
	Target     string `json:"target"`
	Files      int    `json:"files"`
	Dirs       int    `json:"dirs"`
	Symlinks   int    `json:"symlinks,omitempty"`
	Bytes      int64  `json:"bytes"`
	Overwrites int    `json:"overwrites,omitempty"`
}

// Copier merges matched directories into a single destination root.
// A Copier remembers which destination paths it has written so that
// later matches overwriting earlier ones can be reported, and replaced
// even when the earlier entry had another type. It is not safe for
// concurrent use.
type Copier struct {
	dest    string
	destAbs string // never copied from, so a destination inside a match is not re-read
	log     *slog.Logger
	written map[string]string // destination file or symlink -> source that wrote it
	dirs    map[string]string // destination directory -> source directory that created it
}

// New returns a Copier writing below dest. A nil log discards output.
func New(dest string, log *slog.Logger) *Copier {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	destAbs, err := filepath.Abs(dest)
	if err != nil {
		destAbs = filepath.Clean(dest)
	}
	return &Copier{
		dest:    dest,
		destAbs: destAbs,
		log:     log,
		written: make(map[string]string),
		dirs:    make(map[string]string),
	}
}

// Dest returns the destination root.
func (c *Copier) Dest() string { return c.dest }

// Target returns where the contents of m land.
func (c *Copier) Target(m doctree.Match) string {
	return m.Chain.Under(c.dest)
}

// Copy writes every file and directory under m.Path into
// <dest>/<m.Chain>/, keeping relative paths. Existing files are truncated
// and overwritten. The first failure aborts this match and is returned as
// a *CopyError; whatever was already written stays. A cancelled ctx stops
// the copy between entries and returns ctx.Err().
func (c *Copier) Copy(ctx context.Context, m doctree.Match) (Result, error) {
	res := Result{Target: c.Target(m)}

	if err := c.mkdir(m.Path, res.Target, &res); err != nil {
		return res, &CopyError{Op: "mkdir", Path: res.Target, Err: err}
	}

	type pair struct{ src, dst string }
	stack := []pair{{src: m.Path, dst: res.Target}}

	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		entries, err := os.ReadDir(p.src)
		if err != nil {
			return res, &CopyError{Op: "readdir", Path: p.src, Err: err}
		}

		var subdirs []pair
		for _, e := range entries {
			if err := ctx.Err(); err != nil {
				return res, err
			}
			src := filepath.Join(p.src, e.Name())
			dst := filepath.Join(p.dst, e.Name())
			if c.isDest(src) {
				c.log.Debug("skipping destination inside docs directory", "path", src)
				continue
			}

			switch mode := e.Type(); {
			case mode.IsDir():
				if err := c.mkdir(src, dst, &res); err != nil {
					return res, &CopyError{Op: "mkdir", Path: dst, Err: err}
				}
				res.Dirs++
				subdirs = append(subdirs, pair{src: src, dst: dst})
			case mode.IsRegular():
				if err := c.replaceDir(src, dst, &res); err != nil {
					return res, &CopyError{Op: "create", Path: dst, Err: err}
				}
				n, err := copyFile(src, dst)
				if err != nil {
					return res, err
				}
				c.noteWrite(src, dst, &res)
				res.Files++
				res.Bytes += n
			case mode&fs.ModeSymlink != 0:
				if err := c.replaceDir(src, dst, &res); err != nil {
					return res, &CopyError{Op: "symlink", Path: dst, Err: err}
				}
				if err := copySymlink(src, dst); err != nil {
					return res, err
				}
				c.noteWrite(src, dst, &res)
				res.Symlinks++
			default:
				c.log.Debug("skipping special file", "path", src, "mode", mode.String())
			}
		}

		for i := len(subdirs) - 1; i >= 0; i-- {
			stack = append(stack, subdirs[i])
		}
	}

	return res, nil
}

func (c *Copier) noteWrite(src, dst string, res *Result) {
	if prev, ok := c.written[dst]; ok {
		c.overwrote(src, dst, prev, res)
	}
	c.written[dst] = src
}

func (c *Copier) overwrote(src, dst, prev string, res *Result) {
	res.Overwrites++
	c.log.Warn("overwriting file from earlier docs directory",
		"path", dst,
		"previous_source", prev,
		"source", src,
	)
}

func (c *Copier) isDest(src string) bool {
	abs, err := filepath.Abs(src)
	return err == nil && abs == c.destAbs
}

// mkdir creates dst as a directory. A file or symlink this Copier wrote at
// dst or at one of its parents is removed first and counted as an
// overwrite. Anything else in the way is left for ensureDir to fail on.
func (c *Copier) mkdir(src, dst string, res *Result) error {
	stop := filepath.Clean(c.dest)
	for p := dst; ; p = filepath.Dir(p) {
		if prev, ok := c.written[p]; ok {
			if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return err
			}
			delete(c.written, p)
			c.overwrote(src, p, prev, res)
		}
		if p == stop || filepath.Dir(p) == p {
			break
		}
	}
	if err := ensureDir(dst); err != nil {
		return err
	}
	if _, ok := c.dirs[dst]; !ok {
		c.dirs[dst] = src
	}
	return nil
}

// replaceDir removes a directory this Copier created at dst, so a later
// file or symlink can take its place.
func (c *Copier) replaceDir(src, dst string, res *Result) error {
	prev, ok := c.dirs[dst]
	if !ok {
		return nil
	}
	if err := os.RemoveAll(dst); err != nil {
		return err
	}
	prefix := dst + string(filepath.Separator)
	for p := range c.dirs {
		if p == dst || strings.HasPrefix(p, prefix) {
			delete(c.dirs, p)
		}
	}
	for p := range c.written {
		if strings.HasPrefix(p, prefix) {
			delete(c.written, p)
		}
	}
	c.overwrote(src, dst, prev, res)
	return nil
}

// ensureDir creates path, replacing a symlink an earlier match left there.
func ensureDir(path string) error {
	if fi, err := os.Lstat(path); err == nil && fi.Mode()&fs.ModeSymlink != 0 {
		if err := os.Remove(path); err != nil {
			return err
		}
	}
	return os.MkdirAll(path, dirPerm)
}

func copyFile(src, dst string) (n int64, retErr error) {
	in, err := os.Open(src)
	if err != nil {
		return 0, &CopyError{Op: "open", Path: src, Err: err}
	}
	defer in.Close()

	// Never write through a symlink left by an earlier match.
	if fi, err := os.Lstat(dst); err == nil && fi.Mode()&fs.ModeSymlink != 0 {
		if err := os.Remove(dst); err != nil {
			return 0, &CopyError{Op: "create", Path: dst, Err: err}
		}
	}

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, filePerm)
	if err != nil {
		return 0, &CopyError{Op: "create", Path: dst, Err: err}
	}
	defer func() {
		if err := out.Close(); err != nil && retErr == nil {
			retErr = &CopyError{Op: "write", Path: dst, Err: err}
		}
	}()

	n, err = io.Copy(out, in)
	if err != nil {
		return n, &CopyError{Op: "write", Path: dst, Err: err}
	}
	return n, nil
}

func copySymlink(src, dst string) error {
	target, err := os.Readlink(src)
	if err != nil {
		return &CopyError{Op: "readlink", Path: src, Err: err}
	}
	if err := os.Remove(dst); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return &CopyError{Op: "symlink", Path: dst, Err: err}
	}
	if err := os.Symlink(target, dst); err != nil {
		return &CopyError{Op: "symlink", Path: dst, Err: err}
	}
	return nil
}
