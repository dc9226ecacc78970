package upload

import (
	"context"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/yoshiniks/nodeAppShop/internal/xerrors"
)

// Storage persists accepted files and serves them back for /images.
type Storage interface {
	// Put writes r under name and returns where it landed.
	Put(ctx context.Context, name, contentType string, r io.Reader, size int64) (string, error)
	// Dir is the logical destination recorded on File.
	Dir() string
	// FS exposes stored files for one request.
	FS(ctx context.Context) fs.FS
}

// DiskStorage writes files into a local directory.
type DiskStorage struct {
	dir string
}

// NewDiskStorage creates dir when missing.
func NewDiskStorage(dir string) (*DiskStorage, error) {
	if dir == "" {
		dir = DefaultDir
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, xerrors.Wrapf(err, "upload: create %s", dir)
	}
	return &DiskStorage{dir: dir}, nil
}

func (d *DiskStorage) Dir() string { return d.dir }

func (d *DiskStorage) FS(context.Context) fs.FS { return os.DirFS(d.dir) }

func (d *DiskStorage) Put(ctx context.Context, name, _ string, r io.Reader, _ int64) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if !fs.ValidPath(name) || filepath.Base(name) != name {
		return "", xerrors.Newf("upload: invalid stored name %q", name)
	}
	dst := filepath.Join(d.dir, name)
	f, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", xerrors.Wrapf(err, "create %s", dst)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(dst)
		return "", xerrors.Wrapf(err, "write %s", dst)
	}
	if err := f.Close(); err != nil {
		os.Remove(dst)
		return "", xerrors.Wrapf(err, "close %s", dst)
	}
	return dst, nil
}
