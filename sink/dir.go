package sink

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/cadastral/tiler/tileerr"
)

// Dir writes objects as files under a root directory, key path for key path.
// Headers are not stored; a static file server in front is expected to set them.
type Dir struct {
	root string
}

func NewDir(root string) (*Dir, error) {
	if err := os.MkdirAll(root, os.ModePerm); err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	return &Dir{root: abs}, nil
}

func (d *Dir) Root() string {
	return d.root
}

func (d *Dir) path(key string) (string, error) {
	p := filepath.Join(d.root, filepath.FromSlash(key))
	if p == d.root || !strings.HasPrefix(p, d.root+string(filepath.Separator)) {
		return "", fmt.Errorf("key %q escapes %s", key, d.root)
	}
	return p, nil
}

func (d *Dir) Put(ctx context.Context, obj Object) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	fileName, err := d.path(obj.Key)
	if err != nil {
		return tileerr.Wrap(err, tileerr.CodeSinkWriteFailure, "put "+obj.Key)
	}
	if err := os.MkdirAll(filepath.Dir(fileName), os.ModePerm); err != nil {
		return tileerr.Wrap(err, tileerr.CodeSinkWriteFailure, "put "+obj.Key)
	}
	if err := os.WriteFile(fileName, obj.Body, 0o644); err != nil {
		return tileerr.Wrap(err, tileerr.CodeSinkWriteFailure, "put "+obj.Key)
	}
	return nil
}
