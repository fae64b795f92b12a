package pagecat

import (
	"bytes"
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// defaultFilePerms is the mode of a new page when none is configured.
const defaultFilePerms = 0644

var (
	errNoParentDir = errors.New("parent directory is missing")
	errMissingDest = errors.New("missing destination")

	// renameFile moves the finished temp file over the destination. Tests
	// replace it to simulate an interrupted write.
	renameFile = os.Rename
)

// Renderer outputs rendered page contents.
type Renderer interface {
	Render(contents []byte) (RenderResult, error)
}

// FileRenderer writes rendered contents to a file, replacing it atomically.
type FileRenderer struct {
	createDestDirs bool
	path           string
	perms          os.FileMode
	backup         BackupFunc
	marker         []byte
	force          bool
	dry            bool
	dryStream      io.Writer
}

var _ Renderer = (*FileRenderer)(nil)

// NewFileRenderer returns a new FileRenderer.
func NewFileRenderer(i FileRendererInput) FileRenderer {
	backup := i.Backup
	if backup == nil {
		backup = func(string) {}
	}
	dryStream := i.DryStream
	if dryStream == nil {
		dryStream = io.Discard
	}
	return FileRenderer{
		createDestDirs: i.CreateDestDirs,
		path:           i.Path,
		perms:          i.Perms,
		backup:         backup,
		marker:         i.Marker,
		force:          i.Force,
		dry:            i.DryRun,
		dryStream:      dryStream,
	}
}

// FileRendererInput is the input structure for NewFileRenderer.
type FileRendererInput struct {
	// CreateDestDirs causes missing directories on path to be created
	CreateDestDirs bool
	// Path is the full file path to write to
	Path string
	// Perms sets the mode of the file
	Perms os.FileMode
	// Backup causes a backup of the rendered file to be made
	Backup BackupFunc
	// Marker, when set, must prefix an existing file for it to be replaced
	// unless Force is true.
	Marker []byte
	// Force replaces the destination even if it does not carry the Marker.
	Force bool
	// DryRun writes the contents to DryStream instead of Path.
	DryRun    bool
	DryStream io.Writer
}

// BackupFunc is called with the destination path before an existing file is
// replaced.
type BackupFunc func(path string)

// RenderResult reports the outcome of a render.
type RenderResult struct {
	// DidRender is true when the file was replaced. It is false in dry-run
	// mode and when the file already held the same contents.
	DidRender bool

	// WouldRender is true whenever the contents were acceptable for the
	// destination, including dry runs and unchanged files.
	WouldRender bool
}

// Render atomically renders a file contents to disk, returning a result of
// whether it would have rendered and actually did render.
func (r FileRenderer) Render(contents []byte) (RenderResult, error) {
	if r.path == "" {
		return RenderResult{}, errMissingDest
	}

	existing, err := os.ReadFile(r.path)
	fileExists := !os.IsNotExist(err)
	if err != nil && fileExists {
		return RenderResult{}, errors.Wrap(err, "failed reading file")
	}

	unchanged := fileExists && bytes.Equal(existing, contents)

	if fileExists && !unchanged && !r.force && len(r.marker) > 0 &&
		!bytes.HasPrefix(existing, r.marker) {
		return RenderResult{}, ErrUnmanagedDest
	}

	// a dry run always prints the page, even when the file already matches
	if r.dry {
		if _, err := r.dryStream.Write(contents); err != nil {
			return RenderResult{}, errors.Wrap(err, "failed writing dry run")
		}
		return RenderResult{
			DidRender:   false,
			WouldRender: true,
		}, nil
	}

	if unchanged {
		return RenderResult{
			DidRender:   false,
			WouldRender: true,
		}, nil
	}

	if fileExists {
		r.backup(r.path)
	}

	err = atomicWrite(r.path, contents, r.perms, r.createDestDirs)
	if err != nil {
		return RenderResult{}, errors.Wrap(err, "failed writing file")
	}

	return RenderResult{
		DidRender:   true,
		WouldRender: true,
	}, nil
}

// Backup hard links the current file to <path>.bak, so the link keeps the
// old contents once the page is replaced. An earlier backup is kept as
// <path>.old.bak until the new link exists.
func Backup(path string) {
	if path == "" {
		return
	}
	bak, old := path+".bak", path+".old.bak"
	os.Rename(bak, old) // ignore error
	if err := os.Link(path, bak); err == nil {
		os.Remove(old) // ignore error
	}
}

// atomicWrite replaces path with contents. The contents go to a temp file in
// the same directory which is synced, given its mode and renamed over path,
// so readers see either the old or the new file. The temp file is removed on
// any failure.
//
// A missing parent directory is created (0755) only when createDestDirs is
// set. A zero perms keeps the mode and, where supported, the owner of the
// existing file, or uses defaultFilePerms for a new one.
func atomicWrite(
	path string, contents []byte, perms os.FileMode, createDestDirs bool,
) error {
	if path == "" {
		return errMissingDest
	}

	parent := filepath.Dir(path)
	switch _, err := os.Stat(parent); {
	case err == nil:
	case !os.IsNotExist(err):
		return err
	case !createDestDirs:
		return errNoParentDir
	default:
		if err := os.MkdirAll(parent, 0755); err != nil {
			return err
		}
	}

	f, err := os.CreateTemp(parent, "."+filepath.Base(path)+".tmp-")
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			f.Close()
			os.Remove(f.Name())
		}
	}()

	if _, err := f.Write(contents); err != nil {
		return err
	}

	if err := f.Sync(); err != nil {
		return err
	}

	if err := f.Close(); err != nil {
		return err
	}

	if perms == 0 {
		current, err := os.Stat(path)
		switch {
		case os.IsNotExist(err):
			perms = defaultFilePerms
		case err != nil:
			return err
		default:
			perms = current.Mode()
			preserveFilePermissions(f.Name(), current)
		}
	}

	if err := os.Chmod(f.Name(), perms); err != nil {
		return err
	}

	if err := renameFile(f.Name(), path); err != nil {
		return err
	}
	committed = true

	return nil
}
