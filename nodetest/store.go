package nodetest

import (
	"errors"
	"fmt"
	"maps"
	"path"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/meowith/connector-go/connector"
	"github.com/meowith/connector-go/internal/web/errs"
)

var (
	errEmptyPath   = errors.New("empty path")
	errInvalidPath = errors.New("path segments must not be empty, . or ..")
	errNoEntity    = errors.New("no such entity")
	errExists      = errors.New("entity already exists")
	errNotEmpty    = errors.New("directory is not empty")
	errIntoItself  = errors.New("cannot move a directory into itself")
	errQuota       = errors.New("bucket quota exceeded")
)

// cleanPath trims surrounding slashes and rejects relative segments.
func cleanPath(p string) (string, error) {
	p = strings.Trim(p, "/")
	if p == "" {
		return "", errs.New(connector.BadRequest, errEmptyPath)
	}

	for seg := range strings.SplitSeq(p, "/") {
		if seg == "" || seg == "." || seg == ".." {
			return "", errs.New(connector.BadRequest, fmt.Errorf("%q: %w", p, errInvalidPath))
		}
	}

	return p, nil
}

func parentOf(p string) string {
	dir := path.Dir(p)
	if dir == "." {
		return ""
	}
	return dir
}

func (n *Node) existsLocked(p string) bool {
	_, isDir := n.dirs[p]
	_, isFile := n.files[p]
	return isDir || isFile
}

// ensureParentsLocked creates every missing ancestor directory of p.
func (n *Node) ensureParentsLocked(p string, now time.Time) error {
	for dir := parentOf(p); dir != ""; dir = parentOf(dir) {
		if _, ok := n.files[dir]; ok {
			return errs.New(connector.EntityExists, fmt.Errorf("%q is a file: %w", dir, errExists))
		}
		if _, ok := n.dirs[dir]; !ok {
			n.dirs[dir] = &dirEntry{id: uuid.New(), created: now, modified: now}
		}
	}
	return nil
}

func (n *Node) parentIDLocked(p string) *uuid.UUID {
	d, ok := n.dirs[parentOf(p)]
	if !ok {
		return nil
	}
	id := d.id
	return &id
}

func (n *Node) spaceTakenLocked() int64 {
	var total int64
	for _, f := range n.files {
		total += int64(len(f.data))
	}
	return total
}

// checkQuotaLocked reports whether size bytes fit at p, counting the file
// they would replace as freed.
func (n *Node) checkQuotaLocked(p string, size uint64) error {
	taken := n.spaceTakenLocked()
	if f, ok := n.files[p]; ok {
		taken -= int64(len(f.data))
	}

	if size > uint64(n.quota) || taken+int64(size) > n.quota {
		return errs.New(connector.InsufficientStorage, fmt.Errorf("%d bytes at %q: %w", size, p, errQuota))
	}
	return nil
}

// storeLocked writes data at p, replacing any file there.
func (n *Node) storeLocked(p string, data []byte, now time.Time) error {
	if _, ok := n.dirs[p]; ok {
		return errs.New(connector.EntityExists, fmt.Errorf("%q is a directory: %w", p, errExists))
	}
	if err := n.ensureParentsLocked(p, now); err != nil {
		return err
	}

	created := now
	if f, ok := n.files[p]; ok {
		created = f.created
	}

	n.files[p] = &fileEntry{data: data, created: created, modified: now}
	n.modified = now
	return nil
}

func (n *Node) createDirLocked(p string, now time.Time) error {
	if n.existsLocked(p) {
		return errs.New(connector.EntityExists, fmt.Errorf("%q: %w", p, errExists))
	}
	if err := n.ensureParentsLocked(p, now); err != nil {
		return err
	}

	n.dirs[p] = &dirEntry{id: uuid.New(), created: now, modified: now}
	n.modified = now
	return nil
}

func (n *Node) renameFileLocked(from, to string, now time.Time) error {
	f, ok := n.files[from]
	if !ok {
		return errs.New(connector.NotFound, fmt.Errorf("%q: %w", from, errNoEntity))
	}
	if n.existsLocked(to) {
		return errs.New(connector.EntityExists, fmt.Errorf("%q: %w", to, errExists))
	}
	if err := n.ensureParentsLocked(to, now); err != nil {
		return err
	}

	delete(n.files, from)
	f.modified = now
	n.files[to] = f
	n.modified = now
	return nil
}

func (n *Node) renameDirLocked(from, to string, now time.Time) error {
	if _, ok := n.dirs[from]; !ok {
		return errs.New(connector.NotFound, fmt.Errorf("%q: %w", from, errNoEntity))
	}
	if to == from || strings.HasPrefix(to, from+"/") {
		return errs.New(connector.BadRequest, fmt.Errorf("%q to %q: %w", from, to, errIntoItself))
	}
	if n.existsLocked(to) {
		return errs.New(connector.EntityExists, fmt.Errorf("%q: %w", to, errExists))
	}
	if err := n.ensureParentsLocked(to, now); err != nil {
		return err
	}

	moved := func(p string) (string, bool) {
		if p == from {
			return to, true
		}
		if rest, ok := strings.CutPrefix(p, from+"/"); ok {
			return to + "/" + rest, true
		}
		return "", false
	}

	for _, p := range slices.Collect(maps.Keys(n.dirs)) {
		if dst, ok := moved(p); ok {
			n.dirs[dst] = n.dirs[p]
			delete(n.dirs, p)
		}
	}
	for _, p := range slices.Collect(maps.Keys(n.files)) {
		if dst, ok := moved(p); ok {
			n.files[dst] = n.files[p]
			delete(n.files, p)
		}
	}

	n.dirs[to].modified = now
	n.modified = now
	return nil
}

func (n *Node) deleteFileLocked(p string, now time.Time) error {
	if _, ok := n.files[p]; !ok {
		return errs.New(connector.NotFound, fmt.Errorf("%q: %w", p, errNoEntity))
	}

	delete(n.files, p)
	n.modified = now
	return nil
}

func (n *Node) deleteDirLocked(p string, recursive bool, now time.Time) error {
	if _, ok := n.dirs[p]; !ok {
		return errs.New(connector.NotFound, fmt.Errorf("%q: %w", p, errNoEntity))
	}

	prefix := p + "/"
	children := slices.ContainsFunc(slices.Collect(maps.Keys(n.dirs)), func(d string) bool { return strings.HasPrefix(d, prefix) }) ||
		slices.ContainsFunc(slices.Collect(maps.Keys(n.files)), func(f string) bool { return strings.HasPrefix(f, prefix) })
	if children && !recursive {
		return errs.New(connector.NotEmpty, fmt.Errorf("%q: %w", p, errNotEmpty))
	}

	maps.DeleteFunc(n.dirs, func(d string, _ *dirEntry) bool { return d == p || strings.HasPrefix(d, prefix) })
	maps.DeleteFunc(n.files, func(f string, _ *fileEntry) bool { return strings.HasPrefix(f, prefix) })
	n.modified = now
	return nil
}

func (n *Node) fileEntityLocked(p string) connector.Entity {
	f := n.files[p]
	return connector.Entity{
		Name:         p,
		DirID:        n.parentIDLocked(p),
		Size:         uint64(len(f.data)),
		Created:      f.created,
		LastModified: f.modified,
	}
}

func (n *Node) dirEntityLocked(p string) connector.Entity {
	d := n.dirs[p]
	return connector.Entity{
		Name:         p,
		DirID:        n.parentIDLocked(p),
		IsDir:        true,
		Created:      d.created,
		LastModified: d.modified,
	}
}

func (n *Node) statLocked(p string) (connector.Entity, error) {
	switch {
	case n.files[p] != nil:
		return n.fileEntityLocked(p), nil
	case n.dirs[p] != nil:
		return n.dirEntityLocked(p), nil
	default:
		return connector.Entity{}, errs.New(connector.NotFound, fmt.Errorf("%q: %w", p, errNoEntity))
	}
}

// childrenLocked lists the direct children of dir, directories first, each
// group sorted by path. The empty dir is the bucket root.
func (n *Node) childrenLocked(dir string) ([]connector.Entity, error) {
	if _, ok := n.dirs[dir]; !ok && dir != "" {
		return nil, errs.New(connector.NotFound, fmt.Errorf("%q: %w", dir, errNoEntity))
	}

	entities := make([]connector.Entity, 0)
	for _, p := range slices.Sorted(maps.Keys(n.dirs)) {
		if parentOf(p) == dir {
			entities = append(entities, n.dirEntityLocked(p))
		}
	}
	for _, p := range slices.Sorted(maps.Keys(n.files)) {
		if parentOf(p) == dir {
			entities = append(entities, n.fileEntityLocked(p))
		}
	}
	return entities, nil
}

func (n *Node) allFilesLocked() []connector.Entity {
	entities := make([]connector.Entity, 0, len(n.files))
	for _, p := range slices.Sorted(maps.Keys(n.files)) {
		entities = append(entities, n.fileEntityLocked(p))
	}
	return entities
}

func (n *Node) allDirsLocked() []connector.Entity {
	entities := make([]connector.Entity, 0, len(n.dirs))
	for _, p := range slices.Sorted(maps.Keys(n.dirs)) {
		entities = append(entities, n.dirEntityLocked(p))
	}
	return entities
}

// window applies an inclusive [start, end] range to entities.
func window(entities []connector.Entity, start, end *int32) ([]connector.Entity, error) {
	lo, hi := 0, len(entities)-1
	if start != nil {
		if *start < 0 {
			return nil, errs.New(connector.BadRequest, fmt.Errorf("negative range start %d", *start))
		}
		lo = int(*start)
	}
	if end != nil {
		hi = min(hi, int(*end))
	}

	if lo > hi {
		return []connector.Entity{}, nil
	}
	return entities[lo : hi+1], nil
}
