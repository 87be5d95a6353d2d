// Copyright 2026 Dolthub, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package filesys

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

const inMemRoot = "/"

// InMemFS is a Filesys held in memory. Files and directories are kept in two maps keyed by clean absolute path.
type InMemFS struct {
	mu    sync.RWMutex
	cwd   string
	files map[string][]byte
	dirs  map[string]struct{}
}

var _ Filesys = (*InMemFS)(nil)

// EmptyInMemFS returns an InMemFS holding only the root directory. Relative paths resolve against |workingDir|,
// which must be absolute.
func EmptyInMemFS(workingDir string) *InMemFS {
	if workingDir == "" {
		workingDir = inMemRoot
	}
	if !filepath.IsAbs(workingDir) {
		panic("working directory of an InMemFS must be absolute: " + workingDir)
	}

	return &InMemFS{
		cwd:   filepath.Clean(workingDir),
		files: make(map[string][]byte),
		dirs:  map[string]struct{}{inMemRoot: {}},
	}
}

func (fs *InMemFS) abs(path string) string {
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Join(fs.cwd, path)
}

func (fs *InMemFS) Exists(path string) (exists bool, isDir bool) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	return fs.exists(fs.abs(path))
}

func (fs *InMemFS) exists(path string) (bool, bool) {
	if _, ok := fs.dirs[path]; ok {
		return true, true
	}
	_, ok := fs.files[path]
	return ok, false
}

func (fs *InMemFS) Abs(path string) (string, error) {
	return fs.abs(path), nil
}

type inMemEntry struct {
	path  string
	size  int64
	isDir bool
}

// entries lists what lies under |dir|, sorted by path. fs.mu must be held.
func (fs *InMemFS) entries(dir string, recursive bool) []inMemEntry {
	prefix := dir
	if prefix != inMemRoot {
		prefix += string(filepath.Separator)
	}
	under := func(p string) bool {
		if p == dir || !strings.HasPrefix(p, prefix) {
			return false
		}
		return recursive || filepath.Dir(p) == dir
	}

	var res []inMemEntry
	for p := range fs.dirs {
		if under(p) {
			res = append(res, inMemEntry{path: p, isDir: true})
		}
	}
	for p, data := range fs.files {
		if under(p) {
			res = append(res, inMemEntry{path: p, size: int64(len(data))})
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].path < res[j].path })
	return res
}

// Iter walks a snapshot of |path| taken when it is called. |cb| runs without the filesystem lock, so it may use
// the filesystem, and concurrent deletes may make a reported path stale.
func (fs *InMemFS) Iter(path string, recursive bool, cb FSIterCB) error {
	path = fs.abs(path)

	fs.mu.RLock()
	exists, isDir := fs.exists(path)
	var entries []inMemEntry
	if isDir {
		entries = fs.entries(path, recursive)
	}
	fs.mu.RUnlock()

	if !exists {
		return os.ErrNotExist
	} else if !isDir {
		return ErrIsFile
	}

	for _, e := range entries {
		if cb(e.path, e.size, e.isDir) {
			return nil
		}
	}
	return nil
}

func (fs *InMemFS) OpenForRead(fp string) (io.ReadCloser, error) {
	data, err := fs.ReadFile(fp)
	if err != nil {
		return nil, err
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

// ReadFile returns the stored contents of |fp|. Stored contents are never modified in place, so callers share them
// read-only.
func (fs *InMemFS) ReadFile(fp string) ([]byte, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	fp = fs.abs(fp)
	if _, ok := fs.dirs[fp]; ok {
		return nil, ErrIsDir
	}
	data, ok := fs.files[fp]
	if !ok {
		return nil, os.ErrNotExist
	}
	return data, nil
}

// appendWriter buffers appended bytes and publishes them on Close.
type appendWriter struct {
	fs   *InMemFS
	path string
	buf  bytes.Buffer
}

func (w *appendWriter) Write(p []byte) (int, error) {
	return w.buf.Write(p)
}

func (w *appendWriter) Close() error {
	w.fs.mu.Lock()
	defer w.fs.mu.Unlock()

	if _, ok := w.fs.dirs[w.path]; ok {
		return ErrIsDir
	}
	if err := w.fs.mkDirs(filepath.Dir(w.path)); err != nil {
		return err
	}
	existing := w.fs.files[w.path]
	data := make([]byte, 0, len(existing)+w.buf.Len())
	w.fs.files[w.path] = append(append(data, existing...), w.buf.Bytes()...)
	return nil
}

func (fs *InMemFS) OpenForWriteAppend(fp string, _ os.FileMode) (io.WriteCloser, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	fp = fs.abs(fp)
	if _, ok := fs.dirs[fp]; ok {
		return nil, ErrIsDir
	}
	return &appendWriter{fs: fs, path: fp}, nil
}

// WriteFile stores a private copy of |data|, creating missing parent directories.
func (fs *InMemFS) WriteFile(fp string, data []byte, _ os.FileMode) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	fp = fs.abs(fp)
	if _, ok := fs.dirs[fp]; ok {
		return ErrIsDir
	}
	if err := fs.mkDirs(filepath.Dir(fp)); err != nil {
		return err
	}
	fs.files[fp] = append([]byte(nil), data...)
	return nil
}

func (fs *InMemFS) MkDirs(path string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.mkDirs(fs.abs(path))
}

// mkDirs creates the clean absolute directory |path| and its parents. fs.mu must be held for writing.
func (fs *InMemFS) mkDirs(path string) error {
	var missing []string
	for p := path; ; p = filepath.Dir(p) {
		if _, ok := fs.files[p]; ok {
			return fmt.Errorf("cannot create directory %s: %w", path, ErrIsFile)
		}
		if _, ok := fs.dirs[p]; ok {
			break
		}
		missing = append(missing, p)
	}
	for _, p := range missing {
		fs.dirs[p] = struct{}{}
	}
	return nil
}

func (fs *InMemFS) DeleteFile(path string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	path = fs.abs(path)
	if _, ok := fs.dirs[path]; ok {
		return ErrIsDir
	}
	if _, ok := fs.files[path]; !ok {
		return os.ErrNotExist
	}
	delete(fs.files, path)
	return nil
}

func (fs *InMemFS) Delete(path string, force bool) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	path = fs.abs(path)
	exists, isDir := fs.exists(path)
	if !exists {
		return os.ErrNotExist
	} else if !isDir {
		delete(fs.files, path)
		return nil
	}

	children := fs.entries(path, true)
	if !force && len(children) > 0 {
		return fmt.Errorf("%s: %w", path, ErrDirNotEmpty)
	}
	for _, e := range children {
		delete(fs.files, e.path)
		delete(fs.dirs, e.path)
	}
	if path != inMemRoot {
		delete(fs.dirs, path)
	}
	return nil
}

func (fs *InMemFS) MoveFile(srcPath, destPath string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	srcPath, destPath = fs.abs(srcPath), fs.abs(destPath)
	if _, ok := fs.dirs[destPath]; ok {
		return ErrIsDir
	}
	if _, ok := fs.dirs[srcPath]; ok {
		return ErrIsDir
	}
	data, ok := fs.files[srcPath]
	if !ok {
		return os.ErrNotExist
	}
	if err := fs.mkDirs(filepath.Dir(destPath)); err != nil {
		return err
	}
	delete(fs.files, srcPath)
	fs.files[destPath] = data
	return nil
}
