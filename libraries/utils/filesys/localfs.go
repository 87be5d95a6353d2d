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
	"errors"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// LocalFS is the machines local filesystem
var LocalFS = &localFS{}

type localFS struct{}

var _ Filesys = (*localFS)(nil)

// Exists will tell you if a file or directory with a given path already exists, and if it does is it a directory
func (fs *localFS) Exists(path string) (exists bool, isDir bool) {
	stat, err := os.Stat(path)

	if err != nil {
		return false, false
	}

	return true, stat.IsDir()
}

var errStopMarker = errors.New("stop")

// Iter iterates over the files and subdirectories within a given directory (Optionally recursively).
func (fs *localFS) Iter(path string, recursive bool, cb FSIterCB) error {
	if !recursive {
		entries, err := os.ReadDir(path)
		if err != nil {
			return err
		}

		for _, entry := range entries {
			var size int64
			if info, err := entry.Info(); err == nil {
				size = info.Size()
			}

			if cb(filepath.Join(path, entry.Name()), size, entry.IsDir()) {
				return nil
			}
		}

		return nil
	}

	err := filepath.Walk(path, func(curr string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		if curr != path {
			if cb(curr, info.Size(), info.IsDir()) {
				return errStopMarker
			}
		}
		return nil
	})

	if err == errStopMarker {
		return nil
	}

	return err
}

// OpenForRead opens a file for reading
func (fs *localFS) OpenForRead(fp string) (io.ReadCloser, error) {
	if exists, isDir := fs.Exists(fp); !exists {
		return nil, os.ErrNotExist
	} else if isDir {
		return nil, ErrIsDir
	}

	return os.Open(fp)
}

// ReadFile reads the entire contents of a file
func (fs *localFS) ReadFile(fp string) ([]byte, error) {
	return os.ReadFile(fp)
}

// OpenForWriteAppend opens a file for writing. The file will be created if it does not exist, and if it does exist
// it will append to existing file.
func (fs *localFS) OpenForWriteAppend(fp string, perm os.FileMode) (io.WriteCloser, error) {
	if exists, isDir := fs.Exists(fp); exists && isDir {
		return nil, ErrIsDir
	}

	return os.OpenFile(fp, os.O_CREATE|os.O_APPEND|os.O_WRONLY, perm)
}

// WriteFile writes |data| to a temporary file in the destination directory, syncs it, and renames it over |fp|.
// rename(2) within a directory is atomic, so a concurrent reader sees the old or the new file.
func (fs *localFS) WriteFile(fp string, data []byte, perm os.FileMode) (err error) {
	if exists, isDir := fs.Exists(fp); exists && isDir {
		return ErrIsDir
	}

	dir := filepath.Dir(fp)
	tmp := filepath.Join(dir, "."+filepath.Base(fp)+"."+uuid.NewString()+".tmp")

	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_EXCL|os.O_WRONLY, perm)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp)
		}
	}()

	if _, err = f.Write(data); err != nil {
		_ = f.Close()
		return err
	}

	if err = f.Sync(); err != nil {
		_ = f.Close()
		return err
	}

	if err = f.Close(); err != nil {
		return err
	}

	return os.Rename(tmp, fp)
}

// MkDirs creates a folder and all the parent folders that are necessary to create it.
func (fs *localFS) MkDirs(path string) error {
	_, err := os.Stat(path)

	if err != nil {
		return os.MkdirAll(path, os.ModePerm)
	}

	return nil
}

// DeleteFile will delete a file at the given path
func (fs *localFS) DeleteFile(path string) error {
	exists, isDir := fs.Exists(path)
	if !exists {
		return os.ErrNotExist
	} else if isDir {
		return ErrIsDir
	}

	return os.Remove(path)
}

// Delete will delete an empty directory, or a file.  If trying delete a directory that is not empty you can set force to
// true in order to delete the dir and all of it's contents
func (fs *localFS) Delete(path string, force bool) error {
	if exists, _ := fs.Exists(path); !exists {
		return os.ErrNotExist
	}

	if !force {
		return os.Remove(path)
	}

	return os.RemoveAll(path)
}

// MoveFile will move a file from the srcPath in the filesystem to the destPath
func (fs *localFS) MoveFile(srcPath, destPath string) error {
	if exists, isDir := fs.Exists(srcPath); !exists {
		return os.ErrNotExist
	} else if isDir {
		return ErrIsDir
	}

	if exists, isDir := fs.Exists(destPath); exists && isDir {
		return ErrIsDir
	}

	return os.Rename(srcPath, destPath)
}

// Abs converts a path to an absolute path.  If it's already an absolute path the input path will be returned unaltered
func (fs *localFS) Abs(path string) (string, error) {
	return filepath.Abs(path)
}
