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
)

var ErrIsDir = errors.New("operation not valid on a directory")
var ErrIsFile = errors.New("operation not valid on a file")
var ErrDirNotEmpty = errors.New("directory is not empty")

// FSIterCB is called for every entry found by Filesys.Iter. Returning true stops the iteration.
type FSIterCB func(path string, size int64, isDir bool) (stop bool)

// Filesys is the file access the catalog needs: definition files, schema directories, engine data files and the
// replication log. LocalFS serves a data directory on disk and InMemFS serves tests.
type Filesys interface {
	// OpenForRead opens a file for reading
	OpenForRead(fp string) (io.ReadCloser, error)

	// ReadFile reads the entire contents of a file
	ReadFile(fp string) ([]byte, error)

	// Exists reports whether |path| exists and whether it is a directory
	Exists(path string) (exists bool, isDir bool)

	// Abs converts a path to an absolute path
	Abs(path string) (string, error)

	// OpenForWriteAppend opens a file for appending, creating it if needed.
	OpenForWriteAppend(fp string, perm os.FileMode) (io.WriteCloser, error)

	// WriteFile replaces the contents of |fp| with |data|. Readers of |fp| observe either the previous contents or
	// all of |data|, never a partial write.
	WriteFile(fp string, data []byte, perm os.FileMode) error

	// MkDirs creates a directory and any missing parents.
	MkDirs(path string) error

	// DeleteFile deletes a file. It fails with ErrIsDir on a directory.
	DeleteFile(path string) error

	// Delete deletes a file or an empty directory. With |force| a directory is deleted with its contents.
	Delete(path string, force bool) error

	// MoveFile moves a file from |srcPath| to |destPath|, replacing anything at |destPath|.
	MoveFile(srcPath, destPath string) error

	// Iter calls |cb| for the entries of |directory|, descending into subdirectories when |recursive| is set.
	// The order of entries is unspecified.
	Iter(directory string, recursive bool, cb FSIterCB) error
}

// IsNotExist reports whether |err| means a file or directory is missing.
func IsNotExist(err error) bool {
	return errors.Is(err, os.ErrNotExist)
}
