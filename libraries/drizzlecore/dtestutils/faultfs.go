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

package dtestutils

import (
	"io"
	"os"
	"strings"
	"sync"

	"github.com/0xffea/drizzle-sub000/libraries/utils/filesys"
)

// Filesystem operations FaultFS can fail.
const (
	FSRead   = "read"
	FSWrite  = "write"
	FSDelete = "delete"
	FSMove   = "move"
	FSMkDirs = "mkdirs"
)

// FaultFS wraps a filesys.Filesys and fails chosen operations on paths with a given suffix.
type FaultFS struct {
	filesys.Filesys

	mu     sync.Mutex
	faults []fault
}

type fault struct {
	op, suffix string
	err        error
	remaining  int
}

var _ filesys.Filesys = (*FaultFS)(nil)

func NewFaultFS(fs filesys.Filesys) *FaultFS {
	return &FaultFS{Filesys: fs}
}

// Fail makes the next |times| |op| operations on a path ending in |suffix| return |err|. A negative |times| fails
// every such operation until Reset.
func (f *FaultFS) Fail(op, suffix string, times int, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.faults = append(f.faults, fault{op: op, suffix: suffix, err: err, remaining: times})
}

func (f *FaultFS) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.faults = nil
}

func (f *FaultFS) check(op, path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.faults {
		flt := &f.faults[i]
		if flt.op != op || !strings.HasSuffix(path, flt.suffix) || flt.remaining == 0 {
			continue
		}
		if flt.remaining > 0 {
			flt.remaining--
		}
		return flt.err
	}
	return nil
}

func (f *FaultFS) OpenForRead(fp string) (io.ReadCloser, error) {
	if err := f.check(FSRead, fp); err != nil {
		return nil, err
	}
	return f.Filesys.OpenForRead(fp)
}

func (f *FaultFS) ReadFile(fp string) ([]byte, error) {
	if err := f.check(FSRead, fp); err != nil {
		return nil, err
	}
	return f.Filesys.ReadFile(fp)
}

func (f *FaultFS) OpenForWriteAppend(fp string, perm os.FileMode) (io.WriteCloser, error) {
	if err := f.check(FSWrite, fp); err != nil {
		return nil, err
	}
	return f.Filesys.OpenForWriteAppend(fp, perm)
}

func (f *FaultFS) WriteFile(fp string, data []byte, perm os.FileMode) error {
	if err := f.check(FSWrite, fp); err != nil {
		return err
	}
	return f.Filesys.WriteFile(fp, data, perm)
}

func (f *FaultFS) MkDirs(path string) error {
	if err := f.check(FSMkDirs, path); err != nil {
		return err
	}
	return f.Filesys.MkDirs(path)
}

func (f *FaultFS) DeleteFile(path string) error {
	if err := f.check(FSDelete, path); err != nil {
		return err
	}
	return f.Filesys.DeleteFile(path)
}

func (f *FaultFS) Delete(path string, force bool) error {
	if err := f.check(FSDelete, path); err != nil {
		return err
	}
	return f.Filesys.Delete(path, force)
}

func (f *FaultFS) MoveFile(srcPath, destPath string) error {
	if err := f.check(FSMove, srcPath); err != nil {
		return err
	}
	return f.Filesys.MoveFile(srcPath, destPath)
}
