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
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

const (
	testFilename       = "testfile.txt"
	testSubdirFilename = "anothertest.txt"
	movedFilename      = "movedfile.txt"
	testString         = "this is a test"
)

func filesystemsToTest(t *testing.T) map[string]struct {
	fs   Filesys
	root string
} {
	return map[string]struct {
		fs   Filesys
		root string
	}{
		"inmem": {EmptyInMemFS("/"), "/data"},
		"local": {LocalFS, t.TempDir()},
	}
}

func TestFilesystems(t *testing.T) {
	for fsName, tc := range filesystemsToTest(t) {
		t.Run(fsName, func(t *testing.T) {
			fs := tc.fs
			dir := filepath.Join(tc.root, "filesys_test")
			subdir := filepath.Join(dir, "subdir")
			subdirFile := filepath.Join(subdir, testSubdirFilename)
			fp := filepath.Join(dir, testFilename)
			movedFilePath := filepath.Join(dir, movedFilename)

			// Test file doesn't exist before creation
			exists, _ := fs.Exists(dir)
			require.False(t, exists)

			require.NoError(t, fs.MkDirs(dir))
			require.NoError(t, fs.MkDirs(subdir))

			exists, isDir := fs.Exists(dir)
			require.True(t, exists)
			require.True(t, isDir)

			// Test failure to open a directory for read or write
			_, err := fs.OpenForRead(dir)
			require.Error(t, err)
			require.Error(t, fs.WriteFile(dir, []byte(testString), os.ModePerm))

			// Test can't open a file that doesn't exist for read
			_, err = fs.OpenForRead(fp)
			require.Error(t, err)
			require.True(t, IsNotExist(err))

			data := bytes.Repeat([]byte(testString), 1024)
			require.NoError(t, fs.WriteFile(fp, data, os.ModePerm))

			dataRead, err := fs.ReadFile(fp)
			require.NoError(t, err)
			require.Equal(t, data, dataRead)

			// Overwrite replaces the contents wholesale
			require.NoError(t, fs.WriteFile(fp, []byte(testString), os.ModePerm))
			dataRead, err = fs.ReadFile(fp)
			require.NoError(t, err)
			require.Equal(t, []byte(testString), dataRead)

			require.NoError(t, fs.MoveFile(fp, movedFilePath))
			exists, _ = fs.Exists(fp)
			require.False(t, exists)
			exists, isDir = fs.Exists(movedFilePath)
			require.True(t, exists)
			require.False(t, isDir)

			require.NoError(t, fs.WriteFile(subdirFile, []byte("helloworld"), os.ModePerm))

			var files []string
			require.NoError(t, fs.Iter(dir, true, func(path string, size int64, isDir bool) (stop bool) {
				files = append(files, path)
				return false
			}))
			sort.Strings(files)
			require.Equal(t, []string{movedFilePath, subdir, subdirFile}, files)

			// Non-recursive iteration only sees direct children
			files = nil
			require.NoError(t, fs.Iter(dir, false, func(path string, size int64, isDir bool) (stop bool) {
				files = append(files, path)
				return false
			}))
			sort.Strings(files)
			require.Equal(t, []string{movedFilePath, subdir}, files)

			require.Error(t, fs.Delete(subdir, false))
			require.NoError(t, fs.Delete(subdir, true))
			exists, _ = fs.Exists(subdirFile)
			require.False(t, exists)

			require.NoError(t, fs.DeleteFile(movedFilePath))
			require.True(t, IsNotExist(fs.DeleteFile(movedFilePath)))
		})
	}
}

func TestWriteFileIsNeverTorn(t *testing.T) {
	for fsName, tc := range filesystemsToTest(t) {
		t.Run(fsName, func(t *testing.T) {
			fs := tc.fs
			require.NoError(t, fs.MkDirs(tc.root))
			fp := filepath.Join(tc.root, "atomic.bin")

			a := bytes.Repeat([]byte{'a'}, 64*1024)
			b := bytes.Repeat([]byte{'b'}, 32*1024)
			require.NoError(t, fs.WriteFile(fp, a, os.ModePerm))

			var wg sync.WaitGroup
			stop := make(chan struct{})
			wg.Add(1)
			go func() {
				defer wg.Done()
				for i := 0; i < 50; i++ {
					data := a
					if i%2 == 0 {
						data = b
					}
					if err := fs.WriteFile(fp, data, os.ModePerm); err != nil {
						t.Error(err)
					}
				}
				close(stop)
			}()

			for {
				select {
				case <-stop:
					wg.Wait()
					return
				default:
				}

				read, err := fs.ReadFile(fp)
				require.NoError(t, err)
				require.True(t, bytes.Equal(read, a) || bytes.Equal(read, b), "observed a torn write of %d bytes", len(read))
			}
		})
	}
}

func TestOpenForWriteAppend(t *testing.T) {
	for fsName, tc := range filesystemsToTest(t) {
		t.Run(fsName, func(t *testing.T) {
			fs := tc.fs
			require.NoError(t, fs.MkDirs(tc.root))
			fp := filepath.Join(tc.root, "events.log")

			for _, line := range []string{"first\n", "second\n"} {
				wr, err := fs.OpenForWriteAppend(fp, os.ModePerm)
				require.NoError(t, err)
				_, err = wr.Write([]byte(line))
				require.NoError(t, err)
				require.NoError(t, wr.Close())
			}

			data, err := fs.ReadFile(fp)
			require.NoError(t, err)
			require.Equal(t, "first\nsecond\n", string(data))

			_, err = fs.OpenForWriteAppend(tc.root, os.ModePerm)
			require.ErrorIs(t, err, ErrIsDir)
			require.Error(t, fs.Iter(fp, false, func(string, int64, bool) bool { return false }))
		})
	}
}

func TestInMemFileLock(t *testing.T) {
	lck, err := CreateFilesysLock(EmptyInMemFS("/"), "/data")
	require.NoError(t, err)

	ok, err := lck.TryLock()
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = lck.TryLock()
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, lck.Unlock())
	ok, err = lck.TryLock()
	require.NoError(t, err)
	require.True(t, ok)
}

func TestLocalFileLock(t *testing.T) {
	dir := t.TempDir()
	lck, err := CreateFilesysLock(LocalFS, dir)
	require.NoError(t, err)

	ok, err := lck.TryLock()
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, lck.Unlock())
}
