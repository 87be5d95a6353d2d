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
	"path/filepath"
	"sync/atomic"

	"github.com/juju/fslock"
	"github.com/pkg/errors"
)

const unlockedStateValue int32 = 0
const lockedStateValue int32 = 1

// LockFileName is the name of the lock file created inside a locked directory.
const LockFileName = "LOCK"

// ErrLocked is returned by TryLock implementations when another owner holds the lock.
var ErrLocked = errors.New("lock is held by another process")

// errLockUnlock occurs if there is an error unlocking the lock
var errLockUnlock = errors.New("unable to unlock the lock")

// FilesysLock is an interface for locking and unlocking filesystems
type FilesysLock interface {
	TryLock() (bool, error)
	Unlock() error
}

// CreateFilesysLock creates a new FilesysLock guarding |dir|.
func CreateFilesysLock(fs Filesys, dir string) (FilesysLock, error) {
	switch fs.(type) {
	case *InMemFS:
		return NewInMemFileLock(), nil
	case *localFS:
		abs, err := fs.Abs(dir)
		if err != nil {
			return nil, err
		}
		return NewLocalFileLock(filepath.Join(abs, LockFileName)), nil
	default:
		return nil, errors.Errorf("unsupported file system %T", fs)
	}
}

// InMemFileLock is a lock for the InMemFS
type InMemFileLock struct {
	state int32
}

// NewInMemFileLock creates a new InMemFileLock
func NewInMemFileLock() *InMemFileLock {
	return &InMemFileLock{unlockedStateValue}
}

// TryLock attempts to lock the lock or fails if it is already locked
func (memLock *InMemFileLock) TryLock() (bool, error) {
	if atomic.CompareAndSwapInt32(&memLock.state, unlockedStateValue, lockedStateValue) {
		return true, nil
	}
	return false, nil
}

// Unlock unlocks the lock
func (memLock *InMemFileLock) Unlock() error {
	if atomic.LoadInt32(&memLock.state) == unlockedStateValue {
		return nil
	}

	if !atomic.CompareAndSwapInt32(&memLock.state, lockedStateValue, unlockedStateValue) {
		return errLockUnlock
	}

	return nil
}

// LocalFileLock is the lock for the localFS
type LocalFileLock struct {
	lck *fslock.Lock
}

// NewLocalFileLock creates a new LocalFileLock
func NewLocalFileLock(filename string) *LocalFileLock {
	return &LocalFileLock{lck: fslock.New(filename)}
}

// TryLock attempts to lock the lock or fails if it is already locked
func (locLock *LocalFileLock) TryLock() (bool, error) {
	err := locLock.lck.TryLock()
	if err == fslock.ErrLocked {
		return false, nil
	} else if err != nil {
		return false, errors.Wrap(err, "acquiring file lock")
	}
	return true, nil
}

// Unlock unlocks the lock
func (locLock *LocalFileLock) Unlock() error {
	return errors.Wrap(locLock.lck.Unlock(), "releasing file lock")
}
