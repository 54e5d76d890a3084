package labeller

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/praekelt/helpdesk/pkg/logger"
)

var ErrNotOwner = errors.New("lease held by another owner")

// FileLease is a lock file with an owner and expiry, shared by processes
// pointing at the same directory.
type FileLease struct {
	path string
	now  func() time.Time
}

type leaseFile struct {
	Owner   string `json:"owner"`
	Expires string `json:"expires"`
}

func NewFileLease(dir string) *FileLease {
	return &FileLease{path: filepath.Join(dir, "labeller.lock"), now: func() time.Time { return time.Now().UTC() }}
}

func (l *FileLease) read() (*leaseFile, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return nil, err
	}
	var lf leaseFile
	if err := json.Unmarshal(data, &lf); err != nil {
		return nil, fmt.Errorf("parse %s: %w", l.path, err)
	}
	return &lf, nil
}

func (l *FileLease) writeTmp(owner string, ttl time.Duration) (string, error) {
	b, err := json.Marshal(leaseFile{Owner: owner, Expires: l.now().Add(ttl).Format(time.RFC3339Nano)})
	if err != nil {
		return "", err
	}
	tmp := l.path + "." + owner + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		logger.Error("lease_tmp_write_failed", "path", tmp, "error", err)
		return "", err
	}
	return tmp, nil
}

// Acquire takes the lease if it is free or expired.
func (l *FileLease) Acquire(owner string, ttl time.Duration) (bool, error) {
	tmp, err := l.writeTmp(owner, ttl)
	if err != nil {
		return false, err
	}
	defer os.Remove(tmp)

	if err := os.Link(tmp, l.path); err == nil {
		logger.Debug("lease_acquired", "path", l.path, "owner", owner)
		return true, nil
	}
	existing, err := l.read()
	if err != nil {
		return false, err
	}
	expires, _ := time.Parse(time.RFC3339Nano, existing.Expires)
	if !expires.Before(l.now()) {
		logger.Debug("lease_currently_held", "path", l.path, "owner", existing.Owner)
		return false, nil
	}
	if err := os.Rename(tmp, l.path); err != nil {
		logger.Error("lease_replace_failed", "error", err)
		return false, err
	}
	logger.Info("lease_acquired_expired", "path", l.path, "owner", owner, "previous", existing.Owner)
	return true, nil
}

func (l *FileLease) Renew(owner string, ttl time.Duration) error {
	existing, err := l.read()
	if err != nil {
		return err
	}
	if existing.Owner != owner {
		return ErrNotOwner
	}
	tmp, err := l.writeTmp(owner, ttl)
	if err != nil {
		return err
	}
	if err := os.Rename(tmp, l.path); err != nil {
		_ = os.Remove(tmp)
		logger.Error("lease_renew_rename_failed", "error", err)
		return err
	}
	return nil
}

func (l *FileLease) Release(owner string) error {
	existing, err := l.read()
	if err != nil {
		return err
	}
	if existing.Owner != owner {
		logger.Error("lease_release_not_owner", "owner", owner)
		return ErrNotOwner
	}
	return os.Remove(l.path)
}
