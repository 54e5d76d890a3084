// Package orgs holds per-org configuration accessors and the cached message
// watermarks and task results shared by every process.
package orgs

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/praekelt/helpdesk/pkg/cache"
	"github.com/praekelt/helpdesk/pkg/logger"
	"github.com/praekelt/helpdesk/pkg/models"
	"github.com/praekelt/helpdesk/pkg/utils"
)

const (
	CacheTTL = 7 * 24 * time.Hour

	LastTaskCacheKey           = "org:%d:task_result:%s"
	LastLabelledTimeCacheKey   = "org:%d:last_labelled_time"
	LastUnlabelledTimeCacheKey = "org:%d:last_unlabelled_time"
)

type TaskType string

const TaskLabelMessages TaskType = "label_messages"

func BannerText(o *models.Org) string {
	if o == nil {
		return ""
	}
	return o.BannerText
}

// ContactFields returns the contact fields shown with cases, never nil.
func ContactFields(o *models.Org) []string {
	if o == nil || o.ContactFields == nil {
		return []string{}
	}
	return o.ContactFields
}

// SuspendGroups returns the group uuids contacts leave while a case is open,
// never nil.
func SuspendGroups(o *models.Org) []string {
	if o == nil || o.SuspendGroups == nil {
		return []string{}
	}
	return o.SuspendGroups
}

// Tracker reads and writes the cached watermarks and task results.
type Tracker struct {
	cache cache.Cache
	ttl   time.Duration
}

func NewTracker(c cache.Cache) *Tracker {
	return &Tracker{cache: c, ttl: CacheTTL}
}

// WithTTL overrides how long watermarks and task results live in the cache.
func (t *Tracker) WithTTL(ttl time.Duration) *Tracker {
	if ttl > 0 {
		t.ttl = ttl
	}
	return t
}

func messageTimeKey(orgID int64, labelled bool) string {
	if labelled {
		return fmt.Sprintf(LastLabelledTimeCacheKey, orgID)
	}
	return fmt.Sprintf(LastUnlabelledTimeCacheKey, orgID)
}

// LastMessageTime returns the watermark or the zero time when none is cached.
func (t *Tracker) LastMessageTime(ctx context.Context, orgID int64, labelled bool) (time.Time, error) {
	key := messageTimeKey(orgID, labelled)
	v, ok, err := t.cache.Get(ctx, key)
	if err != nil {
		return time.Time{}, fmt.Errorf("read %s: %w", key, err)
	}
	if !ok || v == "" {
		return time.Time{}, nil
	}
	ts, err := utils.ParseISO8601(v)
	if err != nil {
		logger.Warn("watermark_unparseable", "key", key, "value", v, "error", err)
		return time.Time{}, nil
	}
	return ts, nil
}

// RecordMessageTime advances the watermark to at if at is strictly later than
// the cached value. The comparison and write happen atomically in the cache,
// so processes sharing it never move a watermark backwards.
func (t *Tracker) RecordMessageTime(ctx context.Context, orgID int64, at time.Time, labelled bool) error {
	key := messageTimeKey(orgID, labelled)
	advanced := false
	err := t.cache.Update(ctx, key, t.ttl, func(cur string, ok bool) (string, bool) {
		advanced = false
		if ok && cur != "" {
			current, err := utils.ParseISO8601(cur)
			if err == nil && !current.Before(at) {
				return "", false
			}
		}
		advanced = true
		return utils.FormatISO8601(at), true
	})
	if err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	if advanced {
		logger.Debug("watermark_advanced", "key", key, "time", at)
	}
	return nil
}

// TaskResult decodes the last stored result of a task into dst.
func (t *Tracker) TaskResult(ctx context.Context, orgID int64, task TaskType, dst any) (bool, error) {
	key := fmt.Sprintf(LastTaskCacheKey, orgID, task)
	v, ok, err := t.cache.Get(ctx, key)
	if err != nil || !ok {
		return false, err
	}
	if err := json.Unmarshal([]byte(v), dst); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

func (t *Tracker) SetTaskResult(ctx context.Context, orgID int64, task TaskType, result any) error {
	key := fmt.Sprintf(LastTaskCacheKey, orgID, task)
	b, err := json.Marshal(result)
	if err != nil {
		return err
	}
	return t.cache.Set(ctx, key, string(b), t.ttl)
}
