package redis

import (
	"context"
	"errors"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

const (
	treeKeyPrefix = "course_tree:"
	treeTTL       = 24 * time.Hour
)

// GetTree returns the cached encoded tree for a course, or (nil, nil) on a
// miss. Cache errors are reported to the caller, who treats them as misses.
func (c *Client) GetTree(ctx context.Context, courseKey string) ([]byte, error) {
	if c == nil || c.rdb == nil {
		return nil, nil
	}
	raw, err := c.rdb.Get(ctx, treeKeyPrefix+courseKey).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return raw, nil
}

func (c *Client) SetTree(ctx context.Context, courseKey string, encoded []byte) error {
	if c == nil || c.rdb == nil {
		return nil
	}
	return c.rdb.Set(ctx, treeKeyPrefix+courseKey, encoded, treeTTL).Err()
}

func (c *Client) DelTree(ctx context.Context, courseKey string) error {
	if c == nil || c.rdb == nil {
		return nil
	}
	return c.rdb.Del(ctx, treeKeyPrefix+courseKey).Err()
}
