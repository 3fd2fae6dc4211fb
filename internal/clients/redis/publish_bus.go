package redis

import (
	"context"
)

const publishChannel = "course.published"

// PublishCourse broadcasts the publish signal for one course to every
// process holding caches.
func (c *Client) PublishCourse(ctx context.Context, courseKey string) error {
	if c == nil || c.rdb == nil {
		return nil
	}
	return c.rdb.Publish(ctx, publishChannel, courseKey).Err()
}

// StartPublishForwarder subscribes to the publish channel and invokes onMsg
// with each published course key until ctx is cancelled.
func (c *Client) StartPublishForwarder(ctx context.Context, onMsg func(courseKey string)) error {
	if c == nil || c.rdb == nil {
		return nil
	}
	sub := c.rdb.Subscribe(ctx, publishChannel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return err
	}
	ch := sub.Channel()
	go func() {
		defer func() { _ = sub.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-ch:
				if !ok {
					return
				}
				if m != nil && m.Payload != "" {
					onMsg(m.Payload)
				}
			}
		}
	}()
	return nil
}
