package content

import "context"

type requestCacheKey struct{}

type requestCache struct {
	trees map[string]*CourseTree
}

// WithRequestCache attaches a request-scoped tree cache to the context. The
// cache holds only untransformed trees, is owned by one request, and never
// outlives it; learner overlays are always applied on read.
func WithRequestCache(ctx context.Context) context.Context {
	return context.WithValue(ctx, requestCacheKey{}, &requestCache{trees: map[string]*CourseTree{}})
}

func cacheFromContext(ctx context.Context) *requestCache {
	rc, _ := ctx.Value(requestCacheKey{}).(*requestCache)
	return rc
}

func (rc *requestCache) get(courseKey string) *CourseTree {
	if rc == nil {
		return nil
	}
	return rc.trees[courseKey]
}

func (rc *requestCache) put(courseKey string, t *CourseTree) {
	if rc == nil {
		return
	}
	rc.trees[courseKey] = t
}

func (rc *requestCache) drop(courseKey string) {
	if rc == nil {
		return
	}
	delete(rc.trees, courseKey)
}
