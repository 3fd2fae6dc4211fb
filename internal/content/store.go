package content

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
	"gorm.io/datatypes"

	redisclient "github.com/yungbote/courseware-backend/internal/clients/redis"
	"github.com/yungbote/courseware-backend/internal/keys"
	"github.com/yungbote/courseware-backend/internal/logger"
	"github.com/yungbote/courseware-backend/internal/repos"
	"github.com/yungbote/courseware-backend/internal/types"
)

// Store is the read side of the published content repository plus the
// publish entrypoint the authoring import calls.
type Store interface {
	Tree(ctx context.Context, courseKey keys.CourseKey) (*CourseTree, error)
	GetCourse(ctx context.Context, courseKey keys.CourseKey, depth int) (*TreeNode, error)
	GetBlock(ctx context.Context, usageKey keys.UsageKey) (*Block, error)
	ChildrenFor(ctx context.Context, view *LearnerView, usageKey keys.UsageKey, now time.Time) ([]*Block, error)
	Invalidate(ctx context.Context, courseKey keys.CourseKey) error
	// HandleInvalidate reacts to a publish signal from another process.
	HandleInvalidate(courseKey string)
	Publish(ctx context.Context, raw []byte) (*CourseTree, error)
}

type store struct {
	repo  repos.CourseContentRepo
	cache *redisclient.Client
	log   *logger.Logger

	sf  singleflight.Group
	mu  sync.RWMutex
	mem map[string]*CourseTree
}

func NewStore(repo repos.CourseContentRepo, cache *redisclient.Client, baseLog *logger.Logger) Store {
	return &store{
		repo:  repo,
		cache: cache,
		log:   baseLog.With("service", "BlockStore"),
		mem:   map[string]*CourseTree{},
	}
}

func (s *store) Tree(ctx context.Context, courseKey keys.CourseKey) (*CourseTree, error) {
	ck := courseKey.String()

	rc := cacheFromContext(ctx)
	if t := rc.get(ck); t != nil {
		return t, nil
	}

	s.mu.RLock()
	t := s.mem[ck]
	s.mu.RUnlock()
	if t != nil {
		rc.put(ck, t)
		return t, nil
	}

	v, err, _ := s.sf.Do(ck, func() (interface{}, error) {
		return s.loadTree(ctx, ck)
	})
	if err != nil {
		return nil, err
	}
	t = v.(*CourseTree)
	rc.put(ck, t)
	return t, nil
}

func (s *store) loadTree(ctx context.Context, ck string) (*CourseTree, error) {
	if encoded, err := s.cache.GetTree(ctx, ck); err != nil {
		s.log.Warn("tree cache read failed, falling through to store", "course_key", ck, "error", err)
	} else if encoded != nil {
		t, err := DecodeTree(encoded, 0)
		if err == nil {
			s.remember(ck, t)
			return t, nil
		}
		s.log.Warn("cached tree failed to decode, dropping entry", "course_key", ck, "error", err)
		_ = s.cache.DelTree(ctx, ck)
	}

	row, err := s.repo.GetLatest(ctx, nil, ck)
	if err != nil {
		return nil, fmt.Errorf("%w: load course %s: %v", ErrUnavailable, ck, err)
	}
	if row == nil {
		return nil, ErrNotFound
	}
	t, err := DecodeTree([]byte(row.Tree), row.Version)
	if err != nil {
		return nil, fmt.Errorf("decode published tree for %s: %w", ck, err)
	}
	s.remember(ck, t)
	if encoded, err := EncodeTree(t); err == nil {
		if err := s.cache.SetTree(ctx, ck, encoded); err != nil {
			s.log.Warn("tree cache write failed", "course_key", ck, "error", err)
		}
	}
	return t, nil
}

func (s *store) remember(ck string, t *CourseTree) {
	s.mu.Lock()
	s.mem[ck] = t
	s.mu.Unlock()
}

func (s *store) GetCourse(ctx context.Context, courseKey keys.CourseKey, depth int) (*TreeNode, error) {
	t, err := s.Tree(ctx, courseKey)
	if err != nil {
		return nil, err
	}
	node := t.Walk(t.Root, depth)
	if node == nil {
		return nil, ErrNotFound
	}
	return node, nil
}

func (s *store) GetBlock(ctx context.Context, usageKey keys.UsageKey) (*Block, error) {
	t, err := s.Tree(ctx, usageKey.Course)
	if err != nil {
		return nil, err
	}
	b, ok := t.Block(usageKey)
	if !ok {
		return nil, ErrNotFound
	}
	return b, nil
}

func (s *store) ChildrenFor(ctx context.Context, view *LearnerView, usageKey keys.UsageKey, now time.Time) ([]*Block, error) {
	t, err := s.Tree(ctx, usageKey.Course)
	if err != nil {
		return nil, err
	}
	return VisibleChildren(ctx, t, view, usageKey, now)
}

func (s *store) Invalidate(ctx context.Context, courseKey keys.CourseKey) error {
	ck := courseKey.String()
	s.mu.Lock()
	delete(s.mem, ck)
	s.mu.Unlock()
	cacheFromContext(ctx).drop(ck)
	if err := s.cache.DelTree(ctx, ck); err != nil {
		return fmt.Errorf("drop cached tree %s: %w", ck, err)
	}
	return nil
}

func (s *store) HandleInvalidate(courseKey string) {
	s.mu.Lock()
	delete(s.mem, courseKey)
	s.mu.Unlock()
	s.log.Debug("dropped in-process tree after publish signal", "course_key", courseKey)
}

func (s *store) Publish(ctx context.Context, raw []byte) (*CourseTree, error) {
	t, err := DecodeTree(raw, 0)
	if err != nil {
		return nil, err
	}
	t.Version = 0

	canonical, err := EncodeTree(t)
	if err != nil {
		return nil, fmt.Errorf("encode tree: %w", err)
	}
	row := &types.CourseContent{
		CourseKey:   t.CourseKey.String(),
		Tree:        datatypes.JSON(canonical),
		PublishedAt: time.Now(),
	}
	if err := s.repo.InsertNextVersion(ctx, nil, row); err != nil {
		return nil, fmt.Errorf("%w: persist publish for %s: %v", ErrUnavailable, t.CourseKey, err)
	}
	t.Version = row.Version

	ck := t.CourseKey.String()
	if err := s.Invalidate(ctx, t.CourseKey); err != nil {
		s.log.Warn("cache invalidation after publish failed", "course_key", ck, "error", err)
	}
	s.remember(ck, t)
	if encoded, err := EncodeTree(t); err == nil {
		if err := s.cache.SetTree(ctx, ck, encoded); err != nil {
			s.log.Warn("tree cache write failed after publish", "course_key", ck, "error", err)
		}
	}
	if err := s.cache.PublishCourse(ctx, ck); err != nil {
		s.log.Warn("publish signal failed", "course_key", ck, "error", err)
	}
	s.log.Info("course published", "course_key", ck, "version", t.Version, "blocks", t.Len())
	return t, nil
}
