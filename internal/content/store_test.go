package content_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/yungbote/courseware-backend/internal/content"
	"github.com/yungbote/courseware-backend/internal/content/contenttest"
	"github.com/yungbote/courseware-backend/internal/db"
	"github.com/yungbote/courseware-backend/internal/keys"
	"github.com/yungbote/courseware-backend/internal/logger"
	"github.com/yungbote/courseware-backend/internal/repos"
)

func newTestStore(t *testing.T) content.Store {
	t.Helper()
	gdb, err := db.NewTestDB()
	if err != nil {
		t.Fatalf("test db: %v", err)
	}
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	repo := repos.NewCourseContentRepo(gdb, log)
	return content.NewStore(repo, nil, log)
}

func publishFixture(t *testing.T, s content.Store) *content.CourseTree {
	t.Helper()
	raw, err := json.Marshal(contenttest.Tree(time.Now()))
	if err != nil {
		t.Fatal(err)
	}
	tree, err := s.Publish(context.Background(), raw)
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	return tree
}

func TestStorePublishAndFetch(t *testing.T) {
	s := newTestStore(t)
	tree := publishFixture(t, s)
	if tree.Version != 1 {
		t.Fatalf("first publish version=%d, want 1", tree.Version)
	}

	courseKey, _ := keys.ParseCourseKey(contenttest.CourseID)
	got, err := s.Tree(context.Background(), courseKey)
	if err != nil {
		t.Fatalf("Tree: %v", err)
	}
	if got.Version != 1 || got.Len() != tree.Len() {
		t.Fatalf("fetched tree version=%d len=%d", got.Version, got.Len())
	}

	blockKey, _ := keys.ParseUsageKey(contenttest.HTMLKey)
	b, err := s.GetBlock(context.Background(), blockKey)
	if err != nil {
		t.Fatalf("GetBlock: %v", err)
	}
	if b.Type != content.BlockTypeHTML {
		t.Fatalf("block type=%q", b.Type)
	}

	// republish bumps the version and replaces the served tree
	tree2 := publishFixture(t, s)
	if tree2.Version != 2 {
		t.Fatalf("second publish version=%d, want 2", tree2.Version)
	}
	got, err = s.Tree(context.Background(), courseKey)
	if err != nil {
		t.Fatal(err)
	}
	if got.Version != 2 {
		t.Fatalf("served version=%d after republish, want 2", got.Version)
	}
}

func TestStoreNotFound(t *testing.T) {
	s := newTestStore(t)
	courseKey, _ := keys.ParseCourseKey("course-v1:No+Such+Course")
	_, err := s.Tree(context.Background(), courseKey)
	if !errors.Is(err, content.ErrNotFound) {
		t.Fatalf("err=%v, want ErrNotFound", err)
	}

	publishFixture(t, s)
	missing, _ := keys.ParseUsageKey("block-v1:X+Y+2024+type@html+block@nope")
	_, err = s.GetBlock(context.Background(), missing)
	if !errors.Is(err, content.ErrNotFound) {
		t.Fatalf("GetBlock err=%v, want ErrNotFound", err)
	}
}

func TestStoreGetCourseDepth(t *testing.T) {
	s := newTestStore(t)
	publishFixture(t, s)
	courseKey, _ := keys.ParseCourseKey(contenttest.CourseID)

	node, err := s.GetCourse(context.Background(), courseKey, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(node.Children) != 0 {
		t.Fatalf("depth 0 returned children")
	}

	node, err = s.GetCourse(context.Background(), courseKey, -1)
	if err != nil {
		t.Fatal(err)
	}
	if len(node.Children) != 1 || len(node.Children[0].Children) != 3 {
		t.Fatalf("full walk shape wrong")
	}
}

func TestRequestCacheServesRepeatReads(t *testing.T) {
	s := newTestStore(t)
	publishFixture(t, s)
	courseKey, _ := keys.ParseCourseKey(contenttest.CourseID)

	ctx := content.WithRequestCache(context.Background())
	first, err := s.Tree(ctx, courseKey)
	if err != nil {
		t.Fatal(err)
	}
	second, err := s.Tree(ctx, courseKey)
	if err != nil {
		t.Fatal(err)
	}
	if first != second {
		t.Fatalf("request cache did not reuse the loaded tree")
	}
}

func TestInvalidateDropsProcessCache(t *testing.T) {
	s := newTestStore(t)
	publishFixture(t, s)
	courseKey, _ := keys.ParseCourseKey(contenttest.CourseID)

	a, err := s.Tree(context.Background(), courseKey)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Invalidate(context.Background(), courseKey); err != nil {
		t.Fatal(err)
	}
	b, err := s.Tree(context.Background(), courseKey)
	if err != nil {
		t.Fatal(err)
	}
	if a == b {
		t.Fatalf("invalidate left the old tree in the process cache")
	}
	if b.Version != a.Version {
		t.Fatalf("reload changed version: %d vs %d", b.Version, a.Version)
	}
}
