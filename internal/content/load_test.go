package content_test

import (
	"strings"
	"testing"
	"time"

	"github.com/yungbote/courseware-backend/internal/content"
	"github.com/yungbote/courseware-backend/internal/content/contenttest"
	"github.com/yungbote/courseware-backend/internal/keys"
)

func TestBuildTreeValid(t *testing.T) {
	tree, err := contenttest.Build(time.Now())
	if err != nil {
		t.Fatalf("BuildTree: %v", err)
	}
	if tree.RootBlock() == nil || tree.RootBlock().Type != content.BlockTypeCourse {
		t.Fatalf("root block missing or wrong type")
	}
	if tree.Len() != 9 {
		t.Fatalf("Len()=%d, want 9", tree.Len())
	}
	pk, _ := keys.ParseUsageKey(contenttest.ProblemMCKey)
	b, ok := tree.Block(pk)
	if !ok {
		t.Fatalf("problem block missing")
	}
	if b.Fields.MaxAttempts != 2 || !b.Fields.Graded {
		t.Fatalf("problem fields wrong: %+v", b.Fields)
	}
	parent, ok := tree.Parent(pk)
	if !ok || parent.String() != contenttest.Vert1Key {
		t.Fatalf("parent of problem = %v, want %s", parent, contenttest.Vert1Key)
	}
}

func TestBuildTreeRejects(t *testing.T) {
	now := time.Now()
	cases := []struct {
		name    string
		mutate  func(st *content.SerializedTree)
		wantSub string
	}{
		{
			name: "root_not_course_type",
			mutate: func(st *content.SerializedTree) {
				st.Blocks[0].Type = "chapter"
			},
			wantSub: "want course",
		},
		{
			name: "missing_child",
			mutate: func(st *content.SerializedTree) {
				st.Blocks[1].Children = append(st.Blocks[1].Children, "block-v1:X+Y+2024+type@sequential+block@ghost")
			},
			wantSub: "missing child",
		},
		{
			name: "two_parents",
			mutate: func(st *content.SerializedTree) {
				// html block appears under both the vertical and the chapter
				st.Blocks[1].Children = append(st.Blocks[1].Children, contenttest.HTMLKey)
			},
			wantSub: "two parents",
		},
		{
			name: "cycle_through_root",
			mutate: func(st *content.SerializedTree) {
				st.Blocks[1].Children = append(st.Blocks[1].Children, contenttest.RootKey)
			},
			wantSub: "as a child",
		},
		{
			name: "unreachable_block",
			mutate: func(st *content.SerializedTree) {
				st.Blocks = append(st.Blocks, content.SerializedBlock{
					UsageKey: "block-v1:X+Y+2024+type@html+block@orphan",
					Type:     "html",
				})
			},
			wantSub: "unreachable",
		},
		{
			name: "foreign_course_block",
			mutate: func(st *content.SerializedTree) {
				st.Blocks[1].Children[0] = "block-v1:Other+Z+2020+type@sequential+block@seq1"
				st.Blocks[2].UsageKey = "block-v1:Other+Z+2020+type@sequential+block@seq1"
			},
			wantSub: "not in course",
		},
		{
			name: "problem_with_children",
			mutate: func(st *content.SerializedTree) {
				for i := range st.Blocks {
					if st.Blocks[i].UsageKey == contenttest.ProblemMCKey {
						st.Blocks[i].Children = []string{contenttest.HTMLKey}
					}
				}
			},
			wantSub: "declares children",
		},
		{
			name: "bad_policy_weights",
			mutate: func(st *content.SerializedTree) {
				st.Policy.Assignments[0].Weight = 0.9
			},
			wantSub: "weights sum",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			st := contenttest.Tree(now)
			tc.mutate(st)
			_, err := content.BuildTree(st, 1)
			if err == nil {
				t.Fatalf("BuildTree succeeded, want error containing %q", tc.wantSub)
			}
			if !strings.Contains(err.Error(), tc.wantSub) {
				t.Fatalf("error %q does not contain %q", err, tc.wantSub)
			}
		})
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Second)
	tree, err := contenttest.Build(now)
	if err != nil {
		t.Fatal(err)
	}
	raw, err := content.EncodeTree(tree)
	if err != nil {
		t.Fatal(err)
	}
	again, err := content.DecodeTree(raw, 0)
	if err != nil {
		t.Fatal(err)
	}
	if again.Version != tree.Version {
		t.Fatalf("version %d, want %d", again.Version, tree.Version)
	}
	if again.Len() != tree.Len() {
		t.Fatalf("Len %d, want %d", again.Len(), tree.Len())
	}
	if again.Root != tree.Root {
		t.Fatalf("root %v, want %v", again.Root, tree.Root)
	}
	rk, _ := keys.ParseUsageKey(contenttest.ProblemMCKey)
	a, _ := again.Block(rk)
	b, _ := tree.Block(rk)
	if a.Fields.Payload != b.Fields.Payload {
		t.Fatalf("payload changed across round trip")
	}
}

func TestDecodeTreeYAML(t *testing.T) {
	doc := `
course: course-v1:X+Y+2024
root: block-v1:X+Y+2024+type@course+block@course
grading_policy:
  assignments:
    - category: Homework
      weight: 1.0
      min_count: 1
  pass_threshold: 0.5
blocks:
  - usage_key: block-v1:X+Y+2024+type@course+block@course
    type: course
    display_name: Tiny
    children:
      - block-v1:X+Y+2024+type@chapter+block@c1
  - usage_key: block-v1:X+Y+2024+type@chapter+block@c1
    type: chapter
    display_name: One
`
	tree, err := content.DecodeTree([]byte(doc), 3)
	if err != nil {
		t.Fatalf("DecodeTree yaml: %v", err)
	}
	if tree.Version != 3 || tree.Len() != 2 {
		t.Fatalf("unexpected tree: version=%d len=%d", tree.Version, tree.Len())
	}
}

func TestWalkDepth(t *testing.T) {
	tree, err := contenttest.Build(time.Now())
	if err != nil {
		t.Fatal(err)
	}
	cases := []struct {
		depth     int
		wantChild int
	}{
		{depth: 0, wantChild: 0},
		{depth: 1, wantChild: 1},
		{depth: -1, wantChild: 1},
	}
	for _, tc := range cases {
		node := tree.Walk(tree.Root, tc.depth)
		if node == nil {
			t.Fatalf("Walk(depth=%d) returned nil", tc.depth)
		}
		if len(node.Children) != tc.wantChild {
			t.Fatalf("depth=%d children=%d, want %d", tc.depth, len(node.Children), tc.wantChild)
		}
	}
	full := tree.Walk(tree.Root, -1)
	// course -> chapter -> seq1 -> vert1 -> html
	if len(full.Children[0].Children) != 3 {
		t.Fatalf("chapter children=%d, want 3", len(full.Children[0].Children))
	}
	vert := full.Children[0].Children[0].Children[0]
	if len(vert.Children) != 3 {
		t.Fatalf("vertical children=%d, want 3", len(vert.Children))
	}
}

func TestEffectiveStartInherits(t *testing.T) {
	now := time.Now()
	st := contenttest.Tree(now)
	later := now.Add(48 * time.Hour)
	// chapter opens later than the course
	st.Blocks[1].Start = &later
	tree, err := content.BuildTree(st, 1)
	if err != nil {
		t.Fatal(err)
	}
	hk, _ := keys.ParseUsageKey(contenttest.HTMLKey)
	eff := tree.EffectiveStart(hk)
	if eff == nil || !eff.Equal(later) {
		t.Fatalf("EffectiveStart=%v, want %v", eff, later)
	}
}
