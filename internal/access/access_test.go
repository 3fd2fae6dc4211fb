package access_test

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/courseware-backend/internal/access"
	"github.com/yungbote/courseware-backend/internal/content"
	"github.com/yungbote/courseware-backend/internal/content/contenttest"
	"github.com/yungbote/courseware-backend/internal/keys"
)

func fixture(t *testing.T) (*content.CourseTree, time.Time) {
	t.Helper()
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	tree, err := contenttest.Build(now)
	if err != nil {
		t.Fatal(err)
	}
	return tree, now
}

func usage(t *testing.T, s string) keys.UsageKey {
	t.Helper()
	k, err := keys.ParseUsageKey(s)
	if err != nil {
		t.Fatal(err)
	}
	return k
}

func enrolled() access.LearnerContext {
	return access.LearnerContext{
		LearnerID: uuid.New(),
		Enrolled:  true,
		Mode:      "audit",
		Groups:    map[int]int{contenttest.CohortPartitionID: contenttest.GroupA},
	}
}

func block(t *testing.T, tree *content.CourseTree, key string) access.BlockContext {
	t.Helper()
	b, ok := tree.Block(usage(t, key))
	if !ok {
		t.Fatalf("fixture block %s missing", key)
	}
	return access.BlockContext{Tree: tree, Block: b}
}

func TestCheckAllowsEnrolledLearner(t *testing.T) {
	tree, now := fixture(t)
	d := access.Check(enrolled(), block(t, tree, contenttest.HTMLKey), access.ActionView, now)
	if !d.Allowed {
		t.Fatalf("denied: %s %v", d.Reason, d.Context)
	}
}

func TestCheckDeniesMissingBlock(t *testing.T) {
	tree, now := fixture(t)
	bc := access.BlockContext{Tree: tree, Block: nil}
	d := access.Check(enrolled(), bc, access.ActionView, now)
	if d.Allowed || d.Reason != access.DenyNotFound {
		t.Fatalf("decision %+v", d)
	}
}

func TestCheckRuleOrder(t *testing.T) {
	tree, now := fixture(t)

	cases := []struct {
		name   string
		lc     access.LearnerContext
		key    string
		action access.Action
		want   access.DenyReason
	}{
		{
			name: "staff only before enrollment",
			lc:   access.LearnerContext{LearnerID: uuid.New()}, // not enrolled either
			key:  contenttest.SeqStaffKey,
			want: access.DenyStaffOnly,
		},
		{
			name: "not enrolled",
			lc:   access.LearnerContext{LearnerID: uuid.New()},
			key:  contenttest.HTMLKey,
			want: access.DenyNotEnrolled,
		},
		{
			name: "partition restricted for group B",
			lc: access.LearnerContext{
				LearnerID: uuid.New(),
				Enrolled:  true,
				Groups:    map[int]int{contenttest.CohortPartitionID: contenttest.GroupB},
			},
			key:  contenttest.SeqCohortAKey,
			want: access.DenyPartitionRestricted,
		},
		{
			name: "attempts exhausted on submit",
			lc: func() access.LearnerContext {
				lc := enrolled()
				lc.Attempts = 2 // fixture problem allows 2
				return lc
			}(),
			key:    contenttest.ProblemMCKey,
			action: access.ActionSubmit,
			want:   access.DenyAttemptsExhausted,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			action := tc.action
			if action == "" {
				action = access.ActionView
			}
			d := access.Check(tc.lc, block(t, tree, tc.key), action, now)
			if d.Allowed || d.Reason != tc.want {
				t.Fatalf("decision %+v, want deny %s", d, tc.want)
			}
		})
	}
}

func TestCheckAttemptsOnlyGateSubmissions(t *testing.T) {
	tree, now := fixture(t)
	lc := enrolled()
	lc.Attempts = 99
	d := access.Check(lc, block(t, tree, contenttest.ProblemMCKey), access.ActionView, now)
	if !d.Allowed {
		t.Fatalf("view denied: %+v", d)
	}
}

func TestCheckStartDate(t *testing.T) {
	tree, now := fixture(t)
	// The whole fixture course started a day before now; roll the clock back.
	early := now.Add(-48 * time.Hour)
	d := access.Check(enrolled(), block(t, tree, contenttest.HTMLKey), access.ActionView, early)
	if d.Allowed || d.Reason != access.DenyNotStarted {
		t.Fatalf("decision %+v", d)
	}
	if _, ok := d.Context["start"]; !ok {
		t.Fatal("deny carries no start time")
	}
}

func TestCheckStartDateRendersCourseLocalTime(t *testing.T) {
	tree, now := fixture(t)
	tokyo, err := time.LoadLocation("Asia/Tokyo")
	if err != nil {
		t.Fatal(err)
	}
	bc := block(t, tree, contenttest.HTMLKey)
	bc.Location = tokyo
	early := now.Add(-48 * time.Hour)
	d := access.Check(enrolled(), bc, access.ActionView, early)
	if d.Allowed || d.Reason != access.DenyNotStarted {
		t.Fatalf("decision %+v", d)
	}
	start, ok := d.Context["start"].(time.Time)
	if !ok {
		t.Fatalf("start context is %T, want time.Time", d.Context["start"])
	}
	if start.Location() != tokyo {
		t.Fatalf("start rendered in %v, want Asia/Tokyo", start.Location())
	}
}

func TestCheckRequiredMode(t *testing.T) {
	tree, now := fixture(t)
	bc := block(t, tree, contenttest.ProblemNumKey)
	withMode := *bc.Block
	withMode.Fields.RequiredMode = "verified"
	bc.Block = &withMode

	lc := enrolled()
	d := access.Check(lc, bc, access.ActionSubmit, now)
	if d.Allowed || d.Reason != access.DenyWrongMode {
		t.Fatalf("decision %+v", d)
	}
	if d.Context["required_mode"] != "verified" {
		t.Fatalf("context %+v", d.Context)
	}

	lc.Mode = "verified"
	if d := access.Check(lc, bc, access.ActionSubmit, now); !d.Allowed {
		t.Fatalf("verified learner denied: %+v", d)
	}
}

func TestCheckPrerequisite(t *testing.T) {
	tree, now := fixture(t)
	bc := block(t, tree, contenttest.Seq1Key)
	gated := *bc.Block
	gated.Fields.Prerequisite = contenttest.SeqStaffKey
	bc.Block = &gated

	lc := enrolled()
	d := access.Check(lc, bc, access.ActionView, now)
	if d.Allowed || d.Reason != access.DenyPrerequisiteIncomplete {
		t.Fatalf("decision %+v", d)
	}

	lc.CompletedBlocks = map[string]bool{contenttest.SeqStaffKey: true}
	if d := access.Check(lc, bc, access.ActionView, now); !d.Allowed {
		t.Fatalf("satisfied prerequisite denied: %+v", d)
	}
}

func TestCheckEmbargo(t *testing.T) {
	_, now := fixture(t)
	st := contenttest.Tree(now)
	st.Embargo = content.Embargo{Mode: content.EmbargoBlacklist, Countries: []string{"XX"}}
	embargoed, err := content.BuildTree(st, 1)
	if err != nil {
		t.Fatal(err)
	}

	lc := enrolled()
	lc.Country = "XX"
	d := access.Check(lc, block(t, embargoed, contenttest.HTMLKey), access.ActionView, now)
	if d.Allowed || d.Reason != access.DenyEmbargoed {
		t.Fatalf("decision %+v", d)
	}

	// Staff override beats the embargo.
	lc.IsStaff = true
	if d := access.Check(lc, block(t, embargoed, contenttest.HTMLKey), access.ActionView, now); !d.Allowed {
		t.Fatalf("staff denied: %+v", d)
	}
}

func TestStaffBypassEverythingButExistence(t *testing.T) {
	tree, now := fixture(t)
	lc := access.LearnerContext{LearnerID: uuid.New(), IsStaff: true}
	for _, key := range []string{contenttest.SeqStaffKey, contenttest.SeqCohortAKey, contenttest.ProblemMCKey} {
		if d := access.Check(lc, block(t, tree, key), access.ActionSubmit, now); !d.Allowed {
			t.Fatalf("%s: staff denied: %+v", key, d)
		}
	}
	if d := access.Check(lc, access.BlockContext{Tree: tree}, access.ActionView, now); d.Reason != access.DenyNotFound {
		t.Fatalf("missing block for staff: %+v", d)
	}
}
