// Package contenttest builds small published courses for tests across the
// core packages.
package contenttest

import (
	"time"

	"github.com/yungbote/courseware-backend/internal/content"
	"github.com/yungbote/courseware-backend/internal/grades"
)

const (
	CourseID = "course-v1:X+Y+2024"

	RootKey       = "block-v1:X+Y+2024+type@course+block@course"
	Chapter1Key   = "block-v1:X+Y+2024+type@chapter+block@ch1"
	Seq1Key       = "block-v1:X+Y+2024+type@sequential+block@seq1"
	SeqStaffKey   = "block-v1:X+Y+2024+type@sequential+block@seqstaff"
	SeqCohortAKey = "block-v1:X+Y+2024+type@sequential+block@seqcohorta"
	Vert1Key      = "block-v1:X+Y+2024+type@vertical+block@vert1"
	HTMLKey       = "block-v1:X+Y+2024+type@html+block@intro"
	ProblemMCKey  = "block-v1:X+Y+2024+type@problem+block@p1"
	ProblemNumKey = "block-v1:X+Y+2024+type@problem+block@p2"

	CohortPartitionID = 50
	GroupA            = 1
	GroupB            = 2
)

const MCProblemXML = `<problem>
  <multiplechoiceresponse>
    <choicegroup type="MultipleChoice">
      <choice correct="true" name="a">Paris</choice>
      <choice correct="false" name="b">Lyon</choice>
    </choicegroup>
  </multiplechoiceresponse>
</problem>`

const NumericalProblemXML = `<problem>
  <numericalresponse answer="3.14">
    <responseparam type="tolerance" default="0.01"/>
  </numericalresponse>
</problem>`

// Tree returns a serialized course: one chapter holding an open subsection
// (html + two problems), a staff-only subsection, and a subsection
// restricted to cohort group A. Start dates are relative to now.
func Tree(now time.Time) *content.SerializedTree {
	started := now.Add(-24 * time.Hour)
	return &content.SerializedTree{
		Course:   CourseID,
		Timezone: "UTC",
		Root:     RootKey,
		Partitions: []content.UserPartition{
			{
				ID:   CohortPartitionID,
				Name: "cohort",
				Groups: []content.Group{
					{ID: GroupA, Name: "A"},
					{ID: GroupB, Name: "B"},
				},
			},
		},
		Policy: grades.GradingPolicy{
			Assignments: []grades.AssignmentPolicy{
				{Category: "Homework", Weight: 0.6, DropLowest: 0, MinCount: 1},
				{Category: "Exam", Weight: 0.4, DropLowest: 0, MinCount: 1},
			},
			PassThreshold: 0.5,
		},
		Blocks: []content.SerializedBlock{
			{
				UsageKey:    RootKey,
				Type:        "course",
				DisplayName: "Demo Course",
				Start:       &started,
				Children:    []string{Chapter1Key},
			},
			{
				UsageKey:    Chapter1Key,
				Type:        "chapter",
				DisplayName: "Week 1",
				Children:    []string{Seq1Key, SeqStaffKey, SeqCohortAKey},
			},
			{
				UsageKey:    Seq1Key,
				Type:        "sequential",
				DisplayName: "Introduction",
				Format:      "Homework",
				Graded:      true,
				Children:    []string{Vert1Key},
			},
			{
				UsageKey:    SeqStaffKey,
				Type:        "sequential",
				DisplayName: "Draft Material",
				StaffOnly:   true,
			},
			{
				UsageKey:    SeqCohortAKey,
				Type:        "sequential",
				DisplayName: "Cohort A Only",
				GroupAccess: map[int][]int{CohortPartitionID: {GroupA}},
			},
			{
				UsageKey:    Vert1Key,
				Type:        "vertical",
				DisplayName: "Unit 1",
				Children:    []string{HTMLKey, ProblemMCKey, ProblemNumKey},
			},
			{
				UsageKey:    HTMLKey,
				Type:        "html",
				DisplayName: "Welcome",
				Payload:     "<p>Welcome to the course.</p>",
			},
			{
				UsageKey:    ProblemMCKey,
				Type:        "problem",
				DisplayName: "Capital of France",
				Format:      "Homework",
				Graded:      true,
				MaxAttempts: 2,
				Payload:     MCProblemXML,
			},
			{
				UsageKey:    ProblemNumKey,
				Type:        "problem",
				DisplayName: "Approximate Pi",
				Format:      "Exam",
				Graded:      true,
				Payload:     NumericalProblemXML,
			},
		},
	}
}

// Build is Tree + BuildTree with version 1.
func Build(now time.Time) (*content.CourseTree, error) {
	return content.BuildTree(Tree(now), 1)
}
