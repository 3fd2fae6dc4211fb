package courseware

import (
	"errors"

	"github.com/google/uuid"

	"github.com/yungbote/courseware-backend/internal/access"
	"github.com/yungbote/courseware-backend/internal/capa"
	"github.com/yungbote/courseware-backend/internal/content"
	"github.com/yungbote/courseware-backend/internal/grades"
)

// Learner is the requesting identity, resolved by the transport layer.
type Learner struct {
	ID      uuid.UUID
	IsStaff bool
	Country string
}

// DenyError carries an access decision through the error return so callers
// can distinguish policy denials from infrastructure failures.
type DenyError struct {
	Decision access.Decision
}

func (e *DenyError) Error() string { return "access denied: " + string(e.Decision.Reason) }

func deny(reason access.DenyReason, context map[string]any) *DenyError {
	return &DenyError{Decision: access.Deny(reason, context)}
}

// Denied unwraps a coordinator error into its access decision, if any.
func Denied(err error) (access.Decision, bool) {
	var de *DenyError
	if errors.As(err, &de) {
		return de.Decision, true
	}
	return access.Decision{}, false
}

// StateSummary is the learner-visible slice of a block's stored state.
type StateSummary struct {
	Attempts int      `json:"attempts"`
	Earned   *float64 `json:"earned,omitempty"`
	Possible *float64 `json:"possible,omitempty"`
	Done     bool     `json:"done"`
}

type ViewModel struct {
	UsageKey    string            `json:"usage_key"`
	Type        content.BlockType `json:"type"`
	DisplayName string            `json:"display_name"`
	// Payload carries non-problem content (html markup, video metadata,
	// opaque bytes for unknown types). Problems render through Problem.
	Payload  string            `json:"payload,omitempty"`
	Problem  *capa.RenderModel `json:"problem,omitempty"`
	Children []string          `json:"children,omitempty"`
	State    *StateSummary     `json:"state,omitempty"`
}

type SubmitResult struct {
	Correctness map[string]capa.Correctness `json:"correctness"`
	Reasons     map[string]string           `json:"reasons,omitempty"`
	Earned      float64                     `json:"earned"`
	Possible    float64                     `json:"possible"`
	Attempts    int                         `json:"attempts"`
}

type UnitModel struct {
	UsageKey    string `json:"usage_key"`
	DisplayName string `json:"display_name"`
	Complete    bool   `json:"complete"`
}

type SequenceModel struct {
	Subsection  string      `json:"subsection"`
	DisplayName string      `json:"display_name"`
	Units       []UnitModel `json:"units"`
}

type OutlineNode struct {
	UsageKey    string            `json:"usage_key"`
	Type        content.BlockType `json:"type"`
	DisplayName string            `json:"display_name"`
	Children    []*OutlineNode    `json:"children,omitempty"`
}

type SubsectionProgress struct {
	UsageKey    string  `json:"usage_key"`
	DisplayName string  `json:"display_name"`
	Format      string  `json:"format,omitempty"`
	Earned      float64 `json:"earned"`
	Possible    float64 `json:"possible"`
	Complete    bool    `json:"complete"`
}

type ProgressModel struct {
	CourseKey   string                     `json:"course_key"`
	Percent     float64                    `json:"percent"`
	Passed      bool                       `json:"passed"`
	Breakdown   []grades.CategoryBreakdown `json:"breakdown,omitempty"`
	Subsections []SubsectionProgress       `json:"subsections"`
}
