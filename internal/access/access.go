package access

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/courseware-backend/internal/content"
	"github.com/yungbote/courseware-backend/internal/keys"
)

// DenyReason is the closed set of reasons an access check can fail with.
type DenyReason string

const (
	DenyNotFound               DenyReason = "not_found"
	DenyNotStarted             DenyReason = "not_started"
	DenyEnded                  DenyReason = "ended"
	DenyNotEnrolled            DenyReason = "not_enrolled"
	DenyWrongMode              DenyReason = "wrong_mode"
	DenyPrerequisiteIncomplete DenyReason = "prerequisite_incomplete"
	DenyPartitionRestricted    DenyReason = "partition_restricted"
	DenyEmbargoed              DenyReason = "embargoed"
	DenyAttemptsExhausted      DenyReason = "attempts_exhausted"
	DenyStaffOnly              DenyReason = "staff_only"
	// Coordinator-level failures mapped into the same surface.
	DenyStoreUnavailable DenyReason = "store_unavailable"
	DenyTryAgain         DenyReason = "try_again"
)

type Action string

const (
	ActionView   Action = "view"
	ActionSubmit Action = "submit"
)

// Decision is the outcome of an access check. Context carries the
// machine-readable details a host needs to render an actionable message
// (start time, required mode, attempt counts).
type Decision struct {
	Allowed bool           `json:"allowed"`
	Reason  DenyReason     `json:"reason,omitempty"`
	Context map[string]any `json:"context,omitempty"`
}

func Allow() Decision { return Decision{Allowed: true} }

func Deny(reason DenyReason, context map[string]any) Decision {
	return Decision{Reason: reason, Context: context}
}

// LearnerContext is everything the rules may consult about the learner.
// It is assembled by the caller; rules never read stores.
type LearnerContext struct {
	LearnerID uuid.UUID
	IsStaff   bool
	Enrolled  bool
	Mode      string
	Country   string
	// Groups holds the learner's persisted partition assignments,
	// partition id to group id.
	Groups map[int]int
	// CompletedBlocks marks subsections the learner has finished, keyed by
	// canonical usage key. Consulted by the prerequisite rule.
	CompletedBlocks map[string]bool
	// Attempts is the learner's prior graded attempt count for the target
	// block. Consulted by the attempt-limit rule on submissions.
	Attempts int
}

// BlockContext is the published content the rules evaluate against. A nil
// Block means the usage key did not resolve. Location is the course-local
// timezone used to render dates in deny contexts; nil means UTC.
type BlockContext struct {
	Tree     *content.CourseTree
	Block    *content.Block
	Location *time.Location
}

func (bc BlockContext) location() *time.Location {
	if bc.Location != nil {
		return bc.Location
	}
	return time.UTC
}

type rule func(lc LearnerContext, bc BlockContext, action Action, now time.Time) Decision

// Check folds the rule pipeline over the request, short-circuiting on the
// first deny. Staff skip every rule past existence, embargo included.
func Check(lc LearnerContext, bc BlockContext, action Action, now time.Time) Decision {
	if d := ruleExistence(lc, bc, action, now); !d.Allowed {
		return d
	}
	if lc.IsStaff {
		return Allow()
	}
	for _, r := range []rule{
		ruleVisibility,
		ruleEnrollment,
		rulePrerequisite,
		rulePartition,
		ruleEmbargo,
		ruleAttempts,
	} {
		if d := r(lc, bc, action, now); !d.Allowed {
			return d
		}
	}
	return Allow()
}

func ruleExistence(_ LearnerContext, bc BlockContext, _ Action, _ time.Time) Decision {
	if bc.Tree == nil || bc.Block == nil {
		return Deny(DenyNotFound, nil)
	}
	return Allow()
}

func ruleVisibility(_ LearnerContext, bc BlockContext, _ Action, now time.Time) Decision {
	key := bc.Block.UsageKey
	if bc.Tree.StaffOnly(key) {
		return Deny(DenyStaffOnly, nil)
	}
	if start := bc.Tree.EffectiveStart(key); start != nil && now.Before(*start) {
		return Deny(DenyNotStarted, map[string]any{"start": start.In(bc.location())})
	}
	if end := bc.Tree.EffectiveEnd(key); end != nil && now.After(*end) {
		return Deny(DenyEnded, map[string]any{"end": end.In(bc.location())})
	}
	return Allow()
}

func ruleEnrollment(lc LearnerContext, bc BlockContext, _ Action, _ time.Time) Decision {
	if !lc.Enrolled {
		return Deny(DenyNotEnrolled, nil)
	}
	required := bc.Block.Fields.RequiredMode
	if required != "" && lc.Mode != required {
		return Deny(DenyWrongMode, map[string]any{
			"required_mode": required,
			"current_mode":  lc.Mode,
		})
	}
	return Allow()
}

func rulePrerequisite(lc LearnerContext, bc BlockContext, _ Action, _ time.Time) Decision {
	prereq := bc.Block.Fields.Prerequisite
	if prereq == "" {
		return Allow()
	}
	if !lc.CompletedBlocks[prereq] {
		return Deny(DenyPrerequisiteIncomplete, map[string]any{"prerequisite": prereq})
	}
	return Allow()
}

// staticGroups adapts pre-resolved assignments to the overlay's resolver so
// the partition rule stays a pure function of its inputs.
type staticGroups map[int]int

func (m staticGroups) GroupFor(_ context.Context, _ uuid.UUID, _ keys.CourseKey, partitionID int) (int, error) {
	return m[partitionID], nil
}

func rulePartition(lc LearnerContext, bc BlockContext, _ Action, _ time.Time) Decision {
	view := &content.LearnerView{LearnerID: lc.LearnerID, Groups: staticGroups(lc.Groups)}
	ok, err := content.AccessAllowedByChain(context.Background(), bc.Tree, view, bc.Block.UsageKey)
	if err != nil || !ok {
		return Deny(DenyPartitionRestricted, nil)
	}
	return Allow()
}

func ruleEmbargo(lc LearnerContext, bc BlockContext, _ Action, _ time.Time) Decision {
	if bc.Tree.Embargo.Blocks(lc.Country) {
		return Deny(DenyEmbargoed, map[string]any{"country": lc.Country})
	}
	return Allow()
}

func ruleAttempts(lc LearnerContext, bc BlockContext, action Action, _ time.Time) Decision {
	if action != ActionSubmit {
		return Allow()
	}
	max := bc.Block.Fields.MaxAttempts
	if max > 0 && lc.Attempts >= max {
		return Deny(DenyAttemptsExhausted, map[string]any{
			"used": lc.Attempts,
			"max":  max,
		})
	}
	return Allow()
}
