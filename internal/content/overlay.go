package content

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/courseware-backend/internal/keys"
)

// GroupResolver resolves a learner's assigned group in a partition. The
// partition service implements it; the overlay only reads.
type GroupResolver interface {
	GroupFor(ctx context.Context, learnerID uuid.UUID, courseKey keys.CourseKey, partitionID int) (int, error)
}

// LearnerView is the per-request identity the overlay filters against.
type LearnerView struct {
	LearnerID uuid.UUID
	IsStaff   bool
	Groups    GroupResolver
}

// VisibleChildren applies the learner overlay to the raw children of a
// block: partition group_access first, then staff-only, then start dates.
// The tree itself is never mutated and order is preserved.
func VisibleChildren(ctx context.Context, tree *CourseTree, view *LearnerView, usageKey keys.UsageKey, now time.Time) ([]*Block, error) {
	parent, ok := tree.Block(usageKey)
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]*Block, 0, len(parent.Children))
	for _, ck := range parent.Children {
		child, ok := tree.Block(ck)
		if !ok {
			continue
		}
		visible, err := childVisible(ctx, tree, view, child, now)
		if err != nil {
			return nil, err
		}
		if visible {
			out = append(out, child)
		}
	}
	return out, nil
}

func childVisible(ctx context.Context, tree *CourseTree, view *LearnerView, child *Block, now time.Time) (bool, error) {
	if len(child.Fields.GroupAccess) > 0 && !view.IsStaff {
		ok, err := groupAccessAllows(ctx, tree, view, child.Fields.GroupAccess)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	if child.Fields.StaffOnly && !view.IsStaff {
		return false, nil
	}
	if child.Fields.Start != nil && now.Before(*child.Fields.Start) && !view.IsStaff {
		return false, nil
	}
	return true, nil
}

// groupAccessAllows checks one block's group_access map. The learner must be
// in an allowed group for every restricted partition; a partition that no
// longer exists on the course is ignored rather than locking everyone out.
func groupAccessAllows(ctx context.Context, tree *CourseTree, view *LearnerView, groupAccess map[int][]int) (bool, error) {
	for partitionID, allowed := range groupAccess {
		if _, ok := tree.Partition(partitionID); !ok {
			continue
		}
		if len(allowed) == 0 {
			return false, nil
		}
		assigned, err := view.Groups.GroupFor(ctx, view.LearnerID, tree.CourseKey, partitionID)
		if err != nil {
			return false, err
		}
		in := false
		for _, g := range allowed {
			if g == assigned {
				in = true
				break
			}
		}
		if !in {
			return false, nil
		}
	}
	return true, nil
}

// AccessAllowedByChain evaluates every group_access restriction on a block
// and its ancestors, used by the access engine's partition rule.
func AccessAllowedByChain(ctx context.Context, tree *CourseTree, view *LearnerView, usageKey keys.UsageKey) (bool, error) {
	for _, ga := range tree.GroupAccessChain(usageKey) {
		ok, err := groupAccessAllows(ctx, tree, view, ga)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}
