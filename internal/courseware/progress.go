package courseware

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/courseware-backend/internal/access"
	"github.com/yungbote/courseware-backend/internal/content"
	"github.com/yungbote/courseware-backend/internal/keys"
	"github.com/yungbote/courseware-backend/internal/types"
)

// Sequence returns the ordered visible units of a subsection with per-unit
// completion flags. The subsection must sit under the given section.
func (s *service) Sequence(ctx context.Context, learner Learner, section, subsection keys.UsageKey) (*SequenceModel, error) {
	ctx = content.WithRequestCache(ctx)
	tree, err := s.loadTree(ctx, subsection.Course)
	if err != nil {
		return nil, err
	}
	var block *content.Block
	if b, ok := tree.Block(subsection); ok && underSection(tree, subsection, section) {
		block = b
	}
	snap, err := s.snapshot(ctx, learner.ID, subsection)
	if err != nil {
		return nil, err
	}
	lc, err := s.learnerContext(ctx, learner, tree, block, snap)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	if d := access.Check(lc, s.blockContext(tree, block), access.ActionView, now); !d.Allowed {
		return nil, &DenyError{Decision: d}
	}

	view := &content.LearnerView{LearnerID: learner.ID, IsStaff: learner.IsStaff, Groups: s.partitions}
	units, err := s.contentStore.ChildrenFor(ctx, view, subsection, now)
	if err != nil {
		s.log.Error("resolve sequence units failed", "usage_key", subsection.String(), "error", err)
		return nil, deny(access.DenyStoreUnavailable, nil)
	}

	model := &SequenceModel{
		Subsection:  subsection.String(),
		DisplayName: block.DisplayName,
		Units:       make([]UnitModel, 0, len(units)),
	}
	for _, u := range units {
		complete, err := s.subsectionComplete(ctx, learner.ID, tree, u.UsageKey)
		if err != nil {
			return nil, err
		}
		model.Units = append(model.Units, UnitModel{
			UsageKey:    u.UsageKey.String(),
			DisplayName: u.DisplayName,
			Complete:    complete,
		})
	}
	return model, nil
}

func underSection(tree *content.CourseTree, subsection, section keys.UsageKey) bool {
	for _, a := range tree.Ancestors(subsection) {
		if a.UsageKey == section {
			return true
		}
	}
	return false
}

// Outline returns the visible course structure down to depth levels below
// the root (depth < 0 for the whole tree).
func (s *service) Outline(ctx context.Context, learner Learner, courseKey keys.CourseKey, depth int) (*OutlineNode, error) {
	ctx = content.WithRequestCache(ctx)
	tree, err := s.loadTree(ctx, courseKey)
	if err != nil {
		return nil, err
	}
	root := tree.RootBlock()
	snap, err := s.snapshot(ctx, learner.ID, root.UsageKey)
	if err != nil {
		return nil, err
	}
	lc, err := s.learnerContext(ctx, learner, tree, root, snap)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	if d := access.Check(lc, s.blockContext(tree, root), access.ActionView, now); !d.Allowed {
		return nil, &DenyError{Decision: d}
	}

	view := &content.LearnerView{LearnerID: learner.ID, IsStaff: learner.IsStaff, Groups: s.partitions}
	return s.outlineNode(ctx, tree, view, root, depth, now)
}

func (s *service) outlineNode(ctx context.Context, tree *content.CourseTree, view *content.LearnerView, block *content.Block, depth int, now time.Time) (*OutlineNode, error) {
	node := &OutlineNode{
		UsageKey:    block.UsageKey.String(),
		Type:        block.Type,
		DisplayName: block.DisplayName,
	}
	if depth == 0 || len(block.Children) == 0 {
		return node, nil
	}
	children, err := s.contentStore.ChildrenFor(ctx, view, block.UsageKey, now)
	if err != nil {
		s.log.Error("resolve outline children failed", "usage_key", block.UsageKey.String(), "error", err)
		return nil, deny(access.DenyStoreUnavailable, nil)
	}
	for _, c := range children {
		child, err := s.outlineNode(ctx, tree, view, c, depth-1, now)
		if err != nil {
			return nil, err
		}
		node.Children = append(node.Children, child)
	}
	return node, nil
}

// Progress reports the learner's standing: the live course rollup plus
// per-subsection raw scores. The rollup is computed from state rows, not the
// persisted grade, so a submit is always reflected immediately.
func (s *service) Progress(ctx context.Context, learner Learner, courseKey keys.CourseKey) (*ProgressModel, error) {
	ctx = content.WithRequestCache(ctx)
	tree, err := s.loadTree(ctx, courseKey)
	if err != nil {
		return nil, err
	}
	root := tree.RootBlock()
	lc, err := s.learnerContext(ctx, learner, tree, root, nil)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	if d := access.Check(lc, s.blockContext(tree, root), access.ActionView, now); !d.Allowed {
		return nil, &DenyError{Decision: d}
	}

	snaps, err := s.states.GetGradedForCourse(ctx, learner.ID, courseKey)
	if err != nil {
		s.log.Error("graded state read failed", "course_key", courseKey.String(), "learner_id", learner.ID, "error", err)
		return nil, deny(access.DenyStoreUnavailable, nil)
	}
	summary, err := s.summarize(ctx, learner.ID, tree)
	if err != nil {
		s.log.Error("course rollup failed", "course_key", courseKey.String(), "learner_id", learner.ID, "error", err)
		return nil, deny(access.DenyStoreUnavailable, nil)
	}

	model := &ProgressModel{
		CourseKey: courseKey.String(),
		Percent:   summary.Percent,
		Passed:    summary.Passed,
		Breakdown: summary.Breakdown,
	}
	for _, sub := range tree.Subsections() {
		sp := SubsectionProgress{
			UsageKey:    sub.UsageKey.String(),
			DisplayName: sub.DisplayName,
			Format:      sub.Fields.Format,
		}
		for _, b := range tree.Descendants(sub.UsageKey) {
			if snap := snaps[b.UsageKey]; snap != nil && snap.Earned != nil && snap.Possible != nil {
				sp.Earned += *snap.Earned
				sp.Possible += *snap.Possible
			}
		}
		complete, err := s.subsectionComplete(ctx, learner.ID, tree, sub.UsageKey)
		if err != nil {
			return nil, err
		}
		sp.Complete = complete
		model.Subsections = append(model.Subsections, sp)
	}
	return model, nil
}

func (s *service) ResetProblem(ctx context.Context, requester Learner, learnerID uuid.UUID, usageKey keys.UsageKey) error {
	if !requester.IsStaff {
		return deny(access.DenyStaffOnly, nil)
	}
	ctx = content.WithRequestCache(ctx)
	tree, err := s.loadTree(ctx, usageKey.Course)
	if err != nil {
		return err
	}
	if _, ok := tree.Block(usageKey); !ok {
		return deny(access.DenyNotFound, nil)
	}
	if err := s.states.Reset(ctx, learnerID, usageKey); err != nil {
		s.log.Error("state reset failed", "usage_key", usageKey.String(), "learner_id", learnerID, "error", err)
		return deny(access.DenyStoreUnavailable, nil)
	}
	if err := s.recomputeGrade(ctx, learnerID, tree); err != nil {
		s.log.Warn("course grade recompute failed after reset", "course_key", tree.CourseKey.String(), "learner_id", learnerID, "error", err)
	}
	s.tracker.Emit(ctx, types.EventProblemReset, &learnerID, tree.CourseKey.String(), map[string]interface{}{
		"usage_key": usageKey.String(),
		"staff_id":  requester.ID.String(),
	})
	return nil
}
