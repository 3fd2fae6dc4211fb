package courseware

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/courseware-backend/internal/access"
	"github.com/yungbote/courseware-backend/internal/capa"
	"github.com/yungbote/courseware-backend/internal/content"
	"github.com/yungbote/courseware-backend/internal/events"
	"github.com/yungbote/courseware-backend/internal/grades"
	"github.com/yungbote/courseware-backend/internal/keys"
	"github.com/yungbote/courseware-backend/internal/logger"
	"github.com/yungbote/courseware-backend/internal/partition"
	"github.com/yungbote/courseware-backend/internal/repos"
	"github.com/yungbote/courseware-backend/internal/state"
	"github.com/yungbote/courseware-backend/internal/types"
)

// ErrNotGradable: submit was called on a block that is not a problem.
var ErrNotGradable = errors.New("courseware: block is not gradable")

// Service is the courseware coordinator: it composes access checks, content
// reads, grading and state writes into the learner-facing operations.
type Service interface {
	View(ctx context.Context, learner Learner, usageKey keys.UsageKey) (*ViewModel, error)
	Submit(ctx context.Context, learner Learner, usageKey keys.UsageKey, answers map[string]string, sessionID string) (*SubmitResult, error)
	Sequence(ctx context.Context, learner Learner, section, subsection keys.UsageKey) (*SequenceModel, error)
	Outline(ctx context.Context, learner Learner, courseKey keys.CourseKey, depth int) (*OutlineNode, error)
	Progress(ctx context.Context, learner Learner, courseKey keys.CourseKey) (*ProgressModel, error)
	// ResetProblem deletes a learner's state for one block. Staff only.
	ResetProblem(ctx context.Context, requester Learner, learnerID uuid.UUID, usageKey keys.UsageKey) error
	// Regrade recomputes and persists one learner's course rollup against
	// the latest published tree. The regrade job calls it per learner.
	Regrade(ctx context.Context, learnerID uuid.UUID, courseKey keys.CourseKey) error
}

type service struct {
	contentStore content.Store
	partitions   partition.Service
	states       state.Store
	grader       *capa.Grader
	gradebook    grades.Service
	enrollments  repos.EnrollmentRepo
	tracker      events.Tracker
	defaultTZ    string
	log          *logger.Logger
}

func NewService(
	contentStore content.Store,
	partitions partition.Service,
	states state.Store,
	grader *capa.Grader,
	gradebook grades.Service,
	enrollments repos.EnrollmentRepo,
	tracker events.Tracker,
	defaultTZ string,
	baseLog *logger.Logger,
) Service {
	return &service{
		contentStore: contentStore,
		partitions:   partitions,
		states:       states,
		grader:       grader,
		gradebook:    gradebook,
		enrollments:  enrollments,
		tracker:      tracker,
		defaultTZ:    defaultTZ,
		log:          baseLog.With("service", "CoursewareService"),
	}
}

// blockContext pairs a block with its tree and the course-local timezone,
// falling back to the configured default when the course sets none.
func (s *service) blockContext(tree *content.CourseTree, block *content.Block) access.BlockContext {
	return access.BlockContext{Tree: tree, Block: block, Location: tree.Location(s.defaultTZ)}
}

// problemState is the grader-specific part of a block state snapshot.
type problemState struct {
	Answers            map[string]string           `json:"answers,omitempty"`
	Correctness        map[string]capa.Correctness `json:"correctness,omitempty"`
	Reasons            map[string]string           `json:"reasons,omitempty"`
	LastSubmissionHash string                      `json:"last_submission_hash,omitempty"`
	SessionID          string                      `json:"session_id,omitempty"`
}

func decodeProblemState(raw json.RawMessage) problemState {
	var ps problemState
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &ps)
	}
	return ps
}

func (s *service) View(ctx context.Context, learner Learner, usageKey keys.UsageKey) (*ViewModel, error) {
	ctx = content.WithRequestCache(ctx)
	tree, err := s.loadTree(ctx, usageKey.Course)
	if err != nil {
		return nil, err
	}
	var block *content.Block
	if b, ok := tree.Block(usageKey); ok {
		block = b
	}
	snap, err := s.snapshot(ctx, learner.ID, usageKey)
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

	vm := &ViewModel{
		UsageKey:    usageKey.String(),
		Type:        block.Type,
		DisplayName: block.DisplayName,
	}
	if snap != nil {
		vm.State = &StateSummary{
			Attempts: snap.Attempts,
			Earned:   snap.Earned,
			Possible: snap.Possible,
			Done:     snap.Done,
		}
	}
	if block.Type == content.BlockTypeProblem {
		s.renderProblem(learner, block, snap, vm)
	} else {
		vm.Payload = block.Fields.Payload
	}
	if len(block.Children) > 0 {
		view := &content.LearnerView{LearnerID: learner.ID, IsStaff: learner.IsStaff, Groups: s.partitions}
		children, err := s.contentStore.ChildrenFor(ctx, view, usageKey, now)
		if err != nil {
			s.log.Error("resolve visible children failed", "usage_key", usageKey.String(), "error", err)
			return nil, deny(access.DenyStoreUnavailable, nil)
		}
		for _, c := range children {
			vm.Children = append(vm.Children, c.UsageKey.String())
		}
	}
	return vm, nil
}

func (s *service) renderProblem(learner Learner, block *content.Block, snap *state.Snapshot, vm *ViewModel) {
	prepared, err := s.grader.Prepare(block.Fields.Payload, problemSeed(learner.ID, block.UsageKey))
	if err != nil {
		s.log.Error("problem definition failed to prepare", "usage_key", block.UsageKey.String(), "error", err)
		return
	}
	var prior map[string]string
	if snap != nil {
		prior = decodeProblemState(snap.State).Answers
	}
	m := s.grader.Render(prepared, prior)
	vm.Problem = &m
}

func (s *service) Submit(ctx context.Context, learner Learner, usageKey keys.UsageKey, answers map[string]string, sessionID string) (*SubmitResult, error) {
	ctx = content.WithRequestCache(ctx)
	tree, err := s.loadTree(ctx, usageKey.Course)
	if err != nil {
		return nil, err
	}
	var block *content.Block
	if b, ok := tree.Block(usageKey); ok {
		block = b
	}
	snap, err := s.snapshot(ctx, learner.ID, usageKey)
	if err != nil {
		return nil, err
	}
	lc, err := s.learnerContext(ctx, learner, tree, block, snap)
	if err != nil {
		return nil, err
	}
	if d := access.Check(lc, s.blockContext(tree, block), access.ActionSubmit, time.Now()); !d.Allowed {
		return nil, &DenyError{Decision: d}
	}
	if block.Type != content.BlockTypeProblem {
		return nil, ErrNotGradable
	}

	prepared, err := s.grader.Prepare(block.Fields.Payload, problemSeed(learner.ID, usageKey))
	if err != nil {
		s.log.Error("problem definition failed to prepare", "usage_key", usageKey.String(), "error", err)
		return nil, fmt.Errorf("prepare problem %s: %w", usageKey.String(), err)
	}

	// Resubmitting the identical payload within the same session replays the
	// stored result without spending an attempt.
	hash := submissionHash(answers)
	if snap != nil && snap.Attempts > 0 {
		if ps := decodeProblemState(snap.State); ps.LastSubmissionHash == hash && ps.SessionID == sessionID {
			return replayResult(ps, snap), nil
		}
	}

	result := s.grader.Grade(ctx, prepared, answers)

	newSnap, err := s.states.Update(ctx, learner.ID, usageKey, func(cur state.Snapshot) (state.Snapshot, error) {
		ps := decodeProblemState(cur.State)
		ps.Answers = answers
		ps.Correctness = result.Correctness
		ps.Reasons = result.Reasons
		ps.LastSubmissionHash = hash
		ps.SessionID = sessionID
		raw, err := json.Marshal(ps)
		if err != nil {
			return cur, err
		}
		cur.State = raw
		earned, possible := result.Earned, result.Possible
		cur.Earned, cur.Possible = &earned, &possible
		cur.Attempts++
		cur.Done = true
		return cur, nil
	})
	if err != nil {
		switch {
		case errors.Is(err, state.ErrVersionConflict):
			return nil, deny(access.DenyTryAgain, nil)
		default:
			s.log.Error("state write failed", "usage_key", usageKey.String(), "learner_id", learner.ID, "error", err)
			return nil, deny(access.DenyStoreUnavailable, nil)
		}
	}

	if err := s.recomputeGrade(ctx, learner.ID, tree); err != nil {
		// The block write already landed; Progress recomputes live from
		// state rows, so a stale persisted rollup is recoverable.
		s.log.Warn("course grade recompute failed", "course_key", tree.CourseKey.String(), "learner_id", learner.ID, "error", err)
	}
	s.tracker.Emit(ctx, types.EventProblemGraded, &learner.ID, tree.CourseKey.String(), map[string]interface{}{
		"usage_key": usageKey.String(),
		"earned":    result.Earned,
		"possible":  result.Possible,
		"attempts":  newSnap.Attempts,
	})

	return &SubmitResult{
		Correctness: result.Correctness,
		Reasons:     result.Reasons,
		Earned:      result.Earned,
		Possible:    result.Possible,
		Attempts:    newSnap.Attempts,
	}, nil
}

func replayResult(ps problemState, snap *state.Snapshot) *SubmitResult {
	res := &SubmitResult{
		Correctness: ps.Correctness,
		Reasons:     ps.Reasons,
		Attempts:    snap.Attempts,
	}
	if snap.Earned != nil {
		res.Earned = *snap.Earned
	}
	if snap.Possible != nil {
		res.Possible = *snap.Possible
	}
	return res
}

func (s *service) Regrade(ctx context.Context, learnerID uuid.UUID, courseKey keys.CourseKey) error {
	ctx = content.WithRequestCache(ctx)
	tree, err := s.loadTree(ctx, courseKey)
	if err != nil {
		return err
	}
	return s.recomputeGrade(ctx, learnerID, tree)
}

// loadTree maps content store failures onto the access surface: a missing
// course is NotFound, an unreachable store is a retryable infrastructure
// deny.
func (s *service) loadTree(ctx context.Context, courseKey keys.CourseKey) (*content.CourseTree, error) {
	tree, err := s.contentStore.Tree(ctx, courseKey)
	if err != nil {
		if errors.Is(err, content.ErrNotFound) {
			return nil, deny(access.DenyNotFound, nil)
		}
		s.log.Error("course tree unavailable", "course_key", courseKey.String(), "error", err)
		return nil, deny(access.DenyStoreUnavailable, nil)
	}
	return tree, nil
}

func (s *service) snapshot(ctx context.Context, learnerID uuid.UUID, usageKey keys.UsageKey) (*state.Snapshot, error) {
	snap, err := s.states.Get(ctx, learnerID, usageKey)
	if err != nil {
		s.log.Error("state read failed", "usage_key", usageKey.String(), "learner_id", learnerID, "error", err)
		return nil, deny(access.DenyStoreUnavailable, nil)
	}
	return snap, nil
}

// learnerContext gathers the store-backed inputs the access rules need.
// Staff contexts skip the reads entirely since every rule past existence is
// bypassed for them.
func (s *service) learnerContext(ctx context.Context, learner Learner, tree *content.CourseTree, block *content.Block, snap *state.Snapshot) (access.LearnerContext, error) {
	lc := access.LearnerContext{
		LearnerID: learner.ID,
		IsStaff:   learner.IsStaff,
		Country:   learner.Country,
	}
	if snap != nil {
		lc.Attempts = snap.Attempts
	}
	if learner.IsStaff || block == nil {
		return lc, nil
	}

	enr, err := s.enrollments.GetActive(ctx, nil, learner.ID, tree.CourseKey.String())
	if err != nil {
		s.log.Error("enrollment read failed", "course_key", tree.CourseKey.String(), "learner_id", learner.ID, "error", err)
		return lc, deny(access.DenyStoreUnavailable, nil)
	}
	if enr != nil {
		lc.Enrolled = true
		lc.Mode = enr.Mode
	}

	lc.Groups = map[int]int{}
	for _, ga := range tree.GroupAccessChain(block.UsageKey) {
		for partitionID := range ga {
			if _, seen := lc.Groups[partitionID]; seen {
				continue
			}
			group, err := s.partitions.GroupFor(ctx, learner.ID, tree.CourseKey, partitionID)
			if errors.Is(err, partition.ErrNoSuchPartition) {
				continue
			}
			if err != nil {
				s.log.Error("partition resolution failed", "partition_id", partitionID, "learner_id", learner.ID, "error", err)
				return lc, deny(access.DenyStoreUnavailable, nil)
			}
			lc.Groups[partitionID] = group
		}
	}

	if prereq := block.Fields.Prerequisite; prereq != "" {
		complete, err := s.prerequisiteComplete(ctx, learner.ID, tree, prereq)
		if err != nil {
			return lc, err
		}
		lc.CompletedBlocks = map[string]bool{prereq: complete}
	}
	return lc, nil
}

func (s *service) prerequisiteComplete(ctx context.Context, learnerID uuid.UUID, tree *content.CourseTree, prereq string) (bool, error) {
	key, err := keys.ParseUsageKey(prereq)
	if err != nil {
		s.log.Warn("block declares unparseable prerequisite", "prerequisite", prereq, "error", err)
		return false, nil
	}
	return s.subsectionComplete(ctx, learnerID, tree, key)
}

// subsectionComplete reports whether every leaf under the subsection is
// marked done. A subsection with no leaves gates nothing.
func (s *service) subsectionComplete(ctx context.Context, learnerID uuid.UUID, tree *content.CourseTree, subsection keys.UsageKey) (bool, error) {
	leaves := leafKeys(tree, subsection)
	if len(leaves) == 0 {
		return true, nil
	}
	snaps, err := s.states.GetMany(ctx, learnerID, leaves)
	if err != nil {
		s.log.Error("completion read failed", "usage_key", subsection.String(), "learner_id", learnerID, "error", err)
		return false, deny(access.DenyStoreUnavailable, nil)
	}
	for _, k := range leaves {
		snap := snaps[k]
		if snap == nil || !snap.Done {
			return false, nil
		}
	}
	return true, nil
}

func leafKeys(tree *content.CourseTree, from keys.UsageKey) []keys.UsageKey {
	var out []keys.UsageKey
	for _, b := range tree.Descendants(from) {
		switch b.Type {
		case content.BlockTypeProblem, content.BlockTypeVideo, content.BlockTypeHTML, content.BlockTypeUnknown:
			out = append(out, b.UsageKey)
		}
	}
	return out
}

// recomputeGrade rolls the learner's graded state up under the course policy
// and persists the result.
func (s *service) recomputeGrade(ctx context.Context, learnerID uuid.UUID, tree *content.CourseTree) error {
	summary, err := s.summarize(ctx, learnerID, tree)
	if err != nil {
		return err
	}
	return s.gradebook.Save(ctx, learnerID, tree.CourseKey, *summary)
}

func (s *service) summarize(ctx context.Context, learnerID uuid.UUID, tree *content.CourseTree) (*grades.CourseSummary, error) {
	snaps, err := s.states.GetGradedForCourse(ctx, learnerID, tree.CourseKey)
	if err != nil {
		return nil, fmt.Errorf("load graded state: %w", err)
	}
	scores := blockScores(tree, snaps)
	summary := grades.Summarize(tree.Policy, scores)
	return &summary, nil
}

// blockScores pairs graded problem blocks with their stored scores. The
// category comes from the block's own assignment format, falling back to the
// nearest ancestor that declares one.
func blockScores(tree *content.CourseTree, snaps map[keys.UsageKey]*state.Snapshot) []grades.BlockScore {
	var scores []grades.BlockScore
	for k, snap := range snaps {
		if snap == nil || snap.Earned == nil || snap.Possible == nil {
			continue
		}
		block, ok := tree.Block(k)
		if !ok || !gradedBlock(tree, block) {
			continue
		}
		scores = append(scores, grades.BlockScore{
			UsageKey: k.String(),
			Category: categoryFor(tree, block),
			Earned:   *snap.Earned,
			Possible: *snap.Possible,
		})
	}
	sort.Slice(scores, func(i, j int) bool { return scores[i].UsageKey < scores[j].UsageKey })
	return scores
}

func gradedBlock(tree *content.CourseTree, block *content.Block) bool {
	if block.Fields.Graded {
		return true
	}
	for _, a := range tree.Ancestors(block.UsageKey) {
		if a.Fields.Graded {
			return true
		}
	}
	return false
}

func categoryFor(tree *content.CourseTree, block *content.Block) string {
	if block.Fields.Format != "" {
		return block.Fields.Format
	}
	for _, a := range tree.Ancestors(block.UsageKey) {
		if a.Fields.Format != "" {
			return a.Fields.Format
		}
	}
	return ""
}

// problemSeed derives the per-learner variant seed. It depends only on the
// learner and block identity, so reloads and resubmissions see the same
// variant.
func problemSeed(learnerID uuid.UUID, usageKey keys.UsageKey) int64 {
	h := sha256.New()
	h.Write(learnerID[:])
	h.Write([]byte(usageKey.String()))
	sum := h.Sum(nil)
	return int64(binary.BigEndian.Uint64(sum[:8]) &^ (1 << 63))
}

// submissionHash canonicalizes a submission for no-op detection.
func submissionHash(answers map[string]string) string {
	ids := make([]string, 0, len(answers))
	for id := range answers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	h := sha256.New()
	for _, id := range ids {
		h.Write([]byte(id))
		h.Write([]byte{0})
		h.Write([]byte(answers[id]))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}
