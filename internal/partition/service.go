package partition

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"strconv"

	"github.com/google/uuid"

	"github.com/yungbote/courseware-backend/internal/content"
	"github.com/yungbote/courseware-backend/internal/events"
	"github.com/yungbote/courseware-backend/internal/keys"
	"github.com/yungbote/courseware-backend/internal/logger"
	"github.com/yungbote/courseware-backend/internal/repos"
	"github.com/yungbote/courseware-backend/internal/types"
)

var ErrNoSuchPartition = errors.New("partition: no such partition")

// Service hands out stable group assignments. The first read of a
// (learner, course, partition) tuple picks a group and persists it; every
// later read returns the same value.
type Service interface {
	content.GroupResolver
	ListPartitions(ctx context.Context, courseKey keys.CourseKey) ([]content.UserPartition, error)
}

type service struct {
	store   content.Store
	repo    repos.GroupAssignmentRepo
	tracker events.Tracker
	log     *logger.Logger
	seed    []byte
}

// NewService builds the partition service. seed is configuration, not
// process state: the same seed reproduces the same assignments, which the
// deterministic tests rely on.
func NewService(store content.Store, repo repos.GroupAssignmentRepo, tracker events.Tracker, seed []byte, baseLog *logger.Logger) Service {
	return &service{
		store:   store,
		repo:    repo,
		tracker: tracker,
		log:     baseLog.With("service", "PartitionService"),
		seed:    seed,
	}
}

func (s *service) ListPartitions(ctx context.Context, courseKey keys.CourseKey) ([]content.UserPartition, error) {
	tree, err := s.store.Tree(ctx, courseKey)
	if err != nil {
		return nil, err
	}
	return tree.Partitions, nil
}

func (s *service) GroupFor(ctx context.Context, learnerID uuid.UUID, courseKey keys.CourseKey, partitionID int) (int, error) {
	tree, err := s.store.Tree(ctx, courseKey)
	if err != nil {
		return 0, err
	}
	part, ok := tree.Partition(partitionID)
	if !ok {
		return 0, fmt.Errorf("%w: %d on %s", ErrNoSuchPartition, partitionID, courseKey)
	}
	if len(part.Groups) == 0 {
		return 0, fmt.Errorf("%w: %d on %s has no groups", ErrNoSuchPartition, partitionID, courseKey)
	}

	ck := courseKey.String()
	existing, err := s.repo.Get(ctx, nil, learnerID, ck, partitionID)
	if err != nil {
		return 0, err
	}
	if existing != nil {
		if _, stillThere := part.Group(existing.GroupID); stillThere {
			return existing.GroupID, nil
		}
		// The assigned group was removed from the partition; reassign
		// deterministically and keep the row.
		next := s.pickGroup(learnerID, ck, partitionID, part.Groups)
		if err := s.repo.UpdateGroup(ctx, nil, existing.ID, next); err != nil {
			return 0, err
		}
		s.tracker.Emit(ctx, types.EventPartitionReassigned, &learnerID, ck, map[string]interface{}{
			"partition": partitionID,
			"from":      existing.GroupID,
			"group":     next,
		})
		return next, nil
	}

	chosen := s.pickGroup(learnerID, ck, partitionID, part.Groups)
	row := &types.GroupAssignment{
		LearnerID:   learnerID,
		CourseKey:   ck,
		PartitionID: partitionID,
		GroupID:     chosen,
	}
	if err := s.repo.Insert(ctx, nil, row); err != nil {
		if repos.IsUniqueViolation(err) {
			// Another request assigned concurrently; the stored row wins.
			winner, rerr := s.repo.Get(ctx, nil, learnerID, ck, partitionID)
			if rerr != nil {
				return 0, rerr
			}
			if winner == nil {
				return 0, fmt.Errorf("assignment race for %s/%d left no row", ck, partitionID)
			}
			return winner.GroupID, nil
		}
		return 0, err
	}
	s.tracker.Emit(ctx, types.EventPartitionAssigned, &learnerID, ck, map[string]interface{}{
		"partition": partitionID,
		"group":     chosen,
	})
	return chosen, nil
}

// pickGroup hashes (seed, learner, course, partition) into the group list.
// Uniform over groups, stable for a given seed.
func (s *service) pickGroup(learnerID uuid.UUID, courseKey string, partitionID int, groups []content.Group) int {
	mac := hmac.New(sha256.New, s.seed)
	mac.Write([]byte(learnerID.String()))
	mac.Write([]byte{0})
	mac.Write([]byte(courseKey))
	mac.Write([]byte{0})
	mac.Write([]byte(strconv.Itoa(partitionID)))
	sum := mac.Sum(nil)
	idx := binary.BigEndian.Uint64(sum[:8]) % uint64(len(groups))
	return groups[idx].ID
}
