package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/yungbote/courseware-backend/internal/keys"
	"github.com/yungbote/courseware-backend/internal/logger"
	"github.com/yungbote/courseware-backend/internal/repos"
	"github.com/yungbote/courseware-backend/internal/types"
)

var (
	// ErrVersionConflict: the optimistic write lost every retry. Callers
	// surface it as a retryable failure.
	ErrVersionConflict = errors.New("state: version conflict")
)

// Snapshot is one learner's durable state for one block.
type Snapshot struct {
	State     json.RawMessage
	Earned    *float64
	Possible  *float64
	Attempts  int
	Done      bool
	Version   int64
	UpdatedAt time.Time
}

// Store serializes writes per (learner, block) with optimistic versioning.
// Two Update calls for the same tuple never interleave their
// read-modify-write windows: the loser of the version check rereads and
// reapplies.
type Store interface {
	Get(ctx context.Context, learnerID uuid.UUID, usageKey keys.UsageKey) (*Snapshot, error)
	GetMany(ctx context.Context, learnerID uuid.UUID, usageKeys []keys.UsageKey) (map[keys.UsageKey]*Snapshot, error)
	GetGradedForCourse(ctx context.Context, learnerID uuid.UUID, courseKey keys.CourseKey) (map[keys.UsageKey]*Snapshot, error)
	// Update applies the pure function f to the current snapshot (zero value
	// when absent) and persists the result.
	Update(ctx context.Context, learnerID uuid.UUID, usageKey keys.UsageKey, f func(Snapshot) (Snapshot, error)) (*Snapshot, error)
	MarkDone(ctx context.Context, learnerID uuid.UUID, usageKey keys.UsageKey) error
	// Reset deletes the learner's state row for the block (staff action).
	Reset(ctx context.Context, learnerID uuid.UUID, usageKey keys.UsageKey) error
}

type store struct {
	repo       repos.BlockStateRepo
	log        *logger.Logger
	maxRetries int
}

func NewStore(repo repos.BlockStateRepo, maxRetries int, baseLog *logger.Logger) Store {
	if maxRetries < 1 {
		maxRetries = 3
	}
	return &store{
		repo:       repo,
		log:        baseLog.With("service", "LearnerStateStore"),
		maxRetries: maxRetries,
	}
}

func snapshotFromRow(row *types.LearnerBlockState) *Snapshot {
	if row == nil {
		return nil
	}
	return &Snapshot{
		State:     json.RawMessage(row.State),
		Earned:    row.Earned,
		Possible:  row.Possible,
		Attempts:  row.Attempts,
		Done:      row.Done,
		Version:   row.Version,
		UpdatedAt: row.UpdatedAt,
	}
}

func (s *store) Get(ctx context.Context, learnerID uuid.UUID, usageKey keys.UsageKey) (*Snapshot, error) {
	row, err := s.repo.Get(ctx, nil, learnerID, usageKey.String())
	if err != nil {
		return nil, err
	}
	return snapshotFromRow(row), nil
}

func (s *store) GetMany(ctx context.Context, learnerID uuid.UUID, usageKeys []keys.UsageKey) (map[keys.UsageKey]*Snapshot, error) {
	strs := make([]string, 0, len(usageKeys))
	for _, k := range usageKeys {
		strs = append(strs, k.String())
	}
	rows, err := s.repo.GetMany(ctx, nil, learnerID, strs)
	if err != nil {
		return nil, err
	}
	out := make(map[keys.UsageKey]*Snapshot, len(rows))
	for _, row := range rows {
		k, err := keys.ParseUsageKey(row.UsageKey)
		if err != nil {
			s.log.Warn("state row holds unparseable usage key", "usage_key", row.UsageKey, "error", err)
			continue
		}
		out[k] = snapshotFromRow(row)
	}
	return out, nil
}

func (s *store) GetGradedForCourse(ctx context.Context, learnerID uuid.UUID, courseKey keys.CourseKey) (map[keys.UsageKey]*Snapshot, error) {
	rows, err := s.repo.GetGradedForCourse(ctx, nil, learnerID, courseKey.String())
	if err != nil {
		return nil, err
	}
	out := make(map[keys.UsageKey]*Snapshot, len(rows))
	for _, row := range rows {
		k, err := keys.ParseUsageKey(row.UsageKey)
		if err != nil {
			continue
		}
		out[k] = snapshotFromRow(row)
	}
	return out, nil
}

func (s *store) Update(ctx context.Context, learnerID uuid.UUID, usageKey keys.UsageKey, f func(Snapshot) (Snapshot, error)) (*Snapshot, error) {
	uk := usageKey.String()
	for attempt := 0; attempt < s.maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		row, err := s.repo.Get(ctx, nil, learnerID, uk)
		if err != nil {
			return nil, err
		}

		var cur Snapshot
		if row != nil {
			cur = *snapshotFromRow(row)
		}
		next, err := f(cur)
		if err != nil {
			return nil, err
		}

		if row == nil {
			fresh := &types.LearnerBlockState{
				LearnerID: learnerID,
				UsageKey:  uk,
				State:     datatypes.JSON(next.State),
				Earned:    next.Earned,
				Possible:  next.Possible,
				Attempts:  next.Attempts,
				Done:      next.Done,
				Version:   1,
			}
			err := s.repo.Insert(ctx, nil, fresh)
			if err == nil {
				return snapshotFromRow(fresh), nil
			}
			if repos.IsUniqueViolation(err) {
				continue
			}
			return nil, err
		}

		row.State = datatypes.JSON(next.State)
		row.Earned = next.Earned
		row.Possible = next.Possible
		row.Attempts = next.Attempts
		row.Done = next.Done
		applied, err := s.repo.UpdateVersioned(ctx, nil, row, cur.Version)
		if err != nil {
			return nil, err
		}
		if applied {
			next.Version = cur.Version + 1
			next.UpdatedAt = time.Now()
			return &next, nil
		}
		// lost the version race, reread and reapply
	}
	s.log.Warn("state write exhausted retries", "learner_id", learnerID, "usage_key", uk, "retries", s.maxRetries)
	return nil, fmt.Errorf("%w: %s after %d retries", ErrVersionConflict, uk, s.maxRetries)
}

func (s *store) MarkDone(ctx context.Context, learnerID uuid.UUID, usageKey keys.UsageKey) error {
	_, err := s.Update(ctx, learnerID, usageKey, func(cur Snapshot) (Snapshot, error) {
		cur.Done = true
		return cur, nil
	})
	return err
}

func (s *store) Reset(ctx context.Context, learnerID uuid.UUID, usageKey keys.UsageKey) error {
	return s.repo.Delete(ctx, nil, learnerID, usageKey.String())
}
