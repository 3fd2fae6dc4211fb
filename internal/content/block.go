package content

import (
	"time"

	"github.com/yungbote/courseware-backend/internal/keys"
)

// BlockType is the closed set of block kinds the core understands. Anything
// else round-trips as Unknown with an opaque payload.
type BlockType string

const (
	BlockTypeCourse     BlockType = "course"
	BlockTypeChapter    BlockType = "chapter"
	BlockTypeSequential BlockType = "sequential"
	BlockTypeVertical   BlockType = "vertical"
	BlockTypeProblem    BlockType = "problem"
	BlockTypeVideo      BlockType = "video"
	BlockTypeHTML       BlockType = "html"
	BlockTypeUnknown    BlockType = "unknown"
)

func ParseBlockType(s string) BlockType {
	switch BlockType(s) {
	case BlockTypeCourse, BlockTypeChapter, BlockTypeSequential,
		BlockTypeVertical, BlockTypeProblem, BlockTypeVideo, BlockTypeHTML:
		return BlockType(s)
	default:
		return BlockTypeUnknown
	}
}

// Fields are the typed settings every block may carry. GroupAccess maps a
// partition id to the group ids allowed to see the block; an empty map means
// unrestricted.
type Fields struct {
	Start        *time.Time      `json:"start,omitempty"`
	End          *time.Time      `json:"end,omitempty"`
	Due          *time.Time      `json:"due,omitempty"`
	StaffOnly    bool            `json:"staff_only,omitempty"`
	GroupAccess  map[int][]int   `json:"group_access,omitempty"`
	Format       string          `json:"format,omitempty"`
	Graded       bool            `json:"graded,omitempty"`
	MaxAttempts  int             `json:"max_attempts,omitempty"`
	Prerequisite string          `json:"prerequisite,omitempty"`
	// RequiredMode gates the block behind an enrollment mode ("verified");
	// empty means any active enrollment suffices.
	RequiredMode string `json:"required_mode,omitempty"`
	// Payload is the type-specific content: problem XML, HTML markup, video
	// metadata, or opaque bytes for unknown types.
	Payload string `json:"payload,omitempty"`
}

// Block is one node of a published course tree. Blocks are immutable once
// loaded; overlays copy, never mutate.
type Block struct {
	UsageKey    keys.UsageKey
	Type        BlockType
	DisplayName string
	Fields      Fields
	Children    []keys.UsageKey
}

// Group is one bucket of a user partition.
type Group struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// UserPartition is a declared learner segmentation scheme. Groups may be
// added over the course lifetime but ids are never reused.
type UserPartition struct {
	ID     int     `json:"id"`
	Name   string  `json:"name"`
	Groups []Group `json:"groups"`
}

func (p UserPartition) Group(groupID int) (Group, bool) {
	for _, g := range p.Groups {
		if g.ID == groupID {
			return g, true
		}
	}
	return Group{}, false
}

const (
	EmbargoBlacklist = "blacklist"
	EmbargoWhitelist = "whitelist"
)

// Embargo is the per-course country restriction.
type Embargo struct {
	Mode      string   `json:"mode"`
	Countries []string `json:"countries"`
}

func (e Embargo) Blocks(country string) bool {
	if e.Mode == "" || len(e.Countries) == 0 || country == "" {
		return false
	}
	listed := false
	for _, c := range e.Countries {
		if c == country {
			listed = true
			break
		}
	}
	if e.Mode == EmbargoWhitelist {
		return !listed
	}
	return listed
}
