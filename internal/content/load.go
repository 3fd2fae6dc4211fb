package content

import (
	"encoding/json"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/yungbote/courseware-backend/internal/grades"
	"github.com/yungbote/courseware-backend/internal/keys"
)

// SerializedBlock is the wire shape of one block inside a published tree.
type SerializedBlock struct {
	UsageKey     string        `json:"usage_key" yaml:"usage_key"`
	Type         string        `json:"type" yaml:"type"`
	DisplayName  string        `json:"display_name" yaml:"display_name"`
	Start        *time.Time    `json:"start,omitempty" yaml:"start,omitempty"`
	End          *time.Time    `json:"end,omitempty" yaml:"end,omitempty"`
	Due          *time.Time    `json:"due,omitempty" yaml:"due,omitempty"`
	StaffOnly    bool          `json:"staff_only,omitempty" yaml:"staff_only,omitempty"`
	GroupAccess  map[int][]int `json:"group_access,omitempty" yaml:"group_access,omitempty"`
	Format       string        `json:"format,omitempty" yaml:"format,omitempty"`
	Graded       bool          `json:"graded,omitempty" yaml:"graded,omitempty"`
	MaxAttempts  int           `json:"max_attempts,omitempty" yaml:"max_attempts,omitempty"`
	Prerequisite string        `json:"prerequisite,omitempty" yaml:"prerequisite,omitempty"`
	RequiredMode string        `json:"required_mode,omitempty" yaml:"required_mode,omitempty"`
	Payload      string        `json:"payload,omitempty" yaml:"payload,omitempty"`
	Children     []string      `json:"children,omitempty" yaml:"children,omitempty"`
}

// SerializedTree is the wire shape of a whole published course.
type SerializedTree struct {
	Course     string               `json:"course" yaml:"course"`
	Version    int64                `json:"version,omitempty" yaml:"version,omitempty"`
	Timezone   string               `json:"timezone,omitempty" yaml:"timezone,omitempty"`
	Root       string               `json:"root" yaml:"root"`
	Partitions []UserPartition      `json:"partitions,omitempty" yaml:"partitions,omitempty"`
	Policy     grades.GradingPolicy `json:"grading_policy" yaml:"grading_policy"`
	Embargo    Embargo              `json:"embargo,omitempty" yaml:"embargo,omitempty"`
	Blocks     []SerializedBlock    `json:"blocks" yaml:"blocks"`
}

// DecodeTree accepts the serialized tree as JSON (leading '{') or YAML and
// builds a validated CourseTree. version is assigned by the caller.
func DecodeTree(raw []byte, version int64) (*CourseTree, error) {
	var st SerializedTree
	if isJSON(raw) {
		if err := json.Unmarshal(raw, &st); err != nil {
			return nil, fmt.Errorf("decode tree json: %w", err)
		}
	} else {
		if err := yaml.Unmarshal(raw, &st); err != nil {
			return nil, fmt.Errorf("decode tree yaml: %w", err)
		}
	}
	return BuildTree(&st, version)
}

func isJSON(raw []byte) bool {
	for _, b := range raw {
		switch b {
		case ' ', '\t', '\r', '\n':
			continue
		case '{':
			return true
		default:
			return false
		}
	}
	return false
}

// EncodeTree serializes a tree back to its canonical JSON wire form, the
// shape persisted in course_content and cached in redis.
func EncodeTree(t *CourseTree) ([]byte, error) {
	st := SerializedTree{
		Course:     t.CourseKey.String(),
		Version:    t.Version,
		Timezone:   t.Timezone,
		Root:       t.Root.String(),
		Partitions: t.Partitions,
		Policy:     t.Policy,
		Embargo:    t.Embargo,
	}
	var appendBlocks func(k keys.UsageKey)
	seen := make(map[keys.UsageKey]bool, len(t.blocks))
	appendBlocks = func(k keys.UsageKey) {
		if seen[k] {
			return
		}
		seen[k] = true
		b := t.blocks[k]
		sb := SerializedBlock{
			UsageKey:     b.UsageKey.String(),
			Type:         string(b.Type),
			DisplayName:  b.DisplayName,
			Start:        b.Fields.Start,
			End:          b.Fields.End,
			Due:          b.Fields.Due,
			StaffOnly:    b.Fields.StaffOnly,
			GroupAccess:  b.Fields.GroupAccess,
			Format:       b.Fields.Format,
			Graded:       b.Fields.Graded,
			MaxAttempts:  b.Fields.MaxAttempts,
			Prerequisite: b.Fields.Prerequisite,
			RequiredMode: b.Fields.RequiredMode,
			Payload:      b.Fields.Payload,
		}
		for _, c := range b.Children {
			sb.Children = append(sb.Children, c.String())
		}
		st.Blocks = append(st.Blocks, sb)
		for _, c := range b.Children {
			appendBlocks(c)
		}
	}
	appendBlocks(t.Root)
	return json.Marshal(&st)
}

// BuildTree validates the serialized form: keys parse and belong to the
// course, the root is a course block, children resolve, every block hangs
// off the root exactly once, and the grading policy is sound.
func BuildTree(st *SerializedTree, version int64) (*CourseTree, error) {
	if version == 0 {
		version = st.Version
	}
	courseKey, err := keys.ParseCourseKey(st.Course)
	if err != nil {
		return nil, err
	}
	rootKey, err := keys.ParseUsageKey(st.Root)
	if err != nil {
		return nil, err
	}
	if rootKey.Course != courseKey {
		return nil, fmt.Errorf("root %s is not in course %s", rootKey, courseKey)
	}
	if err := st.Policy.Validate(); err != nil {
		return nil, err
	}
	if err := validatePartitions(st.Partitions); err != nil {
		return nil, err
	}

	blocks := make(map[keys.UsageKey]*Block, len(st.Blocks))
	for i := range st.Blocks {
		sb := &st.Blocks[i]
		uk, err := keys.ParseUsageKey(sb.UsageKey)
		if err != nil {
			return nil, err
		}
		if uk.Course != courseKey {
			return nil, fmt.Errorf("block %s is not in course %s", uk, courseKey)
		}
		if _, dup := blocks[uk]; dup {
			return nil, fmt.Errorf("duplicate block %s", uk)
		}
		b := &Block{
			UsageKey:    uk,
			Type:        ParseBlockType(sb.Type),
			DisplayName: sb.DisplayName,
			Fields: Fields{
				Start:        sb.Start,
				End:          sb.End,
				Due:          sb.Due,
				StaffOnly:    sb.StaffOnly,
				GroupAccess:  sb.GroupAccess,
				Format:       sb.Format,
				Graded:       sb.Graded,
				MaxAttempts:  sb.MaxAttempts,
				Prerequisite: sb.Prerequisite,
				RequiredMode: sb.RequiredMode,
				Payload:      sb.Payload,
			},
		}
		// Problem internals belong to the grader; problems never have
		// child blocks.
		if b.Type != BlockTypeProblem {
			for _, c := range sb.Children {
				ck, err := keys.ParseUsageKey(c)
				if err != nil {
					return nil, err
				}
				b.Children = append(b.Children, ck)
			}
		} else if len(sb.Children) > 0 {
			return nil, fmt.Errorf("problem block %s declares children", uk)
		}
		blocks[uk] = b
	}

	root, ok := blocks[rootKey]
	if !ok {
		return nil, fmt.Errorf("root block %s missing from block list", rootKey)
	}
	if root.Type != BlockTypeCourse {
		return nil, fmt.Errorf("root block %s has type %q, want course", rootKey, root.Type)
	}

	parents := make(map[keys.UsageKey]keys.UsageKey, len(blocks))
	for _, b := range blocks {
		for _, ck := range b.Children {
			if _, ok := blocks[ck]; !ok {
				return nil, fmt.Errorf("block %s references missing child %s", b.UsageKey, ck)
			}
			if prev, dup := parents[ck]; dup {
				return nil, fmt.Errorf("block %s has two parents (%s, %s)", ck, prev, b.UsageKey)
			}
			if ck == rootKey {
				return nil, fmt.Errorf("root %s appears as a child of %s", rootKey, b.UsageKey)
			}
			parents[ck] = b.UsageKey
		}
	}

	// Single-parent plus a reachability sweep rules out cycles: a cycle
	// detached from the root is unreachable, and one through the root would
	// need the root as a child.
	reached := make(map[keys.UsageKey]bool, len(blocks))
	var visit func(k keys.UsageKey)
	visit = func(k keys.UsageKey) {
		if reached[k] {
			return
		}
		reached[k] = true
		for _, c := range blocks[k].Children {
			visit(c)
		}
	}
	visit(rootKey)
	for k := range blocks {
		if !reached[k] {
			return nil, fmt.Errorf("block %s is unreachable from the root", k)
		}
	}

	return &CourseTree{
		CourseKey:  courseKey,
		Version:    version,
		Root:       rootKey,
		Timezone:   st.Timezone,
		Partitions: st.Partitions,
		Policy:     st.Policy,
		Embargo:    st.Embargo,
		blocks:     blocks,
		parents:    parents,
	}, nil
}

func validatePartitions(parts []UserPartition) error {
	seen := make(map[int]bool, len(parts))
	for _, p := range parts {
		if seen[p.ID] {
			return fmt.Errorf("duplicate partition id %d", p.ID)
		}
		seen[p.ID] = true
		groupSeen := make(map[int]bool, len(p.Groups))
		for _, g := range p.Groups {
			if groupSeen[g.ID] {
				return fmt.Errorf("partition %d: duplicate group id %d", p.ID, g.ID)
			}
			groupSeen[g.ID] = true
		}
	}
	return nil
}
