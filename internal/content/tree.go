package content

import (
	"time"

	"github.com/yungbote/courseware-backend/internal/grades"
	"github.com/yungbote/courseware-backend/internal/keys"
)

// CourseTree is one published version of a course: the block index, the
// declared partitions, the grading policy, and course-level settings. Trees
// are immutable after load; callers share them freely.
type CourseTree struct {
	CourseKey  keys.CourseKey
	Version    int64
	Root       keys.UsageKey
	Timezone   string
	Partitions []UserPartition
	Policy     grades.GradingPolicy
	Embargo    Embargo

	blocks  map[keys.UsageKey]*Block
	parents map[keys.UsageKey]keys.UsageKey
}

func (t *CourseTree) Block(k keys.UsageKey) (*Block, bool) {
	b, ok := t.blocks[k]
	return b, ok
}

func (t *CourseTree) RootBlock() *Block {
	return t.blocks[t.Root]
}

func (t *CourseTree) Len() int { return len(t.blocks) }

// Parent returns the spanning-tree parent of a block; false at the root.
func (t *CourseTree) Parent(k keys.UsageKey) (keys.UsageKey, bool) {
	p, ok := t.parents[k]
	return p, ok
}

// Ancestors returns the path from the block's parent up to the root,
// nearest first.
func (t *CourseTree) Ancestors(k keys.UsageKey) []*Block {
	var out []*Block
	cur := k
	for {
		p, ok := t.parents[cur]
		if !ok {
			return out
		}
		out = append(out, t.blocks[p])
		cur = p
	}
}

func (t *CourseTree) Partition(partitionID int) (UserPartition, bool) {
	for _, p := range t.Partitions {
		if p.ID == partitionID {
			return p, true
		}
	}
	return UserPartition{}, false
}

// EffectiveStart is the latest start date on the block and its ancestors;
// a child never opens before its parents.
func (t *CourseTree) EffectiveStart(k keys.UsageKey) *time.Time {
	var latest *time.Time
	consider := func(b *Block) {
		if b == nil || b.Fields.Start == nil {
			return
		}
		if latest == nil || b.Fields.Start.After(*latest) {
			latest = b.Fields.Start
		}
	}
	if b, ok := t.blocks[k]; ok {
		consider(b)
	}
	for _, a := range t.Ancestors(k) {
		consider(a)
	}
	return latest
}

// EffectiveEnd is the earliest end date on the block and its ancestors.
func (t *CourseTree) EffectiveEnd(k keys.UsageKey) *time.Time {
	var earliest *time.Time
	consider := func(b *Block) {
		if b == nil || b.Fields.End == nil {
			return
		}
		if earliest == nil || b.Fields.End.Before(*earliest) {
			earliest = b.Fields.End
		}
	}
	if b, ok := t.blocks[k]; ok {
		consider(b)
	}
	for _, a := range t.Ancestors(k) {
		consider(a)
	}
	return earliest
}

// StaffOnly reports whether the block or any ancestor is staff-only.
func (t *CourseTree) StaffOnly(k keys.UsageKey) bool {
	if b, ok := t.blocks[k]; ok && b.Fields.StaffOnly {
		return true
	}
	for _, a := range t.Ancestors(k) {
		if a.Fields.StaffOnly {
			return true
		}
	}
	return false
}

// GroupAccessChain collects the group_access restrictions on the block and
// every ancestor, nearest first. All of them must pass for a learner.
func (t *CourseTree) GroupAccessChain(k keys.UsageKey) []map[int][]int {
	var out []map[int][]int
	if b, ok := t.blocks[k]; ok && len(b.Fields.GroupAccess) > 0 {
		out = append(out, b.Fields.GroupAccess)
	}
	for _, a := range t.Ancestors(k) {
		if len(a.Fields.GroupAccess) > 0 {
			out = append(out, a.Fields.GroupAccess)
		}
	}
	return out
}

// Location resolves the course timezone, falling back to def, then UTC.
func (t *CourseTree) Location(def string) *time.Location {
	for _, name := range []string{t.Timezone, def} {
		if name == "" {
			continue
		}
		if loc, err := time.LoadLocation(name); err == nil {
			return loc
		}
	}
	return time.UTC
}

// TreeNode is a depth-limited view of the tree rooted at one block.
type TreeNode struct {
	Block    *Block
	Children []*TreeNode
}

// Walk materializes the subtree under from. depth 0 returns just the node,
// -1 the whole subtree.
func (t *CourseTree) Walk(from keys.UsageKey, depth int) *TreeNode {
	b, ok := t.blocks[from]
	if !ok {
		return nil
	}
	node := &TreeNode{Block: b}
	if depth == 0 {
		return node
	}
	next := depth - 1
	if depth < 0 {
		next = -1
	}
	for _, ck := range b.Children {
		if child := t.Walk(ck, next); child != nil {
			node.Children = append(node.Children, child)
		}
	}
	return node
}

// Subsections returns the sequential blocks in document order, used by the
// aggregator and prerequisite checks.
func (t *CourseTree) Subsections() []*Block {
	var out []*Block
	var visit func(k keys.UsageKey)
	visit = func(k keys.UsageKey) {
		b, ok := t.blocks[k]
		if !ok {
			return
		}
		if b.Type == BlockTypeSequential {
			out = append(out, b)
			return
		}
		for _, c := range b.Children {
			visit(c)
		}
	}
	visit(t.Root)
	return out
}

// Descendants returns every block under from (inclusive) in document order.
func (t *CourseTree) Descendants(from keys.UsageKey) []*Block {
	var out []*Block
	var visit func(k keys.UsageKey)
	visit = func(k keys.UsageKey) {
		b, ok := t.blocks[k]
		if !ok {
			return
		}
		out = append(out, b)
		for _, c := range b.Children {
			visit(c)
		}
	}
	visit(from)
	return out
}
