package keys

import "strings"

// UsageKey identifies one placement of a block inside a course run. Canonical
// form: "block-v1:ORG+COURSE+RUN+type@TYPE+block@ID". The legacy
// "i4x://ORG/COURSE/TYPE/ID" form carried no run; it parses only so far as
// naming which segment made it unusable.
type UsageKey struct {
	Course    CourseKey
	BlockType string
	BlockID   string
}

const (
	usageKeyPrefix  = "block-v1:"
	legacyUsagePref = "i4x://"
	typeMarker      = "type@"
	blockMarker     = "block@"
)

func ParseUsageKey(s string) (UsageKey, error) {
	if strings.TrimSpace(s) != s || s == "" {
		return UsageKey{}, parseErr(s, "key", "leading/trailing whitespace or empty")
	}
	if strings.HasPrefix(s, legacyUsagePref) {
		// The old locator never recorded the run, so it cannot address a
		// specific course run on its own.
		return UsageKey{}, parseErr(s, "run", "legacy i4x usage keys carry no run")
	}
	rest, ok := strings.CutPrefix(s, usageKeyPrefix)
	if !ok {
		return UsageKey{}, parseErr(s, "key", "missing block-v1 prefix")
	}
	parts := strings.Split(rest, "+")
	if len(parts) != 5 {
		return UsageKey{}, parseErr(s, "key", "want ORG+COURSE+RUN+type@TYPE+block@ID")
	}
	course, err := newCourseKey(s, parts[0], parts[1], parts[2])
	if err != nil {
		return UsageKey{}, err
	}
	blockType, ok := strings.CutPrefix(parts[3], typeMarker)
	if !ok || !validID(blockType, false) {
		return UsageKey{}, parseErr(s, "block_type", "want type@TYPE")
	}
	blockID, ok := strings.CutPrefix(parts[4], blockMarker)
	if !ok || !validID(blockID, true) {
		return UsageKey{}, parseErr(s, "block_id", "want block@ID")
	}
	return UsageKey{Course: course, BlockType: blockType, BlockID: blockID}, nil
}

func (k UsageKey) String() string {
	return usageKeyPrefix + k.Course.Org + "+" + k.Course.Course + "+" + k.Course.Run +
		"+" + typeMarker + k.BlockType + "+" + blockMarker + k.BlockID
}

func (k UsageKey) IsZero() bool {
	return k == UsageKey{}
}

// Child derives a sibling-namespace usage key under the same course, used
// when materializing generated children.
func (k UsageKey) Child(blockType, blockID string) UsageKey {
	return UsageKey{Course: k.Course, BlockType: blockType, BlockID: blockID}
}
