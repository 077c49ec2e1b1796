package draft

import (
	"github.com/sergi/go-diff/diffmatchpatch"
)

type Edit struct {
	Op   string `json:"op"`
	Text string `json:"text"`
}

// Change describes one dirty field of a session.
type Change struct {
	Field FieldName `json:"field"`
	Old   any       `json:"old"`
	New   any       `json:"new"`
	// Edits is a character diff, only filled when both values are strings.
	Edits []Edit `json:"edits,omitempty"`
}

// Changes lists the dirty fields of s with their base and draft values.
// Fields set back to their original value are still reported.
func Changes(s *Session) []Change {
	base := s.Base()
	fields := s.Fields()

	dmp := diffmatchpatch.New()
	changes := make([]Change, 0)
	for _, name := range s.Dirty() {
		c := Change{
			Field: name,
			Old:   base[name],
			New:   fields[name],
		}

		oldStr, okOld := c.Old.(string)
		newStr, okNew := c.New.(string)
		if okOld && okNew {
			diffs := dmp.DiffMain(oldStr, newStr, false)
			diffs = dmp.DiffCleanupSemantic(diffs)
			for _, d := range diffs {
				c.Edits = append(c.Edits, Edit{Op: opName(d.Type), Text: d.Text})
			}
		}

		changes = append(changes, c)
	}
	return changes
}

func opName(op diffmatchpatch.Operation) string {
	switch op {
	case diffmatchpatch.DiffInsert:
		return "insert"
	case diffmatchpatch.DiffDelete:
		return "delete"
	default:
		return "equal"
	}
}
