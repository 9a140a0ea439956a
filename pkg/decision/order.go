package decision

import "sort"

// sortCloseFirst stably reorders a batch so close_* actions apply
// before open_* actions, matching the teacher's close-before-open
// priority so a same-cycle close frees margin/position slots an open
// in the same batch might need.
func sortCloseFirst(actions []Action) []Action {
	out := make([]Action, len(actions))
	copy(out, actions)
	sort.SliceStable(out, func(i, j int) bool {
		return priority(out[i].Kind) < priority(out[j].Kind)
	})
	return out
}

func priority(kind ActionKind) int {
	switch kind {
	case ActionCloseLong, ActionCloseShort:
		return 0
	case ActionOpenLong, ActionOpenShort:
		return 1
	default:
		return 2
	}
}

// capOpens limits the number of open_* actions in a batch to
// batchSize; the teacher keeps every non-open action and the first
// batchSize open actions encountered in list order, so the excess is
// dropped deterministically rather than chosen arbitrarily.
func capOpens(actions []Action, batchSize int) (kept []Action, droppedOpens int) {
	if batchSize <= 0 {
		kept = make([]Action, 0, len(actions))
		for _, a := range actions {
			if a.Kind != ActionOpenLong && a.Kind != ActionOpenShort {
				kept = append(kept, a)
			} else {
				droppedOpens++
			}
		}
		return kept, droppedOpens
	}
	opens := 0
	kept = make([]Action, 0, len(actions))
	for _, a := range actions {
		if a.Kind == ActionOpenLong || a.Kind == ActionOpenShort {
			if opens >= batchSize {
				droppedOpens++
				continue
			}
			opens++
		}
		kept = append(kept, a)
	}
	return kept, droppedOpens
}
