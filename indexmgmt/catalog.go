package indexmgmt

import (
	"fmt"
	"sync"

	"github.com/cespare/xxhash"

	"github.com/deltasync/deltasync/config"
)

type State byte

const (
	StateInvalid  State = 'I'
	StateUpdating State = 'U'
	StateValid    State = 'V'
)

func (s State) String() string {
	switch s {
	case StateInvalid:
		return "invalid"
	case StateUpdating:
		return "updating"
	case StateValid:
		return "valid"
	default:
		return "unknown"
	}
}

// Index is one (type_name, allowed_groups) tuple tracked by the registry.
// Each Index owns its own mutex, serializing transitions into updating and
// the rebuild body; the registry mutex only ever guards the map these
// entries live in.
type Index struct {
	URI           string
	Name          string
	TypeName      string
	AllowedGroups config.AllowedGroups
	UsedGroups    config.AllowedGroups

	mu    sync.Mutex
	state State
}

func (idx *Index) State() State {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	return idx.state
}

func (idx *Index) setState(s State) {
	idx.mu.Lock()
	idx.state = s
	idx.mu.Unlock()
}

// generateIndexName computes the deterministic index name as a hash over
// type_name and the canonical serialization of allowed_groups. It ignores
// used_groups, matching the behavior of the system this was distilled
// from — whether that omission was intentional or an oversight is unclear,
// so we preserve it rather than silently diverge.
func generateIndexName(typeName string, allowedGroups config.AllowedGroups) string {
	input := typeName + "\x00" + allowedGroups.Canonical()
	sum := xxhash.Sum64([]byte(input))
	return fmt.Sprintf("%s_%016x", typeName, sum)
}
