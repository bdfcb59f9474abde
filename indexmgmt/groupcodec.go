package indexmgmt

import (
	"encoding/json"

	"github.com/deltasync/deltasync/config"
)

// encodeGroup/decodeGroup implement the JSON-encoded group descriptor
// literals the catalog persists allowed/used groups as.
func encodeGroup(g config.AllowedGroup) string {
	data, err := json.Marshal(g)
	if err != nil {
		return ""
	}
	return string(data)
}

func decodeGroup(literal string) (config.AllowedGroup, error) {
	var g config.AllowedGroup
	err := json.Unmarshal([]byte(literal), &g)
	return g, err
}
