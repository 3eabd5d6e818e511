package export

import (
	"encoding/json"
	"fmt"

	"github.com/swaggest/jsonschema-go"
)

// DescriptorSchema returns the JSON Schemas of both descriptor documents,
// keyed by bundle file name.
func DescriptorSchema() (map[string]json.RawMessage, error) {
	r := jsonschema.Reflector{}
	out := make(map[string]json.RawMessage, 2)
	for name, v := range map[string]any{
		ComposeFile: ServiceDescriptor{},
		ConfigFile:  TopologyDescriptor{},
	} {
		s, err := r.Reflect(v, jsonschema.InlineRefs)
		if err != nil {
			return nil, fmt.Errorf("reflect %s schema: %w", name, err)
		}
		s.WithTitle(name)
		data, err := json.Marshal(s)
		if err != nil {
			return nil, fmt.Errorf("marshal %s schema: %w", name, err)
		}
		out[name] = data
	}
	return out, nil
}
