package coordination

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/mitchellh/mapstructure"
)

// decoderHooks lets PatternConfig/PatternState decode RFC 3339 string
// timestamps and duration strings (e.g. "20ms") into time.Time/
// time.Duration fields (numeric durations decode without a hook),
// which tool.DecodeConfig's plain WeaklyTypedInput decoder does not
// attempt (pattern state is the only place in this module that persists
// timestamps inside an opaque map[string]any).
func decoderHooks() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToTimeHookFunc(time.RFC3339),
	)
}

func decodeMap(raw map[string]any, target any) error {
	if len(raw) == 0 {
		return nil
	}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           target,
		WeaklyTypedInput: true,
		TagName:          "mapstructure",
		DecodeHook:       decoderHooks(),
	})
	if err != nil {
		return fmt.Errorf("coordination: build decoder: %w", err)
	}
	return decoder.Decode(raw)
}

// decodeConfig decodes a Group's raw PatternConfig map into a typed
// pattern config struct.
func decodeConfig(raw map[string]any, target any) error {
	return decodeMap(raw, target)
}

// decodeState decodes a Group's raw PatternState map into a typed
// pattern state struct. Empty/nil state is left as target's zero value.
func decodeState(raw map[string]any, target any) error {
	return decodeMap(raw, target)
}

// encodeState round-trips a typed pattern state struct back into the
// map[string]any shape entity.Group.PatternState expects, via a JSON
// marshal/unmarshal pass (mirroring entity's own toJSON/fromJSON
// convention). Re-decoding that map later goes through decodeState's
// time-aware hooks, so the JSON string form of time.Time survives the
// round trip.
func encodeState(state any) (map[string]any, error) {
	data, err := json.Marshal(state)
	if err != nil {
		return nil, fmt.Errorf("coordination: encode state: %w", err)
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("coordination: encode state: %w", err)
	}
	return out, nil
}
