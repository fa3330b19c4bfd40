package hostlink

import (
	"bytes"
	"encoding/json"
	"fmt"

	"mackiebridge/internal/host"
)

// DecodeObservations parses one inbound frame: a single observation object
// or an array of them.
func DecodeObservations(data []byte) ([]host.Observation, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, fmt.Errorf("empty message")
	}

	if data[0] == '[' {
		var list []host.Observation
		if err := json.Unmarshal(data, &list); err != nil {
			return nil, fmt.Errorf("decode observation list: %w", err)
		}
		for i, o := range list {
			if err := validate(o); err != nil {
				return nil, fmt.Errorf("observation %d: %w", i, err)
			}
		}
		return list, nil
	}

	var o host.Observation
	if err := json.Unmarshal(data, &o); err != nil {
		return nil, fmt.Errorf("decode observation: %w", err)
	}
	if err := validate(o); err != nil {
		return nil, err
	}
	return []host.Observation{o}, nil
}

func validate(o host.Observation) error {
	switch o.Type {
	case host.ObserveValue:
		if o.Path == "" {
			return fmt.Errorf("value observation without path")
		}
	case host.ObserveBank:
		if o.Bank == "" {
			return fmt.Errorf("bank observation without bank name")
		}
	default:
		return fmt.Errorf("unknown observation type %q", o.Type)
	}
	return nil
}
