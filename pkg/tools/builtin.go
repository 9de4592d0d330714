package tools

import (
	"context"
	"fmt"
	"time"

	"github.com/pario-ai/skillgate/pkg/models"
)

// builtin handles the tools that need no external executor.
func (v *Validator) builtin(ctx context.Context, tool string, params map[string]any) (any, error) {
	switch tool {
	case ToolCacheGet:
		if v.cache == nil {
			return nil, nil
		}
		key, _ := params["key"].(string)
		var val any
		found, err := v.cache.Get(ctx, key, &val)
		if err != nil || !found {
			return nil, err
		}
		return val, nil

	case ToolCacheSet:
		if v.cache == nil {
			return false, nil
		}
		key, _ := params["key"].(string)
		var err error
		if raw := params["ttl"]; raw != nil {
			var ttl time.Duration
			if ttl, err = ttlParam(raw); err != nil {
				return nil, err
			}
			err = v.cache.SetWithTTL(ctx, key, params["value"], models.CategoryExecution, ttl)
		} else {
			err = v.cache.Set(ctx, key, params["value"], models.CategoryExecution)
		}
		if err != nil {
			return nil, err
		}
		return true, nil

	case ToolGetPattern:
		id, _ := params["pattern_id"].(string)
		if v.peers == nil {
			return map[string]any{"pattern": id, "found": false}, nil
		}
		return v.peers.PeerRequest(ctx, "tools", "", "get_pattern", map[string]any{"pattern_id": id})

	case ToolPeerRequest:
		if v.peers == nil {
			return nil, fmt.Errorf("%w: %s", ErrNoHandler, tool)
		}
		from, _ := params["from_skill"].(string)
		to, _ := params["to_skill"].(string)
		typ, _ := params["request_type"].(string)
		payload, _ := params["payload"].(map[string]any)
		return v.peers.PeerRequest(ctx, from, to, typ, payload)
	}
	return nil, fmt.Errorf("%w: %s", ErrNoHandler, tool)
}

// ttlParam converts a seconds value into a duration. Zero means the entry
// never expires; negative values are rejected.
func ttlParam(v any) (time.Duration, error) {
	var secs float64
	switch n := v.(type) {
	case float64:
		secs = n
	case int:
		secs = float64(n)
	case int64:
		secs = float64(n)
	default:
		return 0, fmt.Errorf("ttl must be a number of seconds, got %T", v)
	}
	if secs < 0 {
		return 0, fmt.Errorf("ttl must not be negative, got %v", v)
	}
	return time.Duration(secs * float64(time.Second)), nil
}
