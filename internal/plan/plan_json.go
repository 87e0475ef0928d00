package plan

import (
	"encoding/json"
	"fmt"

	"github.com/doomsbay/flowkit/internal/registry"
)

type jsonStep struct {
	Op   string                 `json:"op"`
	Args map[string]interface{} `json:"args"`
}

type jsonPlan struct {
	Steps []jsonStep `json:"steps"`
}

// ToJSON renders the plan in the normalized {"steps":[{"op","args"}]} form
// from spec §6.
func (p *Plan) ToJSON() ([]byte, error) {
	jp := jsonPlan{Steps: make([]jsonStep, len(p.Nodes))}
	for i, n := range p.Nodes {
		jp.Steps[i] = jsonStep{Op: n.OpName, Args: argsToJSON(n.Args)}
	}
	return json.Marshal(jp)
}

// FromJSON parses a plan recipe. It does not validate or infer schema;
// call Validate/InferSchema afterward.
func FromJSON(data []byte) (*Plan, error) {
	var jp jsonPlan
	if err := json.Unmarshal(data, &jp); err != nil {
		return nil, fmt.Errorf("plan: bad JSON: %w", err)
	}
	p := New()
	for _, step := range jp.Steps {
		if step.Op == "" {
			return nil, fmt.Errorf("plan: step missing op name")
		}
		p.AddNode(step.Op, argsFromJSON(step.Args))
	}
	return p, nil
}

func argsToJSON(a registry.Args) map[string]interface{} {
	out := make(map[string]interface{}, len(a))
	for k, v := range a {
		out[k] = argValueToJSON(v)
	}
	return out
}

func argValueToJSON(v registry.ArgValue) interface{} {
	switch v.Kind {
	case registry.ArgString:
		return v.Str
	case registry.ArgNumber:
		return v.Num
	case registry.ArgBool:
		return v.Bool
	case registry.ArgArray:
		out := make([]interface{}, len(v.Array))
		for i, e := range v.Array {
			out[i] = argValueToJSON(e)
		}
		return out
	case registry.ArgObject:
		out := make(map[string]interface{}, len(v.Object))
		for k, e := range v.Object {
			out[k] = argValueToJSON(e)
		}
		return out
	default:
		return nil
	}
}

func argsFromJSON(m map[string]interface{}) registry.Args {
	out := make(registry.Args, len(m))
	for k, v := range m {
		out[k] = anyToArgValue(v)
	}
	return out
}

func anyToArgValue(v interface{}) registry.ArgValue {
	switch t := v.(type) {
	case string:
		return registry.ArgValue{Kind: registry.ArgString, Str: t}
	case float64:
		return registry.ArgValue{Kind: registry.ArgNumber, Num: t}
	case bool:
		return registry.ArgValue{Kind: registry.ArgBool, Bool: t}
	case []interface{}:
		arr := make([]registry.ArgValue, len(t))
		for i, e := range t {
			arr[i] = anyToArgValue(e)
		}
		return registry.ArgValue{Kind: registry.ArgArray, Array: arr}
	case map[string]interface{}:
		obj := make(map[string]registry.ArgValue, len(t))
		for k, e := range t {
			obj[k] = anyToArgValue(e)
		}
		return registry.ArgValue{Kind: registry.ArgObject, Object: obj}
	default:
		return registry.ArgValue{Kind: registry.ArgNull}
	}
}
