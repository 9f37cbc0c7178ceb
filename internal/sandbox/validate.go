package sandbox

import (
	"fmt"
	"strconv"

	"github.com/haasonsaas/toolmind/pkg/models"
)

// coerceArguments validates args against tool's declared parameters: missing
// required parameters and unknown-but-required arguments are rejected,
// numeric strings are coerced to numbers where the parameter declares
// ParamNumber, and declared types are checked. It returns a fresh map; the
// caller's args is left untouched.
func coerceArguments(tool *models.Tool, args map[string]any) (map[string]any, *ExecError) {
	declared := make(map[string]models.Parameter, len(tool.Parameters))
	for _, p := range tool.Parameters {
		declared[p.Name] = p
	}

	out := make(map[string]any, len(args))
	for name, value := range args {
		out[name] = value
	}

	for _, p := range tool.Parameters {
		value, present := out[p.Name]
		if !present {
			if p.Required {
				return nil, newExecError(BadArguments, fmt.Sprintf("missing required parameter %q", p.Name))
			}
			continue
		}
		coerced, err := coerceValue(p, value)
		if err != nil {
			return nil, err
		}
		out[p.Name] = coerced
	}

	for name := range out {
		if _, ok := declared[name]; !ok {
			return nil, newExecError(BadArguments, fmt.Sprintf("unknown argument %q", name))
		}
	}

	return out, nil
}

func coerceValue(p models.Parameter, value any) (any, *ExecError) {
	switch p.Type {
	case models.ParamNumber:
		switch v := value.(type) {
		case float64, int, int64:
			return v, nil
		case string:
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return nil, newExecError(BadArguments, fmt.Sprintf("parameter %q: %q is not numeric", p.Name, v))
			}
			return f, nil
		default:
			return nil, newExecError(BadArguments, fmt.Sprintf("parameter %q must be a number", p.Name))
		}
	case models.ParamBoolean:
		if _, ok := value.(bool); !ok {
			return nil, newExecError(BadArguments, fmt.Sprintf("parameter %q must be a boolean", p.Name))
		}
		return value, nil
	case models.ParamString:
		if _, ok := value.(string); !ok {
			return nil, newExecError(BadArguments, fmt.Sprintf("parameter %q must be a string", p.Name))
		}
		return value, nil
	case models.ParamArray:
		if _, ok := value.([]any); !ok {
			return nil, newExecError(BadArguments, fmt.Sprintf("parameter %q must be an array", p.Name))
		}
		return value, nil
	case models.ParamObject:
		if _, ok := value.(map[string]any); !ok {
			return nil, newExecError(BadArguments, fmt.Sprintf("parameter %q must be an object", p.Name))
		}
		return value, nil
	default:
		return value, nil
	}
}
