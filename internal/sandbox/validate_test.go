package sandbox

import (
	"testing"

	"github.com/haasonsaas/toolmind/pkg/models"
)

func toolWithParams(params ...models.Parameter) *models.Tool {
	return &models.Tool{ID: "t1", Name: "sample", Parameters: params, IsActive: true}
}

func TestCoerceArguments_MissingRequired(t *testing.T) {
	tool := toolWithParams(models.Parameter{Name: "x", Type: models.ParamNumber, Required: true})

	_, err := coerceArguments(tool, map[string]any{})
	if err == nil || err.Kind != BadArguments {
		t.Fatalf("expected BadArguments, got %v", err)
	}
}

func TestCoerceArguments_UnknownArgument(t *testing.T) {
	tool := toolWithParams(models.Parameter{Name: "x", Type: models.ParamString})

	_, err := coerceArguments(tool, map[string]any{"y": "oops"})
	if err == nil || err.Kind != BadArguments {
		t.Fatalf("expected BadArguments for unknown argument, got %v", err)
	}
}

func TestCoerceArguments_OptionalOmitted(t *testing.T) {
	tool := toolWithParams(models.Parameter{Name: "x", Type: models.ParamString, Required: false})

	out, err := coerceArguments(tool, map[string]any{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, present := out["x"]; present {
		t.Error("optional missing parameter should not appear in output")
	}
}

func TestCoerceArguments_DoesNotMutateInput(t *testing.T) {
	tool := toolWithParams(models.Parameter{Name: "x", Type: models.ParamNumber})
	in := map[string]any{"x": "3.5"}

	out, err := coerceArguments(tool, in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := in["x"].(string); !ok {
		t.Error("caller's map should be untouched")
	}
	if _, ok := out["x"].(float64); !ok {
		t.Error("output map should hold the coerced float64")
	}
}

func TestCoerceValue_Number(t *testing.T) {
	p := models.Parameter{Name: "n", Type: models.ParamNumber}

	if v, err := coerceValue(p, 3.0); err != nil || v != 3.0 {
		t.Errorf("float64 passthrough failed: v=%v err=%v", v, err)
	}
	if v, err := coerceValue(p, "42"); err != nil || v != 42.0 {
		t.Errorf("numeric string coercion failed: v=%v err=%v", v, err)
	}
	if _, err := coerceValue(p, "not-a-number"); err == nil {
		t.Error("expected error for non-numeric string")
	}
	if _, err := coerceValue(p, true); err == nil {
		t.Error("expected error for bool against number parameter")
	}
}

func TestCoerceValue_Boolean(t *testing.T) {
	p := models.Parameter{Name: "b", Type: models.ParamBoolean}
	if v, err := coerceValue(p, true); err != nil || v != true {
		t.Errorf("bool passthrough failed: v=%v err=%v", v, err)
	}
	if _, err := coerceValue(p, "true"); err == nil {
		t.Error("expected error for string against boolean parameter")
	}
}

func TestCoerceValue_StringArrayObject(t *testing.T) {
	if _, err := coerceValue(models.Parameter{Type: models.ParamString}, "hi"); err != nil {
		t.Errorf("string passthrough failed: %v", err)
	}
	if _, err := coerceValue(models.Parameter{Type: models.ParamString}, 5); err == nil {
		t.Error("expected error for non-string")
	}

	if _, err := coerceValue(models.Parameter{Type: models.ParamArray}, []any{1, 2}); err != nil {
		t.Errorf("array passthrough failed: %v", err)
	}
	if _, err := coerceValue(models.Parameter{Type: models.ParamArray}, "not-an-array"); err == nil {
		t.Error("expected error for non-array")
	}

	if _, err := coerceValue(models.Parameter{Type: models.ParamObject}, map[string]any{"a": 1}); err != nil {
		t.Errorf("object passthrough failed: %v", err)
	}
	if _, err := coerceValue(models.Parameter{Type: models.ParamObject}, []any{}); err == nil {
		t.Error("expected error for non-object")
	}
}
