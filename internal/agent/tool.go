package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/invopop/jsonschema"
	"github.com/mitchellh/mapstructure"
)

// ErrInvalidArguments marks arguments that do not fit a tool's schema.
var ErrInvalidArguments = errors.New("invalid tool arguments")

var argValidator = func() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}()

// NewTool defines a tool whose arguments are the struct type A.
//
// Fields are matched by their json tag. Values are weakly coerced ("3" → 3),
// unknown keys are rejected and `validate` tags are enforced. Missing keys
// keep the value from defaults. The parameters schema shown to the model is
// reflected from A.
func NewTool[A any](name, description string, defaults A, run func(ctx context.Context, args A) (json.RawMessage, error)) ToolSpec {
	return ToolSpec{
		Name:        name,
		Description: description,
		Parameters:  schemaFor(defaults),
		Handler: func(ctx context.Context, raw map[string]any) (json.RawMessage, error) {
			args := defaults
			if err := decodeArgs(raw, &args); err != nil {
				return nil, err
			}
			return run(ctx, args)
		},
	}
}

func decodeArgs(raw map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		TagName:          "json",
		ErrorUnused:      true,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidArguments, err)
	}
	if err := dec.Decode(raw); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidArguments, err)
	}
	if err := argValidator.Struct(out); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
			}
			return fmt.Errorf("%w: %s", ErrInvalidArguments, strings.Join(fields, "; "))
		}
		return fmt.Errorf("%w: %v", ErrInvalidArguments, err)
	}
	return nil
}

func schemaFor(v any) string {
	r := &jsonschema.Reflector{
		Anonymous:      true,
		DoNotReference: true,
		ExpandedStruct: true,
	}
	s := r.Reflect(v)
	s.Version = ""
	b, err := json.Marshal(s)
	if err != nil {
		return `{"type":"object"}`
	}
	return string(b)
}
