package config

import (
	"encoding/json"
	"reflect"
	"time"

	"github.com/Nephrolytics-ai/call-auditor/pkg/utils"
	"github.com/invopop/jsonschema"
)

var durationType = reflect.TypeOf(time.Duration(0))

// Schema returns the JSON Schema for callaudit.yaml. Keys follow the
// mapstructure tags so the schema matches what Load accepts.
func Schema() ([]byte, error) {
	reflector := jsonschema.Reflector{
		FieldNameTag:               "mapstructure",
		RequiredFromJSONSchemaTags: true,
		AllowAdditionalProperties:  false,
		DoNotReference:             true,
		Mapper: func(t reflect.Type) *jsonschema.Schema {
			if t == durationType {
				return &jsonschema.Schema{
					Type:        "string",
					Description: "Go duration, for example 30s or 5m",
				}
			}
			return nil
		},
	}

	schema := reflector.Reflect(&Config{})
	schema.Title = "callaudit configuration"

	out, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return nil, utils.WrapIfNotNil(err)
	}
	return out, nil
}
