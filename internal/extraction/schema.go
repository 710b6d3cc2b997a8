package extraction

import (
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Response-shape schemas. Anything the service sends that fails these is
// reported as an extraction failure rather than decoded into garbage.
const singleResponseSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["success"],
  "properties": {
    "success": {"type": "boolean"},
    "data": {"type": "object"},
    "message": {"type": "string"},
    "request_id": {"type": "string"}
  }
}`

const batchResponseSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["success", "results"],
  "properties": {
    "success": {"type": "boolean"},
    "results": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["filename", "success"],
        "properties": {
          "filename": {"type": "string"},
          "success": {"type": "boolean"},
          "data": {"type": "object"},
          "error": {"type": "string"},
          "processing_time_seconds": {"type": "number"}
        }
      }
    }
  }
}`

var (
	singleSchema = jsonschema.MustCompileString("single_response.json", singleResponseSchema)
	batchSchema  = jsonschema.MustCompileString("batch_response.json", batchResponseSchema)
)

func validateShape(schema *jsonschema.Schema, doc any) error {
	return schema.Validate(doc)
}

func shapeErrorReason(err error) string {
	msg := err.Error()
	if i := strings.IndexByte(msg, '\n'); i > 0 {
		msg = msg[:i]
	}
	return "unexpected response shape: " + msg
}
