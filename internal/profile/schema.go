package profile

// schemaJSON constrains layout profile files after YAML decoding.
const schemaJSON = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "additionalProperties": false,
  "properties": {
    "name": {"type": "string", "maxLength": 120},
    "residential_row_threshold": {"type": "integer", "minimum": 0, "maximum": 10000},
    "keep_unmapped": {"type": "boolean"},
    "priority_columns": {
      "type": "array",
      "items": {"type": "string", "pattern": "^[a-z][a-z0-9_]*$", "maxLength": 64},
      "uniqueItems": true
    },
    "trigger_labels": {
      "type": "array",
      "items": {"type": "string", "minLength": 1, "maxLength": 120}
    },
    "extra_labels": {
      "type": "array",
      "items": {
        "type": "object",
        "additionalProperties": false,
        "required": ["key", "spellings"],
        "properties": {
          "key": {"$ref": "#/definitions/key"},
          "spellings": {
            "type": "array",
            "minItems": 1,
            "items": {"type": "string", "minLength": 1, "maxLength": 120}
          },
          "duplicated_section": {"type": "boolean"}
        }
      }
    }
  },
  "definitions": {
    "key": {
      "type": "string",
      "pattern": "^[a-z][a-z0-9_]*$",
      "maxLength": 64,
      "not": {"enum": ["source_id", "record_index", "extracted_at", "extraction_error"]}
    }
  }
}`
