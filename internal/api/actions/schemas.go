package actions

const timestampRangeSchema = `{"type": "array", "items": {"type": "integer"}, "minItems": 2, "maxItems": 2}`

const sequenceCreateSchema = `{
  "type": "object",
  "properties": {
    "name": {"type": "string", "minLength": 1},
    "user_metadata": {"type": ["object", "null"]}
  },
  "required": ["name"]
}`

const nameSchema = `{
  "type": "object",
  "properties": {
    "name": {"type": "string", "minLength": 1}
  },
  "required": ["name"]
}`

const deleteSchema = `{
  "type": "object",
  "properties": {
    "name": {"type": "string", "minLength": 1},
    "allow_data_loss": {"const": true}
  },
  "required": ["name", "allow_data_loss"]
}`

const topicCreateSchema = `{
  "type": "object",
  "properties": {
    "name": {"type": "string", "minLength": 1},
    "sequence_key": {"type": "string", "minLength": 1},
    "serialization_format": {"type": "string"},
    "ontology_tag": {"type": "string"},
    "user_metadata": {"type": ["object", "null"]}
  },
  "required": ["name", "sequence_key", "serialization_format", "ontology_tag"]
}`

const querySchema = `{
  "type": "object",
  "properties": {
    "items": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "sequence": {"type": "string", "minLength": 1},
          "topic": {"type": "string"},
          "timestamp_range": ` + timestampRangeSchema + `
        },
        "required": ["sequence"]
      }
    }
  },
  "required": ["items"]
}`

const notifyCreateSchema = `{
  "type": "object",
  "properties": {
    "name": {"type": "string", "minLength": 1},
    "notify_type": {"type": "string", "enum": ["error", "upload_completed", "upload_failed", "deleted"]},
    "msg": {"type": ["string", "null"]}
  },
  "required": ["name", "notify_type"]
}`

const notifyListSchema = `{
  "type": "object",
  "properties": {
    "name": {"type": "string"}
  }
}`

const layerCreateSchema = `{
  "type": "object",
  "properties": {
    "name": {"type": "string", "minLength": 1},
    "description": {"type": "string"}
  },
  "required": ["name"]
}`

const layerListSchema = `{"type": "object"}`
