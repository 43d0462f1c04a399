package httpapi

import "github.com/santhosh-tekuri/jsonschema/v5"

// 提交运行的请求体 schema。gin 的 binding 只能做存在性校验，
// 网格这类嵌套结构交给 JSON Schema 把关。
const runRequestSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["symbol", "timeframe", "strategy"],
  "properties": {
    "symbol":    {"type": "string", "minLength": 1},
    "timeframe": {"type": "string", "pattern": "^[0-9]+[mhdw]$"},
    "strategy":  {"type": "string", "minLength": 1},
    "start_ts":  {"type": "integer", "minimum": 0},
    "end_ts":    {"type": "integer", "minimum": 0},
    "grid": {
      "type": "object",
      "minProperties": 1,
      "additionalProperties": {
        "type": "array",
        "minItems": 1,
        "items": {"type": "number"}
      }
    },
    "grid_file": {"type": "string"},
    "objective": {"enum": ["sharpe", "total_return", "profit_factor"]},
    "anchored":  {"type": "boolean"},
    "is_length":  {"type": "integer", "minimum": 1},
    "oos_length": {"type": "integer", "minimum": 1},
    "step":       {"type": "integer", "minimum": 1}
  },
  "anyOf": [
    {"required": ["grid"]},
    {"required": ["grid_file"]}
  ],
  "additionalProperties": false
}`

var compiledRunSchema = jsonschema.MustCompileString("run_request.json", runRequestSchema)
