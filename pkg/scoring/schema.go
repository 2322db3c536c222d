package scoring

import "encoding/json"

// SchemaName identifies the structured response format.
const SchemaName = "bullshit_analysis"

// responseSchema is the JSON schema every model reply must satisfy.
var responseSchema = json.RawMessage(`{
  "type": "object",
  "properties": {
    "score": {"type": "integer", "description": "Bullshit score from 0 to 100"},
    "buzzwords": {"type": "array", "items": {"type": "string"}, "description": "List of detected buzzwords and empty phrases"},
    "suggestions": {"type": "array", "items": {"type": "string"}, "description": "Concrete suggestions for improving the text"},
    "explanation": {"type": "string", "description": "Brief explanation of the score"}
  },
  "required": ["score", "buzzwords", "suggestions", "explanation"],
  "additionalProperties": false
}`)
