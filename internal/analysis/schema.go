package analysis

import (
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/tidwall/gjson"
)

// planSchema mirrors the wire contract of the decision summarization
// capability. Fields may be absent (the validator supplies defaults)
// but a present field with the wrong type rejects the payload.
const planSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "properties": {
    "decision": {"enum": ["buy", "sell", "hold"]},
    "horizon": {"enum": ["scalp", "intraday", "1-3d", "swing"]},
    "rationale": {"type": "array", "items": {"type": "string"}},
    "levels": {
      "type": "object",
      "properties": {
        "entry": {"type": "number"},
        "sl": {"type": "number"},
        "tp": {"type": "array", "items": {"type": "number"}},
        "sr": {
          "type": "object",
          "properties": {
            "support": {"type": "array", "items": {"type": "number"}},
            "resistance": {"type": "array", "items": {"type": "number"}}
          }
        }
      }
    },
    "orderbook": {
      "type": "object",
      "properties": {
        "spread": {"type": ["number", "null"]},
        "imbalance": {"type": ["number", "null"]},
        "pressure": {"enum": ["bid", "ask", "neutral"]},
        "levels": {
          "type": "array",
          "items": {
            "type": "object",
            "properties": {
              "price": {"type": "number"},
              "bid": {"type": "number"},
              "ask": {"type": "number"}
            },
            "required": ["price"]
          }
        }
      }
    },
    "extracted": {
      "type": "object",
      "properties": {
        "ticker": {"type": ["string", "null"]},
        "market": {"enum": ["JP", "US", "CRYPTO"]},
        "timeframe": {"type": ["string", "null"]},
        "uiSource": {"type": "string"}
      }
    },
    "confidence": {"type": "number"},
    "notes": {"type": "array", "items": {"type": "string"}},
    "scenarios": {"type": "object"}
  }
}`

var compiledPlanSchema = jsonschema.MustCompileString("plan.schema.json", planSchema)

// CheckPlanShape validates raw decision JSON against the wire schema.
// A failure routes the caller to the stub path rather than feeding a
// structurally broken object into validation.
func CheckPlanShape(raw string) error {
	var doc any
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return fmt.Errorf("decision json invalid: %w", err)
	}
	if err := compiledPlanSchema.Validate(doc); err != nil {
		return fmt.Errorf("decision json failed schema check: %w", err)
	}
	return nil
}

// Meaningful reports whether a decision payload carries anything beyond
// empty defaults. Providers occasionally return a syntactically valid
// but hollow object; those trigger failover to the next provider.
func Meaningful(raw string) bool {
	if !gjson.Valid(raw) {
		return false
	}
	doc := gjson.Parse(raw)
	if !doc.IsObject() {
		return false
	}
	switch doc.Get("decision").String() {
	case DecisionBuy, DecisionSell:
		return true
	}
	levels := doc.Get("levels")
	if levels.Get("entry").Type == gjson.Number || levels.Get("sl").Type == gjson.Number {
		return true
	}
	if tp := levels.Get("tp"); tp.IsArray() && len(tp.Array()) > 0 {
		return true
	}
	if sc := doc.Get("scenarios"); sc.IsObject() && len(sc.Map()) > 0 {
		return true
	}
	if r := doc.Get("rationale"); r.IsArray() && len(r.Array()) > 0 {
		return true
	}
	if lv := doc.Get("orderbook.levels"); lv.IsArray() && len(lv.Array()) > 0 {
		return true
	}
	if s := levels.Get("sr.support"); s.IsArray() && len(s.Array()) > 0 {
		return true
	}
	if r := levels.Get("sr.resistance"); r.IsArray() && len(r.Array()) > 0 {
		return true
	}
	ex := doc.Get("extracted")
	if ex.Get("ticker").String() != "" || ex.Get("timeframe").String() != "" {
		return true
	}
	return false
}

// DecodeObject parses raw JSON into a loosely-typed map for the
// coercion layer. Invalid JSON yields an empty map, matching the
// fail-safe posture of the rest of the package.
func DecodeObject(raw string) map[string]any {
	var out map[string]any
	if err := json.Unmarshal([]byte(raw), &out); err != nil || out == nil {
		return map[string]any{}
	}
	return out
}
