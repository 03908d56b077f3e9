// Robust JSON extraction and schema validation for raw policy output.
// Untyped data is normalized here, at the boundary; nothing downstream of
// this file ever sees an unvalidated action.
package negotiation

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/talgya/bazaar/internal/trade"
)

// MalformedActionError reports a structural parse failure: the raw output
// could not be converted into a well-formed NegotiationAction. Callers get
// exactly one resubmission before the fallback policy applies.
type MalformedActionError struct {
	Reason string
}

func (e *MalformedActionError) Error() string {
	return "malformed action: " + e.Reason
}

var (
	fenceRe       = regexp.MustCompile("(?s)```(?:json)?\\s*\\n?(.*?)\\n?\\s*```")
	trailingComma = regexp.MustCompile(`,\s*([}\]])`)
	unquotedKeyRe = regexp.MustCompile(`([{,])\s*(\w+)\s*:`)
)

// ExtractJSON pulls a JSON object out of text that may carry extra content.
// It tries, in order: direct parse, markdown code fences, the outermost
// brace span, and a heuristic repair of that span. Returns nil if nothing
// parses.
func ExtractJSON(text string) map[string]any {
	text = strings.TrimSpace(text)

	if obj := tryParse(text); obj != nil {
		return obj
	}

	for _, m := range fenceRe.FindAllStringSubmatch(text, -1) {
		if obj := tryParse(strings.TrimSpace(m[1])); obj != nil {
			return obj
		}
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end <= start {
		return nil
	}
	candidate := text[start : end+1]
	if obj := tryParse(candidate); obj != nil {
		return obj
	}
	return attemptRepair(candidate)
}

func tryParse(s string) map[string]any {
	var obj map[string]any
	if err := json.Unmarshal([]byte(s), &obj); err != nil {
		return nil
	}
	return obj
}

// attemptRepair applies best-effort fixups for common LLM JSON mistakes:
// single quotes, trailing commas, unquoted keys.
func attemptRepair(text string) map[string]any {
	s := strings.ReplaceAll(text, "'", `"`)
	s = trailingComma.ReplaceAllString(s, "$1")
	s = unquotedKeyRe.ReplaceAllString(s, `$1 "$2":`)
	return tryParse(s)
}

// ValidateActionJSON checks that obj conforms to the action schema and
// normalizes it in place: accept/reject prices are nulled, message fields
// are coerced to strings. Returns a MalformedActionError on failure.
func ValidateActionJSON(obj map[string]any) error {
	for _, key := range []string{"action", "offer_price", "message_public", "rationale_private"} {
		if _, ok := obj[key]; !ok {
			return &MalformedActionError{Reason: "missing required field: " + key}
		}
	}

	rawAction, ok := obj["action"].(string)
	if !ok || !trade.ActionType(rawAction).Valid() {
		return &MalformedActionError{
			Reason: fmt.Sprintf("invalid action %q: must be offer, counter, accept, or reject", obj["action"]),
		}
	}
	action := trade.ActionType(rawAction)

	price := obj["offer_price"]
	switch action {
	case trade.ActionOffer, trade.ActionCounter:
		num, ok := price.(float64)
		if !ok {
			return &MalformedActionError{
				Reason: fmt.Sprintf("offer_price must be numeric for action %q", action),
			}
		}
		if num <= 0 {
			return &MalformedActionError{Reason: "offer_price must be positive"}
		}
	case trade.ActionAccept, trade.ActionReject:
		if price != nil {
			obj["offer_price"] = nil
		}
	}

	if _, ok := obj["message_public"].(string); !ok {
		obj["message_public"] = fmt.Sprint(obj["message_public"])
	}
	if _, ok := obj["rationale_private"].(string); !ok {
		obj["rationale_private"] = fmt.Sprint(obj["rationale_private"])
	}

	return nil
}

// ToAction converts a validated JSON object into a NegotiationAction.
// Call ValidateActionJSON first.
func ToAction(obj map[string]any) trade.NegotiationAction {
	action := trade.NegotiationAction{
		Type:             trade.ActionType(obj["action"].(string)),
		MessagePublic:    obj["message_public"].(string),
		RationalePrivate: obj["rationale_private"].(string),
	}
	if num, ok := obj["offer_price"].(float64); ok {
		action.OfferPrice = &num
	}
	return action
}

// ParseAction is the full structural stage: extract, validate, convert.
func ParseAction(raw string) (trade.NegotiationAction, error) {
	obj := ExtractJSON(raw)
	if obj == nil {
		return trade.NegotiationAction{}, &MalformedActionError{Reason: "no JSON object found in output"}
	}
	if err := ValidateActionJSON(obj); err != nil {
		return trade.NegotiationAction{}, err
	}
	return ToAction(obj), nil
}
