package negotiation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/bazaar/internal/trade"
)

func TestExtractJSONDirect(t *testing.T) {
	obj := ExtractJSON(`{"action": "offer", "offer_price": 75.5, "message_public": "hi", "rationale_private": "r"}`)
	require.NotNil(t, obj)
	assert.Equal(t, "offer", obj["action"])
	assert.Equal(t, 75.5, obj["offer_price"])
}

func TestExtractJSONCodeFence(t *testing.T) {
	raw := "Sure, here is my move:\n```json\n{\"action\": \"accept\", \"offer_price\": null, \"message_public\": \"deal\", \"rationale_private\": \"good price\"}\n```\nLet me know."
	obj := ExtractJSON(raw)
	require.NotNil(t, obj)
	assert.Equal(t, "accept", obj["action"])
}

func TestExtractJSONBraceSpan(t *testing.T) {
	raw := `I think {"action": "counter", "offer_price": 90, "message_public": "how about this", "rationale_private": "mid"} works`
	obj := ExtractJSON(raw)
	require.NotNil(t, obj)
	assert.Equal(t, "counter", obj["action"])
}

func TestExtractJSONRepairsSingleQuotesAndTrailingComma(t *testing.T) {
	raw := `{'action': 'reject', 'offer_price': null, 'message_public': 'no', 'rationale_private': 'too high',}`
	obj := ExtractJSON(raw)
	require.NotNil(t, obj)
	assert.Equal(t, "reject", obj["action"])
}

func TestExtractJSONNothingThere(t *testing.T) {
	assert.Nil(t, ExtractJSON("I refuse to answer in the requested format."))
}

func TestValidateActionJSONMissingField(t *testing.T) {
	obj := map[string]any{"action": "offer", "offer_price": 50.0}
	err := ValidateActionJSON(obj)
	require.Error(t, err)
	var malformed *MalformedActionError
	assert.ErrorAs(t, err, &malformed)
}

func TestValidateActionJSONUnknownAction(t *testing.T) {
	obj := map[string]any{
		"action": "haggle", "offer_price": 50.0,
		"message_public": "m", "rationale_private": "r",
	}
	assert.Error(t, ValidateActionJSON(obj))
}

func TestValidateActionJSONOfferNeedsPrice(t *testing.T) {
	obj := map[string]any{
		"action": "offer", "offer_price": nil,
		"message_public": "m", "rationale_private": "r",
	}
	assert.Error(t, ValidateActionJSON(obj))
}

func TestValidateActionJSONNegativePrice(t *testing.T) {
	obj := map[string]any{
		"action": "counter", "offer_price": -10.0,
		"message_public": "m", "rationale_private": "r",
	}
	assert.Error(t, ValidateActionJSON(obj))
}

func TestValidateActionJSONAcceptPriceNulled(t *testing.T) {
	obj := map[string]any{
		"action": "accept", "offer_price": 88.0,
		"message_public": "m", "rationale_private": "r",
	}
	require.NoError(t, ValidateActionJSON(obj))
	assert.Nil(t, obj["offer_price"])
}

func TestValidateActionJSONCoercesMessageFields(t *testing.T) {
	obj := map[string]any{
		"action": "reject", "offer_price": nil,
		"message_public": 42.0, "rationale_private": nil,
	}
	require.NoError(t, ValidateActionJSON(obj))
	assert.IsType(t, "", obj["message_public"])
	assert.IsType(t, "", obj["rationale_private"])
}

func TestParseActionRoundTrip(t *testing.T) {
	action, err := ParseAction(`{"action": "offer", "offer_price": 60, "message_public": "opening", "rationale_private": "start low"}`)
	require.NoError(t, err)
	assert.Equal(t, trade.ActionOffer, action.Type)
	require.NotNil(t, action.OfferPrice)
	assert.Equal(t, 60.0, *action.OfferPrice)
	assert.Equal(t, "opening", action.MessagePublic)
}
