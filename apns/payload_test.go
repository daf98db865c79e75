package apns

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
)

// jsonComparer unmarshals both sides before comparing, so key order in
// the rendered string (which is fixed by encoding/json's map sort, but
// irrelevant to the payload's meaning) never fails a test.
var jsonComparer = cmp.Transformer("JSON", func(in string) map[string]interface{} {
	var m map[string]interface{}
	if err := json.Unmarshal([]byte(in), &m); err != nil {
		return nil
	}
	return m
})

func TestPayloadHappyDeliverShape(t *testing.T) {
	assert := assert.New(t)

	p := NewPayload()
	p.SetAlert("hi")
	p.SetBadge(3)

	rendered, err := p.RenderJSON()
	assert.NoError(err)
	assert.Equal(`{"aps":{"alert":"hi","badge":3}}`, rendered)
}

func TestPayloadExtrasRoundTrip(t *testing.T) {
	assert := assert.New(t)

	p := NewPayload()
	assert.NoError(p.AddExtra("userId", "u42"))

	rendered, err := p.RenderJSON()
	assert.NoError(err)
	assert.Equal(`{"aps":{"badge":0},"userId":"u42"}`, rendered)
}

func TestPayloadBadgeOmittedWhenAlertOrSoundPresent(t *testing.T) {
	assert := assert.New(t)

	p := NewPayload()
	p.SetAlert("hi")
	rendered, err := p.RenderJSON()
	assert.NoError(err)

	var decoded map[string]interface{}
	assert.NoError(json.Unmarshal([]byte(rendered), &decoded))
	aps := decoded["aps"].(map[string]interface{})
	_, hasBadge := aps["badge"]
	assert.False(hasBadge, "badge should be omitted once alert is set and badge is zero")
}

func TestPayloadRejectsReservedExtraKey(t *testing.T) {
	assert := assert.New(t)

	p := NewPayload()
	err := p.AddExtra("aps", "nope")
	assert.ErrorIs(err, ErrReservedExtraKey)
}

func TestPayloadRenderIsCachedUntilMutated(t *testing.T) {
	assert := assert.New(t)

	p := NewPayload()
	p.SetAlert("hi")

	first, err := p.RenderJSON()
	assert.NoError(err)

	second, err := p.RenderJSON()
	assert.NoError(err)
	assert.Equal(first, second)

	p.SetBadge(9)
	third, err := p.RenderJSON()
	assert.NoError(err)
	if cmp.Diff(first, third, jsonComparer) == "" {
		t.Fatal("expected rendering to change after SetBadge mutated the payload")
	}
}
