package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aliskhannn/bg-remover/internal/errs"
)

func TestOrderRef(t *testing.T) {
	r := OrderRef{OrderID: "42", Owner: "u1"}

	assert.True(t, r.Valid())
	assert.Equal(t, "users/u1/orders/42", r.Path())
	assert.False(t, OrderRef{OrderID: "42"}.Valid())
	assert.False(t, OrderRef{Owner: "u1"}.Valid())
}

func TestPrivateImagePath(t *testing.T) {
	assert.Equal(t, "users/u1/private_images/42", PrivateImagePath("u1", "42"))
}

func TestStateIsTerminal(t *testing.T) {
	assert.False(t, StatePending.IsTerminal())
	assert.True(t, StateSuccess.IsTerminal())
	assert.True(t, StateError.IsTerminal())
}

func TestOutcomeStates(t *testing.T) {
	var o Outcome = Success{WatermarkURL: "w", ThumbnailURL: "t"}
	assert.Equal(t, StateSuccess, o.State())

	o = Failure{Diagnostic: "d"}
	assert.Equal(t, StateError, o.State())
}

func TestOrderEventJSON(t *testing.T) {
	raw := `{"orderId":"42","owner":"u1","order":{"userId":"u1","originalURL":"https://x/img.jpg","fileName":"cat"}}`

	var ev OrderEvent
	require.NoError(t, json.Unmarshal([]byte(raw), &ev))

	assert.Equal(t, OrderRef{OrderID: "42", Owner: "u1"}, ev.Ref())
	assert.Equal(t, "https://x/img.jpg", ev.Order.OriginalURL)
	assert.NoError(t, ev.Order.Validate())
}

func TestValidateListsMissingFields(t *testing.T) {
	err := OrderPayload{OriginalURL: "https://x/a"}.Validate()

	require.ErrorIs(t, err, errs.ErrMissingField)
	assert.Contains(t, err.Error(), "userId, fileName")
}
