package c2dm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMessageFormValues(t *testing.T) {
	assert := assert.New(t)

	m := NewMessage("reg-123")
	m.CollapseKey = "update"
	m.DelayWhileIdle = true
	m.AddParam("badge", "3")

	values := m.formValues()
	assert.Equal("reg-123", values.Get("registration_id"))
	assert.Equal("update", values.Get("collapse_key"))
	assert.Equal("1", values.Get("delay_while_idle"))
	assert.Equal("3", values.Get("data.badge"))
}

func TestMessageFormValuesOmitsUnsetFields(t *testing.T) {
	assert := assert.New(t)

	m := NewMessage("reg-123")
	values := m.formValues()
	assert.Empty(values.Get("collapse_key"))
	assert.Empty(values.Get("delay_while_idle"))
}
