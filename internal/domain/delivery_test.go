package domain_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/intake-qa-agent/internal/domain"
)

func TestDecodeDelivery_NotAnObject(t *testing.T) {
	t.Parallel()
	for _, body := range []string{`[]`, `"hello"`, `42`, `not json at all`, ``} {
		_, err := domain.DecodeDelivery([]byte(body))
		require.Error(t, err, "body=%q", body)
		assert.ErrorIs(t, err, domain.ErrInvalidArgument)
	}
}

func TestDecodeDelivery_EnvelopeAliases(t *testing.T) {
	t.Parallel()
	body := []byte(`{
		"ActivityEventName": "IntakeApplication",
		"ActivityEvent": 210,
		"ProspectActivityId": "act-1",
		"RelatedProspectId": "lead-9",
		"CreatedOn": "2026-08-01 10:00:00",
		"Current": {"mx_Program": "BSc CS"}
	}`)
	d, err := domain.DecodeDelivery(body)
	require.NoError(t, err)
	assert.Equal(t, "IntakeApplication", d.EventName)
	assert.Equal(t, "210", d.EventCode, "numeric code coerces to string")
	assert.Equal(t, "act-1", d.ActivityID)
	assert.Equal(t, "lead-9", d.LeadID)
	assert.Equal(t, "2026-08-01 10:00:00", d.CreatedOn)
	assert.Equal(t, 6, d.KeyCount)
	require.NotNil(t, d.Current)
	assert.Equal(t, "BSc CS", d.Current["mx_Program"])
}

func TestDecodeDelivery_LegacyAliases(t *testing.T) {
	t.Parallel()
	body := []byte(`{"EventName": "ping", "ActivityId": 77, "ProspectId": "p-1"}`)
	d, err := domain.DecodeDelivery(body)
	require.NoError(t, err)
	assert.Equal(t, "ping", d.EventName)
	assert.Equal(t, "77", d.ActivityID)
	assert.Equal(t, "p-1", d.LeadID)
}

func TestDecodeDelivery_ContainerWrongShape(t *testing.T) {
	t.Parallel()
	// A container that is not an object is treated as present-but-empty so
	// classification lands on the empty-payload path, not an error.
	d, err := domain.DecodeDelivery([]byte(`{"Current": "oops", "Data": null}`))
	require.NoError(t, err)
	assert.True(t, d.HasContainer())
	assert.True(t, d.ContainersEmpty())
}

func TestDecodeDelivery_NoContainers(t *testing.T) {
	t.Parallel()
	d, err := domain.DecodeDelivery([]byte(`{"ActivityEventName": "ping"}`))
	require.NoError(t, err)
	assert.False(t, d.HasContainer())
	assert.Equal(t, 1, d.KeyCount)
}

func TestScalarString(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name string
		in   any
		want string
	}{
		{"string", "  hi  ", "hi"},
		{"whole float", float64(210), "210"},
		{"fractional float", 3.5, "3.5"},
		{"bool", true, "true"},
		{"nil", nil, ""},
		{"object", map[string]any{"a": 1}, ""},
		{"list", []any{"a"}, ""},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.want, domain.ScalarString(c.in))
		})
	}
}
