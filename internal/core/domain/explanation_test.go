package domain

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExplanationMeta_Discriminant(t *testing.T) {
	det, err := json.Marshal(DeterministicMeta{Confidence: ConfidenceMedium, AISkipped: true})
	require.NoError(t, err)
	assert.JSONEq(t, `{"deterministic":true,"confidence":"medium","aiSkipped":true}`, string(det))

	ai, err := json.Marshal(AIMeta{Confidence: ConfidenceHigh, Model: "claude-3-5-haiku-latest"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"deterministic":false,"confidence":"high","model":"claude-3-5-haiku-latest"}`, string(ai))
}

func TestUnmarshalExplanationMeta(t *testing.T) {
	meta, err := UnmarshalExplanationMeta([]byte(`{"deterministic":true,"confidence":"low","strategy":"notice"}`))
	require.NoError(t, err)
	d, ok := meta.(DeterministicMeta)
	require.True(t, ok)
	assert.Equal(t, ConfidenceLow, d.ConfidenceLevel())
	assert.Equal(t, "notice", d.Strategy)

	meta, err = UnmarshalExplanationMeta([]byte(`{"deterministic":false,"confidence":"high","model":"gpt-4o-mini"}`))
	require.NoError(t, err)
	a, ok := meta.(AIMeta)
	require.True(t, ok)
	assert.False(t, a.IsDeterministic())
	assert.Equal(t, "gpt-4o-mini", a.Model)
}

func TestUnmarshalExplanationMeta_Invalid(t *testing.T) {
	meta, err := UnmarshalExplanationMeta(nil)
	assert.NoError(t, err)
	assert.Nil(t, meta)

	_, err = UnmarshalExplanationMeta([]byte(`{"confidence":"low"}`))
	assert.True(t, errors.Is(err, ErrInvalidInput))

	_, err = UnmarshalExplanationMeta([]byte(`not json`))
	assert.Error(t, err)
}

func TestExplanationBullets_JSONNames(t *testing.T) {
	data, err := json.Marshal(ExplanationBullets{
		WhatChanged:  []string{"a"},
		Requirements: []RequirementEntry{{Text: "Staff must log calls."}},
	})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"what_changed"`)
	assert.Contains(t, string(data), `"new_or_changed_requirements"`)
}
