package schemaregistry

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

const recordV1 = `{"type":"record","name":"Widget","fields":[{"name":"id","type":"string"}]}`
const recordV2AddedFieldWithDefault = `{"type":"record","name":"Widget","fields":[{"name":"id","type":"string"},{"name":"weight","type":"long","default":0}]}`
const recordV2AddedFieldNoDefault = `{"type":"record","name":"Widget","fields":[{"name":"id","type":"string"},{"name":"weight","type":"long"}]}`
const recordV2RemovedField = `{"type":"record","name":"Widget","fields":[]}`

func TestChecker_AddingFieldWithDefaultIsBackwardCompatible(t *testing.T) {
	c := NewChecker()
	result := c.CheckBackward(recordV2AddedFieldWithDefault, recordV1)
	assert.True(t, result.Compatible, result.Messages)
}

func TestChecker_AddingFieldWithoutDefaultIsIncompatible(t *testing.T) {
	c := NewChecker()
	result := c.CheckBackward(recordV2AddedFieldNoDefault, recordV1)
	assert.False(t, result.Compatible)
}

func TestChecker_RemovingFieldIsCompatible(t *testing.T) {
	c := NewChecker()
	result := c.CheckBackward(recordV2RemovedField, recordV1)
	assert.True(t, result.Compatible, result.Messages)
}

func TestChecker_TypeMismatchIsIncompatible(t *testing.T) {
	c := NewChecker()
	result := c.CheckBackward(`{"type":"string"}`, `{"type":"record","name":"Widget","fields":[]}`)
	assert.False(t, result.Compatible)
}

func TestChecker_IntWidenedToLongIsCompatible(t *testing.T) {
	c := NewChecker()
	result := c.CheckBackward(`{"type":"long"}`, `{"type":"int"}`)
	assert.True(t, result.Compatible)
}

func TestChecker_InvalidSchemaIsIncompatible(t *testing.T) {
	c := NewChecker()
	result := c.CheckBackward(`not json`, recordV1)
	assert.False(t, result.Compatible)
}
