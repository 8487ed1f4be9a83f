package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAllowDataLoss(t *testing.T) {
	assert.NotNil(t, AllowDataLoss())
}

func TestNewTopic_Defaults(t *testing.T) {
	loc, err := NewTopicLocator("seq/topic")
	assert.NoError(t, err)
	topic := NewTopic(NewResourceID(), loc.WithRange(TimestampRange{1, 2}), "", "mock", nil)
	assert.Equal(t, DefaultSerializationFormat, topic.SerializationFormat)
	assert.Nil(t, topic.Locator.Range)
	assert.JSONEq(t, "{}", string(topic.UserMetadata))
	assert.False(t, topic.ID.IsZero())
}
