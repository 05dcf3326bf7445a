package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
)

func TestStringListDecodesLegacyString(t *testing.T) {
	raw, err := bson.Marshal(bson.M{"tags": "Audio, bluetooth ,audio,,"})
	require.NoError(t, err)

	var doc struct {
		Tags StringList `bson:"tags"`
	}
	require.NoError(t, bson.Unmarshal(raw, &doc))
	assert.Equal(t, StringList{"audio", "bluetooth"}, doc.Tags)
}

func TestStringListRoundTripsArray(t *testing.T) {
	raw, err := bson.Marshal(bson.M{"tags": []string{"a", "b"}})
	require.NoError(t, err)

	var doc struct {
		Tags StringList `bson:"tags"`
	}
	require.NoError(t, bson.Unmarshal(raw, &doc))
	assert.Equal(t, StringList{"a", "b"}, doc.Tags)
}

func TestNilStringListEncodesEmptyArray(t *testing.T) {
	raw, err := bson.Marshal(struct {
		Tags StringList `bson:"tags"`
	}{})
	require.NoError(t, err)

	var out bson.M
	require.NoError(t, bson.Unmarshal(raw, &out))
	tags, ok := out["tags"].(bson.A)
	require.True(t, ok, "tags should encode as an array")
	assert.Empty(t, tags)
}
