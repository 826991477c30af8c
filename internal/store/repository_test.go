package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fluxbase-eu/criteria/internal/metadata"
)

func TestDistinctValues(t *testing.T) {
	records := []Record{
		{"id": int64(1)},
		{"id": int64(2)},
		{"id": int64(1)},
		{"id": nil},
		{},
	}
	assert.Equal(t, []interface{}{int64(1), int64(2)}, distinctValues(records, "id"))
	assert.Nil(t, distinctValues(nil, "id"))
}

func TestComparableKey(t *testing.T) {
	assert.Nil(t, comparableKey(nil))
	assert.Equal(t, "abc", comparableKey([]byte("abc")))
	assert.Equal(t, int64(5), comparableKey(int64(5)))
}

func TestAttach_HasMany(t *testing.T) {
	parents := []Record{
		{"id": int64(1)},
		{"id": int64(2)},
	}
	children := []Record{
		{"id": int64(10), "user_id": int64(1)},
		{"id": int64(11), "user_id": int64(1)},
		{"id": int64(12), "user_id": int64(99)},
	}
	rel := metadata.Relation{Name: "posts", Kind: metadata.HasMany, ForeignKey: "user_id"}

	attach(parents, children, rel, "id", "user_id")

	posts, ok := parents[0]["posts"].([]Record)
	require.True(t, ok)
	require.Len(t, posts, 2)
	assert.Equal(t, int64(10), posts[0]["id"])

	// A parent with no matches still gets an empty slice.
	posts, ok = parents[1]["posts"].([]Record)
	require.True(t, ok)
	assert.Empty(t, posts)
}

func TestAttach_HasOne(t *testing.T) {
	parents := []Record{
		{"id": int64(1)},
		{"id": int64(2)},
	}
	children := []Record{
		{"id": int64(7), "user_id": int64(1), "bio": "hi"},
	}
	rel := metadata.Relation{Name: "profile", Kind: metadata.HasOne, ForeignKey: "user_id"}

	attach(parents, children, rel, "id", "user_id")

	profile, ok := parents[0]["profile"].(Record)
	require.True(t, ok)
	assert.Equal(t, "hi", profile["bio"])
	assert.Nil(t, parents[1]["profile"])
}

func TestAttach_BelongsTo(t *testing.T) {
	parents := []Record{
		{"id": int64(1), "company_id": int64(5)},
		{"id": int64(2), "company_id": nil},
	}
	children := []Record{
		{"id": int64(5), "name": "acme"},
	}
	rel := metadata.Relation{Name: "company", Kind: metadata.BelongsTo, ForeignKey: "company_id"}

	attach(parents, children, rel, "company_id", "id")

	company, ok := parents[0]["company"].(Record)
	require.True(t, ok)
	assert.Equal(t, "acme", company["name"])

	// A null foreign key attaches nothing at all.
	_, present := parents[1]["company"]
	assert.False(t, present)
}

func TestAttach_ByteSliceKeys(t *testing.T) {
	parents := []Record{{"id": []byte("u1")}}
	children := []Record{{"user_id": []byte("u1"), "title": "post"}}
	rel := metadata.Relation{Name: "posts", Kind: metadata.HasMany, ForeignKey: "user_id"}

	attach(parents, children, rel, "id", "user_id")

	posts, ok := parents[0]["posts"].([]Record)
	require.True(t, ok)
	require.Len(t, posts, 1)
	assert.Equal(t, "post", posts[0]["title"])
}
