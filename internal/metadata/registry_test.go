package metadata

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_Register(t *testing.T) {
	tests := []struct {
		name    string
		model   *Model
		wantErr bool
	}{
		{
			name:  "valid model",
			model: &Model{Name: "User", Table: "users", Columns: []string{"id"}},
		},
		{
			name:    "missing name",
			model:   &Model{Table: "users"},
			wantErr: true,
		},
		{
			name:    "invalid table name",
			model:   &Model{Name: "Evil", Table: `users"; --`},
			wantErr: true,
		},
		{
			name: "relation without target",
			model: &Model{
				Name:  "Post",
				Table: "posts",
				Relations: []Relation{
					{Name: "author", Kind: BelongsTo, ForeignKey: "user_id"},
				},
			},
			wantErr: true,
		},
		{
			name: "polymorphic relation needs no target",
			model: &Model{
				Name:  "Image",
				Table: "images",
				Relations: []Relation{
					{Name: "owner", Kind: MorphTo},
				},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewRegistry().Register(tt.model)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestRegistry_RegisterDefaultsAndDuplicates(t *testing.T) {
	reg := NewRegistry()

	m := &Model{Name: "User", Table: "users"}
	require.NoError(t, reg.Register(m))
	assert.Equal(t, "id", m.PrimaryKey)

	assert.Error(t, reg.Register(&Model{Name: "User", Table: "users"}))
}

func TestRegistry_Related(t *testing.T) {
	reg := NewRegistry()
	user := &Model{
		Name:  "User",
		Table: "users",
		Relations: []Relation{
			{Name: "posts", Target: "Post", Kind: HasMany, ForeignKey: "user_id"},
			{Name: "ghost", Target: "Unregistered", Kind: HasMany, ForeignKey: "user_id"},
			{Name: "avatar", Kind: MorphTo},
		},
	}
	require.NoError(t, reg.Register(user))
	require.NoError(t, reg.Register(&Model{Name: "Post", Table: "posts"}))

	related := reg.Related(user, "posts")
	require.NotNil(t, related)
	assert.Equal(t, "Post", related.Name)

	assert.Nil(t, reg.Related(user, "ghost"))
	assert.Nil(t, reg.Related(user, "avatar"))
	assert.Nil(t, reg.Related(user, "nope"))
}

func TestModel_Lookups(t *testing.T) {
	m := &Model{
		Name:    "User",
		Table:   "users",
		Columns: []string{"id", "name"},
		Relations: []Relation{
			{Name: "posts", Target: "Post", Kind: HasMany, ForeignKey: "user_id"},
		},
	}

	assert.True(t, m.HasColumn("name"))
	assert.False(t, m.HasColumn("posts"))

	rel, ok := m.Relation("posts")
	require.True(t, ok)
	assert.Equal(t, HasMany, rel.Kind)
	assert.False(t, rel.Polymorphic())

	_, ok = m.Relation("name")
	assert.False(t, ok)
}
