//go:build integration

package db

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/udisondev/portalgraph/internal/level"
	"github.com/udisondev/portalgraph/internal/zone"
)

func TestLevelRepository_SaveLoad(t *testing.T) {
	repo := NewLevelRepository(setupTestDB(t))
	ctx := context.Background()

	def, err := level.Load("../level/testdata/house.yaml")
	require.NoError(t, err)

	require.NoError(t, repo.Save(ctx, def))

	got, err := repo.Load(ctx, "house")
	require.NoError(t, err)
	assert.Equal(t, def, got)

	// a stored definition builds like the file it came from
	m := zone.NewManager()
	lvl, err := level.Build(got, m)
	require.NoError(t, err)
	assert.Equal(t, zone.ID(4), lvl.Zones["cellar"])
}

func TestLevelRepository_SaveReplaces(t *testing.T) {
	repo := NewLevelRepository(setupTestDB(t))
	ctx := context.Background()

	def := &level.Definition{
		Name: "yard",
		Zones: []level.ZoneDef{
			{Name: "shed", Min: level.Vec3{0, 0, 0}, Max: level.Vec3{2, 2, 2}},
			{Name: "barn", Min: level.Vec3{4, 0, 0}, Max: level.Vec3{8, 4, 4}},
		},
	}
	require.NoError(t, repo.Save(ctx, def))

	def.Zones = def.Zones[:1]
	require.NoError(t, repo.Save(ctx, def))

	got, err := repo.Load(ctx, "yard")
	require.NoError(t, err)
	require.Len(t, got.Zones, 1)
	assert.Equal(t, "shed", got.Zones[0].Name)
}

func TestLevelRepository_ListDelete(t *testing.T) {
	repo := NewLevelRepository(setupTestDB(t))
	ctx := context.Background()

	for _, name := range []string{"b", "a"} {
		require.NoError(t, repo.Save(ctx, &level.Definition{Name: name}))
	}

	names, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, names)

	require.NoError(t, repo.Delete(ctx, "a"))
	require.ErrorIs(t, repo.Delete(ctx, "a"), ErrLevelNotFound)

	_, err = repo.Load(ctx, "a")
	require.ErrorIs(t, err, ErrLevelNotFound)
}

func TestLevelRepository_RejectsInvalid(t *testing.T) {
	repo := NewLevelRepository(setupTestDB(t))

	err := repo.Save(context.Background(), &level.Definition{
		Name:    "broken",
		Portals: []level.PortalDef{{Name: "p", Zones: []string{"nowhere"}}},
	})
	require.Error(t, err)

	names, err := repo.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, names)
}
