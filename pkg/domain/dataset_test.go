package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validDataset() Dataset {
	return Dataset{
		Scientists: []Scientist{{Base: Base{ID: 3}, Name: "Vera Rubin", FieldOfStudy: "Astronomy"}},
		Planets:    []Planet{{Base: Base{ID: 5}, Name: "Mars"}},
		Missions:   []Mission{{Base: Base{ID: 9}, Name: "Dust", ScientistID: 3, PlanetID: 5}},
	}
}

func TestDatasetValidate(t *testing.T) {
	require.NoError(t, validDataset().Validate())
	require.NoError(t, Dataset{}.Validate())

	cases := map[string]struct {
		mutate func(*Dataset)
		field  string
	}{
		"zero id":           {func(d *Dataset) { d.Planets[0].ID = 0 }, "id"},
		"duplicate id":      {func(d *Dataset) { d.Scientists = append(d.Scientists, d.Scientists[0]) }, "id"},
		"missing scientist": {func(d *Dataset) { d.Missions[0].ScientistID = 4 }, "scientist_id"},
		"missing planet":    {func(d *Dataset) { d.Planets = nil }, "planet_id"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			d := validDataset()
			tc.mutate(&d)
			err := d.Validate()
			require.True(t, errors.Is(err, ErrValidation), "got %v", err)
			var verr ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Equal(t, tc.field, verr.Field)
		})
	}
}

func TestDatasetChangesListParentsFirst(t *testing.T) {
	changes := validDataset().Changes()
	require.Len(t, changes, 3)
	assert.Equal(t, []EntityType{EntityScientist, EntityPlanet, EntityMission},
		[]EntityType{changes[0].Entity, changes[1].Entity, changes[2].Entity})
	for _, c := range changes {
		assert.Equal(t, ActionCreate, c.Action)
		assert.Nil(t, c.Before)
	}
}
