package domain

import "fmt"

// Dataset is the complete content of the three tables, each ordered by id.
// Restore writes it back with the ids it carries.
type Dataset struct {
	Scientists []Scientist `json:"scientists"`
	Planets    []Planet    `json:"planets"`
	Missions   []Mission   `json:"missions"`
}

// Validate rejects non-positive or repeated ids and missions whose parents are
// not part of the dataset.
func (d Dataset) Validate() error {
	scientists := make(map[int64]struct{}, len(d.Scientists))
	for _, sc := range d.Scientists {
		if err := checkRestoredID(EntityScientist, sc.ID, scientists); err != nil {
			return err
		}
	}
	planets := make(map[int64]struct{}, len(d.Planets))
	for _, p := range d.Planets {
		if err := checkRestoredID(EntityPlanet, p.ID, planets); err != nil {
			return err
		}
	}
	missions := make(map[int64]struct{}, len(d.Missions))
	for _, m := range d.Missions {
		if err := checkRestoredID(EntityMission, m.ID, missions); err != nil {
			return err
		}
		if _, ok := scientists[m.ScientistID]; !ok {
			return ValidationError{Entity: EntityMission, Field: "scientist_id", Message: fmt.Sprintf("scientist %d does not exist", m.ScientistID)}
		}
		if _, ok := planets[m.PlanetID]; !ok {
			return ValidationError{Entity: EntityMission, Field: "planet_id", Message: fmt.Sprintf("planet %d does not exist", m.PlanetID)}
		}
	}
	return nil
}

func checkRestoredID(entity EntityType, id int64, seen map[int64]struct{}) error {
	if id <= 0 {
		return ValidationError{Entity: entity, Field: "id", Message: fmt.Sprintf("invalid id %d", id)}
	}
	if _, dup := seen[id]; dup {
		return ValidationError{Entity: entity, Field: "id", Message: fmt.Sprintf("duplicate id %d", id)}
	}
	seen[id] = struct{}{}
	return nil
}

// Changes lists one create change per record, parents first, so restored data
// passes through the same rules as data written by the API.
func (d Dataset) Changes() []Change {
	changes := make([]Change, 0, len(d.Scientists)+len(d.Planets)+len(d.Missions))
	for _, sc := range d.Scientists {
		changes = append(changes, Change{Entity: EntityScientist, Action: ActionCreate, After: sc})
	}
	for _, p := range d.Planets {
		changes = append(changes, Change{Entity: EntityPlanet, Action: ActionCreate, After: p})
	}
	for _, m := range d.Missions {
		changes = append(changes, Change{Entity: EntityMission, Action: ActionCreate, After: m})
	}
	return changes
}
