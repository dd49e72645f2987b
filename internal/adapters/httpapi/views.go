package httpapi

import "astrocore/pkg/domain"

// ScientistSummary is a scientist without its missions.
type ScientistSummary struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	FieldOfStudy string `json:"field_of_study"`
}

// PlanetSummary is a planet without its missions.
type PlanetSummary struct {
	ID                int64  `json:"id"`
	Name              string `json:"name"`
	DistanceFromEarth int64  `json:"distance_from_earth"`
	NearestStar       string `json:"nearest_star"`
}

// MissionView is a mission with both parents embedded as summaries.
type MissionView struct {
	ID          int64            `json:"id"`
	Name        string           `json:"name"`
	ScientistID int64            `json:"scientist_id"`
	PlanetID    int64            `json:"planet_id"`
	Scientist   ScientistSummary `json:"scientist"`
	Planet      PlanetSummary    `json:"planet"`
}

// ScientistMissionView is a mission listed under its scientist; the
// scientist back-reference is omitted.
type ScientistMissionView struct {
	ID          int64         `json:"id"`
	Name        string        `json:"name"`
	ScientistID int64         `json:"scientist_id"`
	PlanetID    int64         `json:"planet_id"`
	Planet      PlanetSummary `json:"planet"`
}

// ScientistView is the full scientist record.
type ScientistView struct {
	ID           int64                  `json:"id"`
	Name         string                 `json:"name"`
	FieldOfStudy string                 `json:"field_of_study"`
	Missions     []ScientistMissionView `json:"missions"`
}

func newScientistSummary(s domain.Scientist) ScientistSummary {
	return ScientistSummary{ID: s.ID, Name: s.Name, FieldOfStudy: s.FieldOfStudy}
}

func newPlanetSummary(p domain.Planet) PlanetSummary {
	return PlanetSummary{ID: p.ID, Name: p.Name, DistanceFromEarth: p.DistanceFromEarth, NearestStar: p.NearestStar}
}

func newMissionView(m domain.MissionDetail) MissionView {
	return MissionView{
		ID:          m.ID,
		Name:        m.Name,
		ScientistID: m.ScientistID,
		PlanetID:    m.PlanetID,
		Scientist:   newScientistSummary(m.Scientist),
		Planet:      newPlanetSummary(m.Planet),
	}
}

func newScientistView(d domain.ScientistDetail) ScientistView {
	view := ScientistView{
		ID:           d.ID,
		Name:         d.Name,
		FieldOfStudy: d.FieldOfStudy,
		Missions:     make([]ScientistMissionView, 0, len(d.Missions)),
	}
	for _, m := range d.Missions {
		view.Missions = append(view.Missions, ScientistMissionView{
			ID:          m.ID,
			Name:        m.Name,
			ScientistID: m.ScientistID,
			PlanetID:    m.PlanetID,
			Planet:      newPlanetSummary(m.Planet),
		})
	}
	return view
}

func summarizeScientists(in []domain.Scientist) []ScientistSummary {
	out := make([]ScientistSummary, 0, len(in))
	for _, s := range in {
		out = append(out, newScientistSummary(s))
	}
	return out
}

func summarizePlanets(in []domain.Planet) []PlanetSummary {
	out := make([]PlanetSummary, 0, len(in))
	for _, p := range in {
		out = append(out, newPlanetSummary(p))
	}
	return out
}
