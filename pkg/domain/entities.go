// Package domain defines the core persistent entities, value types, and
// rule evaluation primitives used by astrocore.
package domain

import "strings"

// EntityType identifies the type of record stored in the core domain.
type EntityType string

// Supported entity type identifiers used in Change records and persistence tables.
const (
	// EntityScientist identifies a scientist record.
	EntityScientist EntityType = "scientist"
	// EntityPlanet identifies a planet record.
	EntityPlanet EntityType = "planet"
	// EntityMission identifies a mission linking a scientist to a planet.
	EntityMission EntityType = "mission"
)

// Label returns the capitalised entity name used in client-facing messages.
func (e EntityType) Label() string {
	if e == "" {
		return ""
	}
	return strings.ToUpper(string(e[:1])) + string(e[1:])
}

// Severity captures rule outcomes.
type Severity string

// Rule evaluation severities determine commit behavior and logging.
const (
	// SeverityBlock blocks transaction commit.
	SeverityBlock Severity = "block"
	// SeverityWarn logs a warning but allows commit.
	SeverityWarn Severity = "warn"
	SeverityLog  Severity = "log"
)

// Base contains common fields for all domain records.
type Base struct {
	ID int64 `json:"id"`
}

// Scientist is a researcher who may lead missions.
type Scientist struct {
	Base
	Name         string `json:"name"`
	FieldOfStudy string `json:"field_of_study"`
}

// Planet is a mission destination. Planets are created by seeding only.
type Planet struct {
	Base
	Name              string `json:"name"`
	DistanceFromEarth int64  `json:"distance_from_earth"`
	NearestStar       string `json:"nearest_star"`
}

// Mission links a scientist to a planet.
type Mission struct {
	Base
	Name        string `json:"name"`
	ScientistID int64  `json:"scientist_id"`
	PlanetID    int64  `json:"planet_id"`
}

// MissionDetail is a mission resolved together with both of its parents.
type MissionDetail struct {
	Mission
	Scientist Scientist
	Planet    Planet
}

// ScientistDetail is a scientist together with the missions it owns, each
// resolved against its planet.
type ScientistDetail struct {
	Scientist
	Missions []MissionDetail
}

// Change describes a mutation applied to an entity during a transaction.
type Change struct {
	Entity EntityType
	Action Action
	Before any
	After  any
}

// Action indicates the type of modification performed.
type Action string

// Change actions enumerate supported CRUD operations captured in audit trail.
const (
	// ActionCreate indicates an entity was created.
	ActionCreate Action = "create"
	// ActionUpdate indicates an entity was updated.
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Violation reports a failed rule evaluation.
type Violation struct {
	Rule     string
	Severity Severity
	Message  string
	Entity   EntityType
	EntityID int64
}

// Result aggregates violations from the rules engine.
type Result struct {
	Violations []Violation
}

// Merge appends violations from another result.
func (r *Result) Merge(other Result) {
	if len(other.Violations) == 0 {
		return
	}
	r.Violations = append(r.Violations, other.Violations...)
}

// HasBlocking returns true if the result contains blocking violations.
func (r Result) HasBlocking() bool {
	for _, v := range r.Violations {
		if v.Severity == SeverityBlock {
			return true
		}
	}
	return false
}
