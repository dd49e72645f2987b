package domain

import (
	"context"
	"errors"
	"fmt"
)

// RuleView provides read-only access to domain entities for rule evaluation.
type RuleView = TransactionView

// Rule defines an evaluation executed within a transaction boundary.
type Rule interface {
	Name() string
	Evaluate(ctx context.Context, view RuleView, changes []Change) (Result, error)
}

// RulesEngine orchestrates rule evaluation.
type RulesEngine struct {
	rules []Rule
}

// NewRulesEngine constructs an engine instance.
func NewRulesEngine() *RulesEngine {
	return &RulesEngine{}
}

// NewDefaultRulesEngine builds an engine with the built-in integrity rules.
func NewDefaultRulesEngine() *RulesEngine {
	engine := NewRulesEngine()
	engine.Register(RequiredFieldsRule())
	engine.Register(MissionReferencesRule())
	return engine
}

// Register appends a rule to the engine.
func (e *RulesEngine) Register(rule Rule) {
	e.rules = append(e.rules, rule)
}

// Rules returns the registered rule names in registration order.
func (e *RulesEngine) Rules() []string {
	names := make([]string, 0, len(e.rules))
	for _, r := range e.rules {
		names = append(names, r.Name())
	}
	return names
}

// Evaluate executes all registered rules and aggregates their results.
func (e *RulesEngine) Evaluate(ctx context.Context, view RuleView, changes []Change) (Result, error) {
	var combined Result
	for _, rule := range e.rules {
		res, err := rule.Evaluate(ctx, view, changes)
		if err != nil {
			return Result{}, fmt.Errorf("rule %s: %w", rule.Name(), err)
		}
		combined.Merge(res)
	}
	return combined, nil
}

// RequiredFieldsRule blocks scientist and mission writes that leave a
// required text field blank.
func RequiredFieldsRule() Rule { return requiredFieldsRule{} }

type requiredFieldsRule struct{}

func (requiredFieldsRule) Name() string { return "required_fields" }

func (r requiredFieldsRule) Evaluate(_ context.Context, _ RuleView, changes []Change) (Result, error) {
	var res Result
	for _, change := range changes {
		if change.Action == ActionDelete {
			continue
		}
		switch after := change.After.(type) {
		case Scientist:
			if IsBlank(after.Name) {
				res.Violations = append(res.Violations, r.violation(EntityScientist, after.ID, "name"))
			}
			if IsBlank(after.FieldOfStudy) {
				res.Violations = append(res.Violations, r.violation(EntityScientist, after.ID, "field_of_study"))
			}
		case Mission:
			if IsBlank(after.Name) {
				res.Violations = append(res.Violations, r.violation(EntityMission, after.ID, "name"))
			}
		}
	}
	return res, nil
}

func (r requiredFieldsRule) violation(entity EntityType, id int64, field string) Violation {
	return Violation{
		Rule:     r.Name(),
		Severity: SeverityBlock,
		Message:  fmt.Sprintf("%s %s must not be blank", entity, field),
		Entity:   entity,
		EntityID: id,
	}
}

// MissionReferencesRule blocks missions whose scientist or planet is absent
// from the transaction state at commit time.
func MissionReferencesRule() Rule { return missionReferencesRule{} }

type missionReferencesRule struct{}

func (missionReferencesRule) Name() string { return "mission_references" }

func (r missionReferencesRule) Evaluate(_ context.Context, view RuleView, changes []Change) (Result, error) {
	var res Result
	for _, change := range changes {
		if change.Entity != EntityMission || change.Action == ActionDelete {
			continue
		}
		mission, ok := change.After.(Mission)
		if !ok {
			continue
		}
		if _, err := view.FindScientist(mission.ScientistID); err != nil {
			if !isNotFound(err) {
				return Result{}, err
			}
			res.Violations = append(res.Violations, Violation{
				Rule:     r.Name(),
				Severity: SeverityBlock,
				Message:  fmt.Sprintf("mission %d references missing scientist %d", mission.ID, mission.ScientistID),
				Entity:   EntityMission,
				EntityID: mission.ID,
			})
		}
		if _, err := view.FindPlanet(mission.PlanetID); err != nil {
			if !isNotFound(err) {
				return Result{}, err
			}
			res.Violations = append(res.Violations, Violation{
				Rule:     r.Name(),
				Severity: SeverityBlock,
				Message:  fmt.Sprintf("mission %d references missing planet %d", mission.ID, mission.PlanetID),
				Entity:   EntityMission,
				EntityID: mission.ID,
			})
		}
	}
	return res, nil
}

func isNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
