package domain

// ScientistField names a patchable scientist attribute.
type ScientistField uint8

// Patchable scientist fields.
const (
	ScientistFieldName ScientistField = 1 << iota
	ScientistFieldFieldOfStudy
)

// ScientistPatch is a partial update. Only fields present in the mask are
// applied; a supplied null is carried as an empty string so validation rejects it.
type ScientistPatch struct {
	mask         ScientistField
	Name         string
	FieldOfStudy string
}

// SetName marks name as supplied.
func (p *ScientistPatch) SetName(v string) {
	p.Name = v
	p.mask |= ScientistFieldName
}

// SetFieldOfStudy marks field_of_study as supplied.
func (p *ScientistPatch) SetFieldOfStudy(v string) {
	p.FieldOfStudy = v
	p.mask |= ScientistFieldFieldOfStudy
}

// Has reports whether field was supplied.
func (p ScientistPatch) Has(field ScientistField) bool {
	return p.mask&field != 0
}

// Empty reports whether no field was supplied.
func (p ScientistPatch) Empty() bool { return p.mask == 0 }

// Apply assigns the supplied fields onto s.
func (p ScientistPatch) Apply(s *Scientist) {
	if p.Has(ScientistFieldName) {
		s.Name = p.Name
	}
	if p.Has(ScientistFieldFieldOfStudy) {
		s.FieldOfStudy = p.FieldOfStudy
	}
}
