package compgraph

// ResolveBandID implements the band(employee) resolution order named in
// spec §4.C: grade's own salary band first, then the band owning the
// employee's current notch's level.
func ResolveBandID(grade *Grade, level *SalaryLevel) *string {
	if grade != nil && grade.SalaryBandID != nil {
		return grade.SalaryBandID
	}
	if level != nil {
		id := level.BandID
		return &id
	}
	return nil
}
