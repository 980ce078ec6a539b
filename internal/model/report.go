package model

// Finding parameter names, in presentation order.
const (
	ParamOccupancy      = "Occupancy rate"
	ParamFloorAreaRatio = "Floor-area ratio"
	ParamPermeability   = "Permeability rate"
	ParamHeight         = "Height (floors)"
	ParamFrontSetback   = "Front setback"
	ParamPCDParking     = "PCD parking"
	ParamElderlyParking = "Elderly parking"
	ParamUnitCap        = "Housing units"
	ParamConsistency    = "Data consistency"
)

// ComplianceFinding is the verdict for one regulatory parameter.
type ComplianceFinding struct {
	Parameter       string `json:"parameter"`
	ProjectValue    string `json:"project_value"`
	RegulatoryLimit string `json:"regulatory_limit"`
	Compliant       bool   `json:"compliant"`
}

// ComplianceReport is the complete outcome of one analysis.
type ComplianceReport struct {
	ID         string               `json:"id,omitempty"`
	Address    string               `json:"address,omitempty"`
	Point      GeoPoint             `json:"point"`
	Projected  ProjectedPoint       `json:"projected"`
	Zone       ZoneMatch            `json:"zone"`
	Parameters RegulatoryParameters `json:"parameters"`
	Findings   []ComplianceFinding  `json:"findings"`
	Approved   bool                 `json:"approved"`
	Categories []string             `json:"categories,omitempty"`
}

// Failed returns the findings that are not compliant.
func (r *ComplianceReport) Failed() []ComplianceFinding {
	var out []ComplianceFinding
	for _, f := range r.Findings {
		if !f.Compliant {
			out = append(out, f)
		}
	}
	return out
}
