package model

type Doctor struct {
	ID             string `json:"_id"`
	Name           string `json:"name"`
	Specialization string `json:"specialization"`
}

// Label is the option text shown in the doctor selector.
func (d Doctor) Label() string {
	if d.Specialization == "" {
		return "Dr. " + d.Name
	}
	return "Dr. " + d.Name + " - " + d.Specialization
}
