package providers

// Provider is a bookable clinician as shown in the portal's provider picker.
type Provider struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Specialty  string `json:"specialty,omitempty"`
	Telehealth bool   `json:"telehealth"`
	InPerson   bool   `json:"inPerson"`
}
