package domain

// ImageHandle is the opaque image supplied by the capture collaborator.
type ImageHandle struct {
	Data      []byte
	MIMEType  string
	Latitude  *float64
	Longitude *float64
}

// Suggestion is one ranked species candidate.
type Suggestion struct {
	Name        string   `json:"name"`
	CommonNames []string `json:"common_names,omitempty"`
	Probability float64  `json:"probability"`
}

// Identification is the result of one recognition call.
type Identification struct {
	Provider    string       `json:"provider"`
	RequestID   string       `json:"request_id,omitempty"`
	IsPlant     bool         `json:"is_plant"`
	Suggestions []Suggestion `json:"suggestions"`
}

// Usable reports whether the identification produced at least one candidate.
func (i *Identification) Usable() bool {
	return i != nil && len(i.Suggestions) > 0
}
