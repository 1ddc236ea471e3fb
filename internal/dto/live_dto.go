package dto

// Live channel message types.
const (
	LiveTypeSection      = "section"
	LiveTypeSectionStale = "section_stale"
	LiveTypeAction       = "action"
)

// LiveMessage is pushed to every socket a user has open.
type LiveMessage struct {
	Type    string      `json:"type"`
	View    string      `json:"view,omitempty"`
	Section string      `json:"section,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

type ActionPhase struct {
	Target string `json:"target"`
	Phase  string `json:"phase"`
}
