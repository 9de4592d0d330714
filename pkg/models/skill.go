package models

// SkillInfo describes one skill from the manifest.
type SkillInfo struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Category     string   `json:"category"`
	Description  string   `json:"description"`
	PeerSkills   []string `json:"peer_skills,omitempty"`
	Dependencies []string `json:"dependencies,omitempty"`
	Confidence   float64  `json:"confidence"`
	HasScripts   bool     `json:"has_scripts"`
}

// TriggerMatch is a skill selected by a manifest trigger.
type TriggerMatch struct {
	SkillID    string  `json:"skill_id"`
	Trigger    string  `json:"trigger"`
	Confidence float64 `json:"confidence"`
}
