package roster

import "strings"

// Roster is a team registered for one league
type Roster struct {
	Name     string   `yaml:"-" json:"name"`
	LongName string   `yaml:"long_name" json:"long_name"`
	Tag      string   `yaml:"tag" json:"tag"`
	League   string   `yaml:"league" json:"league"`
	Manager  string   `yaml:"manager,omitempty" json:"manager,omitempty"`
	Members  []string `yaml:"members" json:"members"`
	BridgeID string   `yaml:"bridge_id,omitempty" json:"bridge_id,omitempty"`
}

// HasMember reports membership, ignoring case
func (r *Roster) HasMember(player string) bool {
	return r.memberIndex(player) >= 0
}

func (r *Roster) memberIndex(player string) int {
	for i, m := range r.Members {
		if strings.EqualFold(m, player) {
			return i
		}
	}
	return -1
}

func (r *Roster) addMember(player string) {
	if !r.HasMember(player) {
		r.Members = append(r.Members, player)
	}
}

// removeMember drops player and clears the manager slot when it was theirs
func (r *Roster) removeMember(player string) bool {
	i := r.memberIndex(player)
	if i < 0 {
		return false
	}
	r.Members = append(r.Members[:i], r.Members[i+1:]...)
	if strings.EqualFold(r.Manager, player) {
		r.Manager = ""
	}
	return true
}

// Display is the long name, or the short name when no long name is set
func (r *Roster) Display() string {
	if r.LongName != "" {
		return r.LongName
	}
	return r.Name
}

func (r Roster) clone() Roster {
	r.Members = append([]string(nil), r.Members...)
	return r
}
