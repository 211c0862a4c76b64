package env

import (
	"github.com/denisbrodbeck/machineid"
)

// MachineID retrieves an ID identifying the machine, derived for this
// application so the raw machine ID is not exposed on the broker.
func MachineID() string {
	id, err := machineid.ProtectedID("sbus")
	if err != nil {
		return "unknown"
	}
	if len(id) > 12 {
		id = id[:12]
	}
	return id
}
