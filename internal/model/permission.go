package model

import (
	"sort"
	"strings"
)

type Role string

const (
	RoleTrainee Role = "TRAINEE"
	RoleTrainer Role = "TRAINER"
	RoleAdmin   Role = "ADMIN"
)

const (
	CapProfileRead    = "profile:read"
	CapProfileWrite   = "profile:write"
	CapTrainingRead   = "training:read"
	CapTrainingWrite  = "training:write"
	CapTraineeRead    = "trainee:read"
	CapTrainerRead    = "trainer:read"
	CapWorkloadRead   = "workload:read"
	CapUserManage     = "user:manage"
	CapPasswordChange = "password:change"
)

var roleCapabilities = map[Role][]string{
	RoleTrainee: {
		CapProfileRead,
		CapProfileWrite,
		CapPasswordChange,
		CapTrainingRead,
		CapTrainerRead,
	},
	RoleTrainer: {
		CapProfileRead,
		CapProfileWrite,
		CapPasswordChange,
		CapTrainingRead,
		CapTrainingWrite,
		CapTraineeRead,
		CapWorkloadRead,
	},
	RoleAdmin: {
		CapProfileRead,
		CapProfileWrite,
		CapPasswordChange,
		CapTrainingRead,
		CapTrainingWrite,
		CapTraineeRead,
		CapTrainerRead,
		CapWorkloadRead,
		CapUserManage,
	},
}

// ParseRole normalizes a stored role name. Unknown roles map to "" and
// carry no capabilities.
func ParseRole(value string) Role {
	role := Role(strings.ToUpper(strings.TrimSpace(value)))
	if _, ok := roleCapabilities[role]; !ok {
		return ""
	}
	return role
}

// CapabilitiesFor returns a sorted copy of the role's capability set.
func CapabilitiesFor(role Role) []string {
	caps := roleCapabilities[role]
	out := make([]string, len(caps))
	copy(out, caps)
	sort.Strings(out)
	return out
}
