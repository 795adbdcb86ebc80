package engine

import "github.com/faultlinehq/faultline-engine/internal/models"

// Role identifies a specialist analysis stage. The set is closed: hand-offs
// naming a role outside this registry are protocol violations.
type Role string

const (
	RoleEntry       Role = "entry_triage"
	RoleFunction    Role = "function_analysis"
	RoleGateway     Role = "gateway_analysis"
	RoleMessaging   Role = "messaging_analysis"
	RoleWorkflow    Role = "workflow_analysis"
	RoleStorage     Role = "storage_analysis"
	RolePermissions Role = "permissions_analysis"
	RoleNetwork     Role = "network_analysis"

	// RoleTerminal is the synthesis stage. Handing off to it ends the
	// investigation loop; it never hands off itself.
	RoleTerminal Role = "synthesis"
)

var knownRoles = map[Role]bool{
	RoleEntry:       true,
	RoleFunction:    true,
	RoleGateway:     true,
	RoleMessaging:   true,
	RoleWorkflow:    true,
	RoleStorage:     true,
	RolePermissions: true,
	RoleNetwork:     true,
	RoleTerminal:    true,
}

// KnownRole reports whether r belongs to the closed role registry.
func KnownRole(r Role) bool { return knownRoles[r] }

var kindRoles = map[models.ResourceKind]Role{
	models.KindFunction:   RoleFunction,
	models.KindAPIGateway: RoleGateway,
	models.KindQueue:      RoleMessaging,
	models.KindTopic:      RoleMessaging,
	models.KindWorkflow:   RoleWorkflow,
	models.KindTable:      RoleStorage,
	models.KindBucket:     RoleStorage,
	models.KindRole:       RolePermissions,
	models.KindNetwork:    RoleNetwork,
}

// RoleForKind maps a resource kind to the specialist that analyses it.
// Kinds without a dedicated specialist route straight to synthesis.
func RoleForKind(kind models.ResourceKind) Role {
	if r, ok := kindRoles[kind]; ok {
		return r
	}
	return RoleTerminal
}
