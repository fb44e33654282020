package plan

import "fmt"

// =============================================================================
// Resource Naming Functions
// =============================================================================

// ContainerName generates the container name for a service in a plan.
// Pattern: bosun_{planID[:8]}_{serviceID}
//
// Example:
//
//	ContainerName("6f1c2a9e-...", "media-server") // "bosun_6f1c2a9e_media-server"
func ContainerName(planID, serviceID string) string {
	return fmt.Sprintf("bosun_%s_%s", shortPlanID(planID), serviceID)
}

func shortPlanID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
