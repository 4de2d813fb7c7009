// internal/instance/descriptor.go
//
// Decoded VRChat world/instance references.
//
// Context
// -------
// Users paste either a launch URL
//
//	https://vrchat.com/home/launch?worldId=wrld_…&instanceId=12345~region(eu)
//
// or a compact token
//
//	wrld_…:12345~friends+(usr_…)~region(jp)~nonce(…)
//
// Parse turns either form into a Descriptor.  The Descriptor is transient;
// nothing here is persisted.
//
// Notes
// -----
//   - Absent optional fields are empty strings and are omitted from JSON.
package instance

// Descriptor is the structured form of an instance reference.
type Descriptor struct {
	WorldID         string `json:"world_id,omitempty"`
	InstanceID      string `json:"instance_id,omitempty"`
	InstanceNumber  string `json:"instance_number"`
	InstanceType    string `json:"instance_type"`
	InstanceTypeKey string `json:"instance_type_key"`
	Region          string `json:"region"`
	RegionKey       string `json:"region_key"`
	OwnerID         string `json:"owner_id,omitempty"`
	Nonce           string `json:"nonce,omitempty"`
	FullInstance    string `json:"full_instance,omitempty"`
}

const (
	defaultTypeKey   = "public"
	defaultRegionKey = "us"
)

// typeLabels maps instance_type_key to a human-readable label.
var typeLabels = map[string]string{
	"public":      "Public",
	"friends+":    "Friends+",
	"friends":     "Friends",
	"invite+":     "Invite+",
	"invite":      "Invite",
	"group":       "Group",
	"groupPlus":   "Group+",
	"groupPublic": "Group Public",
}

// regionLabels maps region_key to a human-readable label.
var regionLabels = map[string]string{
	"us":  "US West",
	"use": "US East",
	"eu":  "Europe",
	"jp":  "Japan",
}
