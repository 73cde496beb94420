package models

import "fmt"

type ActionClass string

const (
	ActionDeviceCreated ActionClass = "device_created"
	ActionDeviceUpdated ActionClass = "device_updated"
	ActionDeviceDeleted ActionClass = "device_deleted"
	ActionTagCreated    ActionClass = "tag_created"
	ActionTagUpdated    ActionClass = "tag_updated"
	ActionTagDeleted    ActionClass = "tag_deleted"
)

// Column is the cooldowns column stamped for this class.
func (a ActionClass) Column() string {
	switch a {
	case ActionDeviceCreated:
		return "device_created_at"
	case ActionDeviceUpdated:
		return "device_updated_at"
	case ActionDeviceDeleted:
		return "device_deleted_at"
	case ActionTagCreated:
		return "tag_created_at"
	case ActionTagUpdated:
		return "tag_updated_at"
	case ActionTagDeleted:
		return "tag_deleted_at"
	}
	panic(fmt.Sprintf("unknown action class %q", string(a)))
}
