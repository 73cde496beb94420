package models

import "time"

const MaxDeviceImages = 5

type Device struct {
	ID             int64
	UserID         string
	Name           string
	Description    string
	Additional     string
	Attributes     AttributeRefs
	TagIDs         []int64
	InternalImages []string
	ExternalImages []string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (d Device) ImageCount() int {
	return len(d.InternalImages) + len(d.ExternalImages)
}

func (d Device) HasImage(imageID string) bool {
	for _, id := range d.InternalImages {
		if id == imageID {
			return true
		}
	}
	return false
}

type DeviceSort string

const (
	SortNameAsc  DeviceSort = "nameAsc"
	SortNameDesc DeviceSort = "nameDesc"
	SortDateAsc  DeviceSort = "dateAsc"
	SortDateDesc DeviceSort = "dateDesc"
	// SortUpdatedDesc orders by last edit and backs the dashboard overview.
	SortUpdatedDesc DeviceSort = "updatedDesc"
)

func ParseDeviceSort(s string) DeviceSort {
	switch DeviceSort(s) {
	case SortNameDesc, SortDateAsc, SortDateDesc, SortUpdatedDesc:
		return DeviceSort(s)
	default:
		return SortNameAsc
	}
}

// DeviceFilter narrows a listing. Empty sets do not constrain.
type DeviceFilter struct {
	Attributes map[AttributeKind][]int64
	Name       string
	TagIDs     []int64
	// DeviceIDs restricts the listing to these ids when non-nil.
	DeviceIDs []int64
}

type DeviceQuery struct {
	Filter DeviceFilter
	Sort   DeviceSort
	Offset int
	Limit  int
}

type DevicePage struct {
	Devices []Device
	Total   int
}
