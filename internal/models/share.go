package models

import (
	"fmt"
	"time"
)

type ShareType int

const (
	ShareAllDevices   ShareType = 0
	ShareTagScoped    ShareType = 1
	ShareSingleDevice ShareType = 2
)

// Visibility is the closed set of grants a share can carry. Every variant
// lives in this package; the unexported marker keeps it that way.
type Visibility interface {
	ShareType() ShareType
	// Allows reports whether the grant covers the given device of the
	// share owner.
	Allows(deviceID int64) bool
	isVisibility()
}

type AllDevices struct{}

func (AllDevices) ShareType() ShareType { return ShareAllDevices }
func (AllDevices) Allows(int64) bool { return true }
func (AllDevices) isVisibility() {}

// TagScoped is reserved. Resolution of this variant fails as not
// implemented, so Allows never grants anything.
type TagScoped struct {
	TagIDs []int64
}

func (TagScoped) ShareType() ShareType { return ShareTagScoped }
func (TagScoped) Allows(int64) bool { return false }
func (TagScoped) isVisibility() {}

type SingleDevice struct {
	DeviceID int64
}

func (SingleDevice) ShareType() ShareType { return ShareSingleDevice }
func (s SingleDevice) Allows(deviceID int64) bool { return s.DeviceID == deviceID }
func (SingleDevice) isVisibility() {}

// DecodeVisibility turns the stored share columns into a variant.
func DecodeVisibility(shareType ShareType, sharedDevice *int64, sharedTags []int64) (Visibility, error) {
	switch shareType {
	case ShareAllDevices:
		return AllDevices{}, nil
	case ShareTagScoped:
		return TagScoped{TagIDs: sharedTags}, nil
	case ShareSingleDevice:
		if sharedDevice == nil {
			return nil, fmt.Errorf("single device share without device")
		}
		return SingleDevice{DeviceID: *sharedDevice}, nil
	}
	return nil, fmt.Errorf("unknown share type %d", int(shareType))
}

// EncodeVisibility is the inverse of DecodeVisibility.
func EncodeVisibility(v Visibility) (shareType ShareType, sharedDevice *int64, sharedTags []int64) {
	switch g := v.(type) {
	case AllDevices:
		return ShareAllDevices, nil, []int64{}
	case TagScoped:
		return ShareTagScoped, nil, append([]int64{}, g.TagIDs...)
	case SingleDevice:
		id := g.DeviceID
		return ShareSingleDevice, &id, []int64{}
	}
	panic(fmt.Sprintf("unknown visibility %T", v))
}

type Share struct {
	ID         string
	UserID     string
	Visibility Visibility
	Internal   bool
	CreatedAt  time.Time
}
