package models

import (
	"fmt"
	"strings"
)

// AttributeKind names one of the hardware attribute lookups a device can
// reference. All kinds share a single table and a single code path.
type AttributeKind string

const (
	AttributeCPU     AttributeKind = "cpu"
	AttributeGPU     AttributeKind = "gpu"
	AttributeMemory  AttributeKind = "memory"
	AttributeStorage AttributeKind = "storage"
	AttributeOS      AttributeKind = "os"
	AttributeBrand   AttributeKind = "brand"
)

// AttributeKinds lists every kind in display order.
var AttributeKinds = []AttributeKind{
	AttributeCPU,
	AttributeGPU,
	AttributeMemory,
	AttributeStorage,
	AttributeOS,
	AttributeBrand,
}

func ParseAttributeKind(s string) (AttributeKind, error) {
	for _, kind := range AttributeKinds {
		if string(kind) == s {
			return kind, nil
		}
	}
	return "", fmt.Errorf("unknown attribute kind %q", s)
}

// Column is the devices column holding a reference of this kind.
func (k AttributeKind) Column() string {
	switch k {
	case AttributeCPU:
		return "cpu_id"
	case AttributeGPU:
		return "gpu_id"
	case AttributeMemory:
		return "memory_id"
	case AttributeStorage:
		return "storage_id"
	case AttributeOS:
		return "os_id"
	case AttributeBrand:
		return "brand_id"
	}
	panic(fmt.Sprintf("unknown attribute kind %q", string(k)))
}

type Attribute struct {
	ID          int64
	UserID      string
	Kind        AttributeKind
	Value       string
	DisplayName string
}

// NormalizeAttribute returns the dedup key and the display name for raw
// text. ok is false when the text is blank.
func NormalizeAttribute(raw string) (value string, displayName string, ok bool) {
	displayName = strings.TrimSpace(raw)
	if displayName == "" {
		return "", "", false
	}
	return strings.ToLower(displayName), displayName, true
}

// AttributeRefs holds a device's nullable references, one per kind.
type AttributeRefs struct {
	CPU     *int64
	GPU     *int64
	Memory  *int64
	Storage *int64
	OS      *int64
	Brand   *int64
}

func (r *AttributeRefs) slot(kind AttributeKind) **int64 {
	switch kind {
	case AttributeCPU:
		return &r.CPU
	case AttributeGPU:
		return &r.GPU
	case AttributeMemory:
		return &r.Memory
	case AttributeStorage:
		return &r.Storage
	case AttributeOS:
		return &r.OS
	case AttributeBrand:
		return &r.Brand
	}
	panic(fmt.Sprintf("unknown attribute kind %q", string(kind)))
}

func (r AttributeRefs) Get(kind AttributeKind) *int64 {
	return *r.slot(kind)
}

func (r *AttributeRefs) Set(kind AttributeKind, id *int64) {
	*r.slot(kind) = id
}

// FilterOption is an attribute id in use by at least one device.
type FilterOption struct {
	ID          int64
	DisplayName string
	Count       int
}
