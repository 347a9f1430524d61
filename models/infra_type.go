package models

import "fmt"

// InfraType is the fixed catalog of infrastructure categories a report can
// belong to. Each moderator is scoped to exactly one of them.
type InfraType string

const (
	InfraPower      InfraType = "power"
	InfraWater      InfraType = "water"
	InfraTransport  InfraType = "transport"
	InfraTelecom    InfraType = "telecom"
	InfraCommercial InfraType = "commercial"
)

var infraTypeNames = map[InfraType]string{
	InfraPower:      "Power and Energy",
	InfraWater:      "Water and Waste",
	InfraTransport:  "Transportation",
	InfraTelecom:    "Telecommunications",
	InfraCommercial: "Commercial",
}

// Valid reports whether t is part of the catalog.
func (t InfraType) Valid() bool {
	_, ok := infraTypeNames[t]
	return ok
}

// Name returns the display name for the catalog entry.
func (t InfraType) Name() string {
	if name, ok := infraTypeNames[t]; ok {
		return name
	}
	return string(t)
}

// ParseInfraType validates a catalog slug.
func ParseInfraType(s string) (InfraType, error) {
	t := InfraType(s)
	if !t.Valid() {
		return "", fmt.Errorf("unknown infrastructure type %q", s)
	}
	return t, nil
}
