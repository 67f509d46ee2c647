package enums

import "fmt"

// Component names the subsystem that wrote an error_log row.
type Component string

const (
	ComponentScheduler  Component = "SCHEDULER"
	ComponentCalculator Component = "CALCULATOR"
	ComponentCatalog    Component = "CATALOG"
	ComponentCLI        Component = "CLI"
	ComponentAPI        Component = "API"
)

var validComponents = []Component{
	ComponentScheduler,
	ComponentCalculator,
	ComponentCatalog,
	ComponentCLI,
	ComponentAPI,
}

// String implements fmt.Stringer.
func (c Component) String() string {
	return string(c)
}

// IsValid reports whether the value is a known Component.
func (c Component) IsValid() bool {
	for _, candidate := range validComponents {
		if candidate == c {
			return true
		}
	}
	return false
}

// ParseComponent converts raw input into a Component.
func ParseComponent(value string) (Component, error) {
	for _, candidate := range validComponents {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid component %q", value)
}
