package release

import (
	"os"

	"github.com/pkg/errors"
	"go.yaml.in/yaml/v4"
)

// DefaultChecklist returns the canonical 17-item vehicle inspection
// checklist. Stations with different rigs override it via the checklist
// config file; the decision logic does not care about the set.
func DefaultChecklist() []Item {
	return []Item{
		{Number: 1, Description: "Service brakes - air pressure and operation", SafetyItem: true, Reference: "NFPA 1911 6.4"},
		{Number: 2, Description: "Parking brake holds on grade", SafetyItem: true, Reference: "NFPA 1911 6.4"},
		{Number: 3, Description: "Steering - free play within limits", SafetyItem: true, Reference: "NFPA 1911 6.3"},
		{Number: 4, Description: "Horn and backup alarm", SafetyItem: true},
		{Number: 5, Description: "Headlights, tail and brake lights", SafetyItem: true},
		{Number: 6, Description: "Emergency warning lights and siren", SafetyItem: true},
		{Number: 7, Description: "Windshield wipers and washers"},
		{Number: 8, Description: "Mirrors and glass - secure, no cracks"},
		{Number: 9, Description: "Tires - tread depth and pressure", SafetyItem: true, Reference: "NFPA 1911 6.2"},
		{Number: 10, Description: "Wheels and lug nuts - no looseness", SafetyItem: true},
		{Number: 11, Description: "Engine oil level"},
		{Number: 12, Description: "Coolant level"},
		{Number: 13, Description: "Fuel level at minimum three quarters"},
		{Number: 14, Description: "Battery and charging system"},
		{Number: 15, Description: "Pump engages and tank water level", SafetyItem: true, Reference: "NFPA 1911 ch.18"},
		{Number: 16, Description: "SCBA seat brackets latch", SafetyItem: true},
		{Number: 17, Description: "Seat belts - all positions operational", SafetyItem: true, Reference: "NFPA 1911 6.1"},
	}
}

// LoadChecklist reads a checklist override file (YAML list of items).
// An empty path yields the default checklist.
func LoadChecklist(path string) ([]Item, error) {
	if path == "" {
		return DefaultChecklist(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read checklist file")
	}
	var items []Item
	if err := yaml.Unmarshal(data, &items); err != nil {
		return nil, errors.Wrap(err, "unmarshal checklist")
	}
	if len(items) == 0 {
		return nil, errors.Errorf("checklist file %s is empty", path)
	}
	return items, nil
}
