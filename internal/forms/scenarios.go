package forms

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"
)

//go:embed scenarios.yaml
var scenariosYAML []byte

// Assignment sets one field when a scenario is applied.
type Assignment struct {
	Field string `yaml:"field" json:"field"`
	Value string `yaml:"value" json:"value"`
}

// Scenario is a quick-fill bundle from the options panel.
type Scenario struct {
	ID     string       `yaml:"id" json:"id"`
	Label  string       `yaml:"label" json:"label"`
	Fields []Assignment `yaml:"fields" json:"fields"`
}

var scenarios map[string][]Scenario

func init() {
	var err error
	scenarios, err = parseScenarios(scenariosYAML)
	if err != nil {
		panic(err)
	}
}

func parseScenarios(data []byte) (map[string][]Scenario, error) {
	var out map[string][]Scenario
	if err := yaml.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("parse scenarios: %w", err)
	}
	for app, list := range out {
		seen := make(map[string]bool, len(list))
		for _, sc := range list {
			if sc.ID == "" {
				return nil, fmt.Errorf("scenario without id in %s", app)
			}
			if seen[sc.ID] {
				return nil, fmt.Errorf("duplicate scenario %s in %s", sc.ID, app)
			}
			seen[sc.ID] = true
		}
	}
	return out, nil
}

// Scenarios lists the bundles available for the app.
func (a *App) Scenarios() []Scenario {
	return scenarios[a.ID]
}

// Scenario finds a bundle by id.
func (a *App) Scenario(id string) (Scenario, bool) {
	for _, sc := range scenarios[a.ID] {
		if sc.ID == id {
			return sc, true
		}
	}
	return Scenario{}, false
}
