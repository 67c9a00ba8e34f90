package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"

	"github.com/spec-kit/ticket-dashboard/internal/domain"
)

// DefaultGroups is the catalog used when no groups file is configured.
var DefaultGroups = []domain.Group{
	{ID: 26000250424, Name: "IT Innovation and Business Development"},
	{ID: 26000171555, Name: "IT Network Infrastructure and Security"},
	{ID: 26000171552, Name: "IT Operations and Service Desk"},
}

type groupsFile struct {
	Groups []domain.Group `yaml:"groups"`
}

// LoadGroups reads the group catalog from a YAML file of the form
//
//	groups:
//	  - id: 26000171552
//	    name: IT Operations and Service Desk
//
// An empty path yields DefaultGroups.
func LoadGroups(path string) ([]domain.Group, error) {
	if path == "" {
		return append([]domain.Group(nil), DefaultGroups...), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var parsed groupsFile
	if err := yaml.NewDecoder(f).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode groups file %s: %w", path, err)
	}
	for i, g := range parsed.Groups {
		if g.ID == 0 || g.Name == "" {
			return nil, fmt.Errorf("groups file %s: entry %d needs id and name", path, i)
		}
	}
	return parsed.Groups, nil
}
