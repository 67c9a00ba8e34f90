package domain

import "strconv"

// Group is a helpdesk agent group.
type Group struct {
	ID   int64  `json:"id" yaml:"id"`
	Name string `json:"name" yaml:"name"`
}

// GroupCatalog resolves group ids to display names.
type GroupCatalog struct {
	groups []Group
	byID   map[int64]string
}

// NewGroupCatalog indexes the given groups, keeping their order for filter menus.
func NewGroupCatalog(groups []Group) *GroupCatalog {
	c := &GroupCatalog{groups: append([]Group(nil), groups...), byID: make(map[int64]string, len(groups))}
	for _, g := range groups {
		c.byID[g.ID] = g.Name
	}
	return c
}

// Groups returns the catalog entries in configured order.
func (c *GroupCatalog) Groups() []Group {
	if c == nil {
		return nil
	}
	return append([]Group(nil), c.groups...)
}

// Label returns the group name, "Group <id>" for unknown ids and "N/A" for nil.
func (c *GroupCatalog) Label(id *int64) string {
	if id == nil || *id == 0 {
		return "N/A"
	}
	if c != nil {
		if name, ok := c.byID[*id]; ok {
			return name
		}
	}
	return "Group " + strconv.FormatInt(*id, 10)
}
