package services

import (
	"fmt"

	"nanodrive/common"
	"nanodrive/models"
)

// RootName labels the first breadcrumb.
const RootName = "Home"

type Breadcrumb struct {
	Name string `json:"name"`
	Path string `json:"path"`
}

// Navigator tracks the segment list of the directory being viewed.
type Navigator struct {
	segments []string
}

func NewNavigator() *Navigator {
	return &Navigator{}
}

// NewNavigatorAt starts navigation at an existing canonical path.
func NewNavigatorAt(path string) (*Navigator, error) {
	segments, err := models.SplitPath(path)
	if err != nil {
		return nil, err
	}
	return &Navigator{segments: segments}, nil
}

// NavigateInto descends into a folder. Files cannot be entered.
func (n *Navigator) NavigateInto(node models.Node) error {
	if !node.IsFolder() {
		return common.Validation("navigate into", node.Name, "only folders can be opened")
	}
	n.segments = append(n.segments, node.Name)
	return nil
}

// NavigateToBreadcrumb keeps the first index segments; 0 returns to root.
func (n *Navigator) NavigateToBreadcrumb(index int) error {
	if index < 0 || index > len(n.segments) {
		return common.Validation("navigate to breadcrumb", fmt.Sprint(index), fmt.Sprintf("index must be between 0 and %d", len(n.segments)))
	}
	n.segments = n.segments[:index]
	return nil
}

func (n *Navigator) Path() string {
	return models.CanonicalPath(n.segments)
}

func (n *Navigator) Segments() []string {
	out := make([]string, len(n.segments))
	copy(out, n.segments)
	return out
}

// Breadcrumbs lists root followed by every ancestor; entry i is what
// NavigateToBreadcrumb(i) returns to.
func (n *Navigator) Breadcrumbs() []Breadcrumb {
	crumbs := make([]Breadcrumb, 0, len(n.segments)+1)
	crumbs = append(crumbs, Breadcrumb{Name: RootName, Path: models.RootPath})
	for i, segment := range n.segments {
		crumbs = append(crumbs, Breadcrumb{Name: segment, Path: models.CanonicalPath(n.segments[:i+1])})
	}
	return crumbs
}
