package interval

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrInvalidName rejects category names at construction time.
var ErrInvalidName = errors.New("interval: invalid category name")

// namePattern: leading letter, then letters, digits, colon, underscore,
// hyphen or space.
var namePattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9:_\- ]*$`)

// Category is one node of a hierarchical namespace for tags. The zero
// value is not a valid category; use NewCategory or a CategoryPool.
type Category struct {
	name   string
	parent *Category
}

// NewCategory validates the name and attaches the node under parent
// (nil for a root).
func NewCategory(name string, parent *Category) (*Category, error) {
	if !namePattern.MatchString(name) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return &Category{name: name, parent: parent}, nil
}

// Child creates a validated subcategory of c.
func (c *Category) Child(name string) (*Category, error) {
	return NewCategory(name, c)
}

// Name returns the node's own name.
func (c *Category) Name() string { return c.name }

// Parent returns the enclosing category, or nil for a root.
func (c *Category) Parent() *Category { return c.parent }

// FullPath is the "/"-joined ancestor chain, root first.
func (c *Category) FullPath() string {
	if c == nil {
		return ""
	}
	if c.parent == nil {
		return c.name
	}
	return c.parent.FullPath() + "/" + c.name
}

// Contains reports whether the tag's category is this category or any
// descendant of it, walking parent links.
func (c *Category) Contains(t Tag) bool {
	if c == nil {
		return false
	}
	for cur := t.Category; cur != nil; cur = cur.parent {
		if cur.samePath(c) {
			return true
		}
	}
	return false
}

func (c *Category) samePath(other *Category) bool {
	return c != nil && other != nil && c.FullPath() == other.FullPath()
}

// CategoryPool caches categories by full path so that repeated lookups
// of "a/b/c" share intermediate nodes.
type CategoryPool struct {
	byPath map[string]*Category
}

// NewCategoryPool returns an empty pool.
func NewCategoryPool() *CategoryPool {
	return &CategoryPool{byPath: make(map[string]*Category)}
}

// Get resolves a "/"-separated path, creating and caching any missing
// nodes. Each path element is validated like a category name.
func (p *CategoryPool) Get(path string) (*Category, error) {
	names := strings.Split(path, "/")
	for i, n := range names {
		names[i] = strings.TrimSpace(n)
		if names[i] == "" {
			return nil, fmt.Errorf("%w: empty element in path %q", ErrInvalidName, path)
		}
	}
	return p.get(names)
}

// Has reports whether the exact full path is already cached.
func (p *CategoryPool) Has(path string) bool {
	_, ok := p.byPath[path]
	return ok
}

func (p *CategoryPool) get(names []string) (*Category, error) {
	path := strings.Join(names, "/")
	if c, ok := p.byPath[path]; ok {
		return c, nil
	}
	var parent *Category
	if len(names) > 1 {
		var err error
		parent, err = p.get(names[:len(names)-1])
		if err != nil {
			return nil, err
		}
	}
	c, err := NewCategory(names[len(names)-1], parent)
	if err != nil {
		return nil, err
	}
	p.byPath[path] = c
	return c, nil
}
