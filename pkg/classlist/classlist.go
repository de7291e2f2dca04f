// Package classlist is an in-memory stand-in for an element's class list:
// an unordered set of class names with add, remove and toggle.
//
// A ClassList is not safe for concurrent use; owners serialize access.
package classlist

import (
	"sort"
	"strings"
)

// ClassList is a set of class names.
type ClassList struct {
	set map[string]struct{}
}

// New returns a ClassList holding the given classes.
func New(classes ...string) *ClassList {
	cl := &ClassList{set: make(map[string]struct{}, len(classes))}
	for _, c := range classes {
		cl.Add(c)
	}
	return cl
}

// Parse splits a class attribute value on whitespace.
func Parse(attr string) *ClassList {
	return New(strings.Fields(attr)...)
}

// Add inserts class. Adding a present class is a no-op; empty names are ignored.
func (cl *ClassList) Add(class string) {
	if class == "" {
		return
	}
	cl.set[class] = struct{}{}
}

// Remove deletes class if present.
func (cl *ClassList) Remove(class string) {
	delete(cl.set, class)
}

// Toggle adds class when on is true and removes it otherwise.
func (cl *ClassList) Toggle(class string, on bool) {
	if on {
		cl.Add(class)
		return
	}
	cl.Remove(class)
}

// Contains reports whether class is present.
func (cl *ClassList) Contains(class string) bool {
	_, ok := cl.set[class]
	return ok
}

// Len returns the number of classes.
func (cl *ClassList) Len() int {
	return len(cl.set)
}

// Names returns the classes in sorted order.
func (cl *ClassList) Names() []string {
	out := make([]string, 0, len(cl.set))
	for c := range cl.set {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// String renders the list as a class attribute value.
func (cl *ClassList) String() string {
	return strings.Join(cl.Names(), " ")
}
