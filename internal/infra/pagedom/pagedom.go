// Package pagedom models the ad slots of one rendered page: elements keyed
// by id, each with inline styles and attributes.
package pagedom

import (
	"sync"

	"bizzshort/internal/usecase"
)

type Document struct {
	mu       sync.Mutex
	order    []string
	elements map[string]*Element
}

func New(ids ...string) *Document {
	d := &Document{elements: make(map[string]*Element, len(ids))}
	for _, id := range ids {
		d.Append(id)
	}
	return d
}

// Append adds an empty element. An existing id is left untouched.
func (d *Document) Append(id string) *Element {
	d.mu.Lock()
	defer d.mu.Unlock()
	if el, ok := d.elements[id]; ok {
		return el
	}
	el := &Element{
		doc:   d,
		id:    id,
		style: make(map[string]string),
		attrs: map[string]string{"data-ad-id": id},
	}
	d.elements[id] = el
	d.order = append(d.order, id)
	return el
}

func (d *Document) Element(id string) (usecase.Element, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	el, ok := d.elements[id]
	if !ok {
		return nil, false
	}
	return el, true
}

func (d *Document) Remove(id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	el, ok := d.elements[id]
	if !ok {
		return false
	}
	el.detached = true
	delete(d.elements, id)
	for i, existing := range d.order {
		if existing == id {
			d.order = append(d.order[:i], d.order[i+1:]...)
			break
		}
	}
	return true
}

// IDs returns element ids in document order.
func (d *Document) IDs() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, len(d.order))
	copy(out, d.order)
	return out
}

type Element struct {
	doc      *Document
	id       string
	style    map[string]string
	attrs    map[string]string
	detached bool
}

func (e *Element) ID() string {
	return e.id
}

// SetStyle writes an inline style property. Writes to a detached element are
// dropped.
func (e *Element) SetStyle(property, value string) {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	if e.detached {
		return
	}
	if value == "" {
		delete(e.style, property)
		return
	}
	e.style[property] = value
}

func (e *Element) ClearStyle(properties ...string) {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	for _, p := range properties {
		delete(e.style, p)
	}
}

func (e *Element) Styles() map[string]string {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	return copyMap(e.style)
}

func (e *Element) SetAttribute(name, value string) {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	if e.detached {
		return
	}
	e.attrs[name] = value
}

func (e *Element) RemoveAttribute(name string) {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	delete(e.attrs, name)
}

func (e *Element) Attributes() map[string]string {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	return copyMap(e.attrs)
}

func copyMap(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

var _ usecase.Page = (*Document)(nil)
