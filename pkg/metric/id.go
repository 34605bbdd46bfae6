// Package metric implements the sampling substrate's primitives: counters,
// gauges, histograms, and their dense/sparse group variants, addressed by a
// structural (name, labels) identity.
package metric

import "strings"

// Label is a single key/value pair attached to a MetricId. Order is
// insertion order but does not affect equality.
type Label struct {
	Key   string
	Value string
}

// Id identifies a metric cell. Equality is structural over name and the set
// of labels; insertion order of labels is irrelevant. Once registered, an
// Id's labels are immutable.
type Id struct {
	Name   string
	labels []Label
}

// NewId builds an Id from a name and an ordered list of key/value pairs.
// The labels are copied so later mutation of kvs does not affect the Id.
func NewId(name string, kvs ...Label) Id {
	labels := make([]Label, len(kvs))
	copy(labels, kvs)
	return Id{Name: name, labels: labels}
}

// WithLabel returns a copy of id with an additional label appended, leaving
// the original Id unchanged.
func (id Id) WithLabel(key, value string) Id {
	labels := make([]Label, len(id.labels), len(id.labels)+1)
	copy(labels, id.labels)
	labels = append(labels, Label{Key: key, Value: value})
	return Id{Name: id.Name, labels: labels}
}

// Labels returns a copy of the id's labels in insertion order.
func (id Id) Labels() []Label {
	out := make([]Label, len(id.labels))
	copy(out, id.labels)
	return out
}

// LabelMap returns the id's labels as a map, convenient for serialisation.
func (id Id) LabelMap() map[string]string {
	m := make(map[string]string, len(id.labels))
	for _, l := range id.labels {
		m[l.Key] = l.Value
	}
	return m
}

// Equal reports structural equality: same name, same label set regardless
// of insertion order.
func (id Id) Equal(other Id) bool {
	if id.Name != other.Name || len(id.labels) != len(other.labels) {
		return false
	}
	a := id.LabelMap()
	b := other.LabelMap()
	for k, v := range a {
		if b[k] != v {
			return false
		}
	}
	return true
}

// key returns a canonical string usable as a map key for an Id: the name
// followed by sorted "k=v" pairs. Labels are few per metric so an
// insertion-sort is cheap and avoids importing sort for small N.
func (id Id) key() string {
	labels := id.Labels()
	for i := 1; i < len(labels); i++ {
		j := i
		for j > 0 && labels[j-1].Key > labels[j].Key {
			labels[j-1], labels[j] = labels[j], labels[j-1]
			j--
		}
	}
	var b strings.Builder
	b.WriteString(id.Name)
	for _, l := range labels {
		b.WriteByte('\x1f')
		b.WriteString(l.Key)
		b.WriteByte('=')
		b.WriteString(l.Value)
	}
	return b.String()
}

// Key exposes the canonical string form of the Id, used by the registry as
// a map key so identical (name, labels) pairs resolve to one storage cell.
func (id Id) Key() string { return id.key() }

func (id Id) String() string { return id.key() }
