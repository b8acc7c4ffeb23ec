// Package tracking provides change tracking for world objects. Update layers
// register which object properties they read while rebuilding; a later change
// to one of those properties re-flags exactly the layers that depend on it.
package tracking

// Tracker accumulates changed aspect labels for a single world object.
// It is not safe for concurrent use; objects are updated from one goroutine.
type Tracker struct {
	changed map[string]struct{}
	labels  map[string]struct{}
	usage   map[string]map[string]struct{} // property -> labels that read it
	scope   []string
}

// NewTracker creates an empty tracker with no pending changes.
//
// Returns:
//   - *Tracker: the new tracker
func NewTracker() *Tracker {
	return &Tracker{
		changed: map[string]struct{}{},
		labels:  map[string]struct{}{},
		usage:   map[string]map[string]struct{}{},
	}
}

// TrackUsage runs fn with the given label active, recording every property
// touched by fn as a dependency of that label. Previous dependencies of the
// label are dropped first, so each rebuild re-arms the label from scratch.
// Scopes may nest; Touch records against the innermost label only.
//
// Parameters:
//   - label: the update layer being rebuilt (e.g. "resources")
//   - fn: the rebuild work during which property reads are recorded
func (t *Tracker) TrackUsage(label string, fn func()) {
	t.labels[label] = struct{}{}
	for _, readers := range t.usage {
		delete(readers, label)
	}
	t.scope = append(t.scope, label)
	defer func() {
		t.scope = t.scope[:len(t.scope)-1]
	}()
	fn()
}

// Touch records that the active label read the given property. Outside a
// TrackUsage scope it does nothing.
//
// Parameters:
//   - property: the property name being read
func (t *Tracker) Touch(property string) {
	if len(t.scope) == 0 {
		return
	}
	label := t.scope[len(t.scope)-1]
	readers, ok := t.usage[property]
	if !ok {
		readers = map[string]struct{}{}
		t.usage[property] = readers
	}
	readers[label] = struct{}{}
}

// Notify marks an aspect as changed. Every label that touched the aspect
// during its last rebuild is flagged, and if the aspect is itself a known
// label it is flagged directly.
//
// Parameters:
//   - property: the property or label that changed
func (t *Tracker) Notify(property string) {
	if _, ok := t.labels[property]; ok {
		t.changed[property] = struct{}{}
	}
	for label := range t.usage[property] {
		t.changed[label] = struct{}{}
	}
}

// PopChanged returns the labels flagged since the last call and resets the
// pending set. The returned map is owned by the caller and may be mutated.
//
// Returns:
//   - map[string]struct{}: the changed labels, possibly empty
func (t *Tracker) PopChanged() map[string]struct{} {
	out := t.changed
	t.changed = map[string]struct{}{}
	return out
}
