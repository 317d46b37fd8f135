package object

// Relation is a many-to-many edge set stored on an object field. The full
// membership lives on the server; locally we only track the "known objects"
// cache - members this process has added, removed, or otherwise observed -
// which is what offline $relatedTo queries match against.
type Relation struct {
	targetClass string
	known       map[*Object]bool
}

// NewRelation creates an empty relation targeting the given class.
// An empty targetClass is filled in by the first added object.
func NewRelation(targetClass string) *Relation {
	return &Relation{
		targetClass: targetClass,
		known:       make(map[*Object]bool),
	}
}

// TargetClass returns the class of the relation's members.
func (r *Relation) TargetClass() string {
	return r.targetClass
}

// Knows reports whether obj is in the locally-known membership cache.
func (r *Relation) Knows(obj *Object) bool {
	return r.known[obj]
}

// KnownObjects returns the locally-known members.
func (r *Relation) KnownObjects() []*Object {
	out := make([]*Object, 0, len(r.known))
	for o := range r.known {
		out = append(out, o)
	}
	return out
}

func (r *Relation) add(obj *Object) {
	if r.targetClass == "" {
		r.targetClass = obj.ClassName()
	}
	r.known[obj] = true
}

func (r *Relation) remove(obj *Object) {
	delete(r.known, obj)
}

// AddKnown records an observed member without going through an operation;
// used when decoding cached relation state.
func (r *Relation) AddKnown(obj *Object) {
	r.add(obj)
}

func (r *Relation) clone() *Relation {
	c := NewRelation(r.targetClass)
	for o := range r.known {
		c.known[o] = true
	}
	return c
}
