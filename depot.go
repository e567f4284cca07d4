package weft

import "sync"

// Depot is per-request, typed scratch space for passing values between the
// hoops and the goal of a single request-response cycle.
//
// A Depot is owned exclusively by the request it belongs to; nothing in the
// core framework shares it across requests or goroutines.
type Depot struct {
	values map[string]interface{}
	once   map[string]*sync.Once
}

// newDepot returns a pointer of a new, empty instance of the `Depot`.
func newDepot() *Depot {
	return &Depot{
		values: map[string]interface{}{},
	}
}

// reset clears all entries in the d so it can be reused for the next request.
func (d *Depot) reset() {
	for k := range d.values {
		delete(d.values, k)
	}

	for k := range d.once {
		delete(d.once, k)
	}
}

// Set stores the value under the key, overwriting any previous value.
func (d *Depot) Set(key string, value interface{}) {
	d.values[key] = value
}

// Get returns the value stored under the key, and whether it was present.
func (d *Depot) Get(key string) (interface{}, bool) {
	v, ok := d.values[key]
	return v, ok
}

// MustGet returns the value stored under the key. It panics if the key is
// absent, which is always a programming error (a hoop reading a value that an
// earlier hoop was supposed to have set).
func (d *Depot) MustGet(key string) interface{} {
	v, ok := d.values[key]
	if !ok {
		panic("weft: no value in depot for key " + key)
	}

	return v
}

// GetString returns the value stored under the key as a string, or "" if the
// key is absent or not a string.
func (d *Depot) GetString(key string) string {
	if v, ok := d.values[key].(string); ok {
		return v
	}

	return ""
}

// GetInt returns the value stored under the key as an int, or 0 if the key is
// absent or not an int.
func (d *Depot) GetInt(key string) int {
	if v, ok := d.values[key].(int); ok {
		return v
	}

	return 0
}

// Delete removes the value stored under the key, if any.
func (d *Depot) Delete(key string) {
	delete(d.values, key)
}

// Obtain returns the value stored under the key, computing and storing it via
// newValue exactly once per request if it is absent.
func (d *Depot) Obtain(key string, newValue func() interface{}) interface{} {
	if v, ok := d.values[key]; ok {
		return v
	}

	v := newValue()
	d.values[key] = v

	return v
}
