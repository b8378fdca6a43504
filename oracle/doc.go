// Package oracle turns an opaque byte slice into generation decisions.
//
// Unstructured is a cursor over the remaining input. Integer ranges and
// booleans consume bytes from the front; length prefixes are taken from the
// back. Reads past the end never fail: they yield the lower bound, zero or
// false, so generation always terminates. Only Choose over an empty list and
// explicit fixed-size reads report errors.
//
//	u := oracle.New(data)
//	n := oracle.IntInRange(u, 0, 10)
//	err := oracle.Loop(u, 1, 5, func() (bool, error) {
//	    return true, nil
//	})
package oracle
