// Package corpus produces directories of generated modules for seeding
// fuzzers and engine test suites.
//
// Each seed is generated independently and in parallel. Modules are checked
// with the structural validator and, when the configuration only uses
// features wazero implements, compiled with wazero. A msgpack manifest
// records what each file is and how it was checked.
package corpus
