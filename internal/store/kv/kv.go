// Package kv provides the string key/value substrates the persistent store is
// built on: in-memory, a TOML file and a Postgres table.
package kv

import "errors"

// ErrClosed is returned by operations on a closed substrate.
var ErrClosed = errors.New("kv: substrate closed")

// Op is a single write inside an Apply batch.
type Op struct {
	Key    string
	Value  string
	Delete bool
}

// Put returns an Op that sets key to value.
func Put(key, value string) Op {
	return Op{Key: key, Value: value}
}

// Delete returns an Op that removes key.
func Delete(key string) Op {
	return Op{Key: key, Delete: true}
}

// Substrate is a durable string map. Apply commits all ops or none of them.
type Substrate interface {
	Get(key string) (value string, ok bool, err error)
	Set(key, value string) error
	Remove(key string) error
	Apply(ops ...Op) error
	Close() error
}

func applyTo(entries map[string]string, ops []Op) {
	for _, op := range ops {
		if op.Delete {
			delete(entries, op.Key)
			continue
		}
		entries[op.Key] = op.Value
	}
}
