// Package table implements the allocated table: the unordered mapping
// from device address to Block used to recover a block on deallocate.
// It is deliberately the thinnest of the four core elements — a plain
// map guarded entirely by the engine's own coarse mutex, since every
// access is already serialized through that one lock and per-entry
// locking would have nothing to relieve.
package table

import "streamcache/internal/block"

// Table maps a live device address to the Block that owns it.
type Table struct {
	byAddress map[block.Address]*block.Block
}

// New returns an empty table.
func New() *Table {
	return &Table{byAddress: make(map[block.Address]*block.Block)}
}

// Put records b as allocated at its own address.
func (t *Table) Put(b *block.Block) {
	t.byAddress[b.Address] = b
}

// Get looks up the block currently allocated at addr.
func (t *Table) Get(addr block.Address) (*block.Block, bool) {
	b, ok := t.byAddress[addr]
	return b, ok
}

// Delete removes addr from the table, returning the block it held if
// present.
func (t *Table) Delete(addr block.Address) (*block.Block, bool) {
	b, ok := t.byAddress[addr]
	if !ok {
		return nil, false
	}
	delete(t.byAddress, addr)
	return b, true
}

// Len reports how many blocks are currently allocated.
func (t *Table) Len() int {
	return len(t.byAddress)
}
