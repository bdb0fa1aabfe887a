package assemble

import (
	"sort"

	"github.com/wasmlang/compiler/internal/ir"
	"github.com/wasmlang/compiler/internal/leb128"
)

const (
	nameSubsecFunction = 1
	nameSubsecLocal    = 2
)

func encodeNameString(s string) []byte {
	return append(leb128.EncodeUint32(uint32(len(s))), s...)
}

// encodeFunctionNameSubsection builds the name section's function-names
// subsection ("conventional" custom name section):
// (index, name) pairs for every function that has one, sorted by index.
func encodeFunctionNameSubsection(funcs []*ir.Function) []byte {
	type entry struct {
		idx  uint32
		name string
	}
	var entries []entry
	for _, f := range funcs {
		if f.Name == "" {
			continue
		}
		entries = append(entries, entry{idx: f.Index, name: f.Name})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].idx < entries[j].idx })

	var payload []byte
	payload = append(payload, leb128.EncodeUint32(uint32(len(entries)))...)
	for _, e := range entries {
		payload = append(payload, leb128.EncodeUint32(e.idx)...)
		payload = append(payload, encodeNameString(e.name)...)
	}
	return append([]byte{nameSubsecFunction}, prefixed(payload)...)
}

// encodeLocalNameSubsection builds the local-names subsection: for every
// function with at least one named local, a (funcidx, vector of
// (localidx, name)) entry.
func encodeLocalNameSubsection(funcs []*ir.Function) []byte {
	type localEntry struct {
		idx  uint32
		name string
	}
	var funcIdxs []uint32
	perFunc := map[uint32][]localEntry{}
	for _, f := range funcs {
		var locals []localEntry
		for _, l := range f.Locals {
			if l.Name == "" {
				continue
			}
			locals = append(locals, localEntry{idx: l.Slot, name: l.Name})
		}
		if len(locals) == 0 {
			continue
		}
		sort.Slice(locals, func(i, j int) bool { return locals[i].idx < locals[j].idx })
		perFunc[f.Index] = locals
		funcIdxs = append(funcIdxs, f.Index)
	}
	sort.Slice(funcIdxs, func(i, j int) bool { return funcIdxs[i] < funcIdxs[j] })

	var payload []byte
	payload = append(payload, leb128.EncodeUint32(uint32(len(funcIdxs)))...)
	for _, fi := range funcIdxs {
		payload = append(payload, leb128.EncodeUint32(fi)...)
		locals := perFunc[fi]
		payload = append(payload, leb128.EncodeUint32(uint32(len(locals)))...)
		for _, l := range locals {
			payload = append(payload, leb128.EncodeUint32(l.idx)...)
			payload = append(payload, encodeNameString(l.name)...)
		}
	}
	return append([]byte{nameSubsecLocal}, prefixed(payload)...)
}

// prefixed length-prefixes payload with an unsigned LEB128 size, the
// shape every custom subsection and section body uses.
func prefixed(payload []byte) []byte {
	return append(leb128.EncodeUint32(uint32(len(payload))), payload...)
}

// encodeNameSection builds the custom "name" section body (section id
// byte and its own length prefix are added by the caller, matching
// every other section).
func encodeNameSection(funcs []*ir.Function) []byte {
	var out []byte
	out = append(out, encodeNameString("name")...)
	out = append(out, encodeFunctionNameSubsection(funcs)...)
	out = append(out, encodeLocalNameSubsection(funcs)...)
	return out
}
