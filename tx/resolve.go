package tx

import (
	"bytes"

	"github.com/pkg/errors"
	"golang.org/x/crypto/blake2b"
)

// FindScript locates the script of the given group type whose hash matches.
// Lock scripts live on inputs; type scripts on inputs and outputs.
func (m *MockTransaction) FindScript(group ScriptGroupType, hash [32]byte) (*Script, error) {
	match := func(s *Script) bool {
		if s == nil {
			return false
		}
		h := s.Hash()
		return bytes.Equal(h[:], hash[:])
	}
	for _, in := range m.MockInfo.Inputs {
		switch group {
		case GroupLock:
			if match(in.Output.Lock) {
				return in.Output.Lock, nil
			}
		case GroupType:
			if match(in.Output.Type) {
				return in.Output.Type, nil
			}
		}
	}
	if group == GroupType {
		for _, out := range m.Tx.Outputs {
			if match(out.Type) {
				return out.Type, nil
			}
		}
	}
	return nil, errors.Errorf("no %s script with hash %x", group, hash)
}

// ScriptByCell resolves a script by cell position instead of hash:
// cellType is "input" or "output".
func (m *MockTransaction) ScriptByCell(group ScriptGroupType, cellType string, index int) (*Script, error) {
	switch {
	case group == GroupLock && cellType == "input":
		if index >= len(m.MockInfo.Inputs) {
			return nil, errors.Errorf("input index %d out of bounds", index)
		}
		return m.MockInfo.Inputs[index].Output.Lock, nil
	case group == GroupType && cellType == "input":
		if index >= len(m.MockInfo.Inputs) {
			return nil, errors.Errorf("input index %d out of bounds", index)
		}
		if s := m.MockInfo.Inputs[index].Output.Type; s != nil {
			return s, nil
		}
		return nil, errors.Errorf("input %d has no type script", index)
	case group == GroupType && cellType == "output":
		if index >= len(m.Tx.Outputs) {
			return nil, errors.Errorf("output index %d out of bounds", index)
		}
		if s := m.Tx.Outputs[index].Type; s != nil {
			return s, nil
		}
		return nil, errors.Errorf("output %d has no type script", index)
	}
	return nil, errors.Errorf("invalid script selector: %s %s %d", group, cellType, index)
}

// ExtractProgram finds the binary a script refers to. For data hash types the
// code_hash is the blake2b digest of a dep cell's data; for the type hash
// type it is the hash of a dep cell's type script.
func (m *MockTransaction) ExtractProgram(s *Script) ([]byte, error) {
	for _, dep := range m.MockInfo.CellDeps {
		switch s.HashType {
		case "type":
			if dep.Output.Type != nil {
				h := dep.Output.Type.Hash()
				if bytes.Equal(h[:], s.CodeHash) {
					return dep.Data, nil
				}
			}
		default:
			h := blake2b.Sum256(dep.Data)
			if bytes.Equal(h[:], s.CodeHash) {
				return dep.Data, nil
			}
		}
	}
	return nil, errors.Errorf("no cell dep provides code %x", s.CodeHash)
}
