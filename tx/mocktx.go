// Package tx models the mock transaction JSON consumed by the debugger: the
// transaction under test plus the resolved cells it spends and depends on,
// enough to pick a script group and extract its program.
package tx

import (
	"encoding/binary"
	"encoding/json"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/pkg/errors"
	"golang.org/x/crypto/blake2b"
)

type ScriptGroupType string

const (
	GroupLock ScriptGroupType = "lock"
	GroupType ScriptGroupType = "type"
)

type OutPoint struct {
	TxHash hexutil.Bytes  `json:"tx_hash"`
	Index  hexutil.Uint64 `json:"index"`
}

type CellInput struct {
	Since          hexutil.Uint64 `json:"since"`
	PreviousOutput OutPoint       `json:"previous_output"`
}

type Script struct {
	CodeHash hexutil.Bytes `json:"code_hash"`
	HashType string        `json:"hash_type"`
	Args     hexutil.Bytes `json:"args"`
}

type CellOutput struct {
	Capacity hexutil.Uint64 `json:"capacity"`
	Lock     *Script        `json:"lock"`
	Type     *Script        `json:"type"`
}

type CellDep struct {
	OutPoint OutPoint `json:"out_point"`
	DepType  string   `json:"dep_type"`
}

type MockInput struct {
	Input  CellInput     `json:"input"`
	Output CellOutput    `json:"output"`
	Data   hexutil.Bytes `json:"data"`
}

type MockCellDep struct {
	CellDep CellDep       `json:"cell_dep"`
	Output  CellOutput    `json:"output"`
	Data    hexutil.Bytes `json:"data"`
}

type MockInfo struct {
	Inputs     []MockInput     `json:"inputs"`
	CellDeps   []MockCellDep   `json:"cell_deps"`
	HeaderDeps []hexutil.Bytes `json:"header_deps"`
}

type Transaction struct {
	Version     hexutil.Uint64  `json:"version"`
	CellDeps    []CellDep       `json:"cell_deps"`
	HeaderDeps  []hexutil.Bytes `json:"header_deps"`
	Inputs      []CellInput     `json:"inputs"`
	Outputs     []CellOutput    `json:"outputs"`
	OutputsData []hexutil.Bytes `json:"outputs_data"`
	Witnesses   []hexutil.Bytes `json:"witnesses"`
}

type MockTransaction struct {
	MockInfo MockInfo    `json:"mock_info"`
	Tx       Transaction `json:"tx"`
}

// Parse decodes a mock transaction from its JSON representation. Template
// markers must already be expanded.
func Parse(data []byte) (*MockTransaction, error) {
	var mtx MockTransaction
	if err := json.Unmarshal(data, &mtx); err != nil {
		return nil, errors.Wrap(err, "parsing mock transaction")
	}
	for i, in := range mtx.MockInfo.Inputs {
		if in.Output.Lock == nil {
			return nil, errors.Errorf("input %d has no lock script", i)
		}
		if len(in.Output.Lock.CodeHash) != 32 {
			return nil, errors.Errorf("input %d lock code_hash is not 32 bytes", i)
		}
	}
	return &mtx, nil
}

// Serialize returns the script's molecule table encoding (code_hash,
// hash_type, args). The script hash is blake2b-256 of these bytes, and the
// load_script syscall feeds them back to the running program.
func (s *Script) Serialize() []byte {
	// molecule table: full size, three field offsets, then the fields
	const headerSize = 4 + 4*3
	body := make([]byte, 0, headerSize+32+1+4+len(s.Args))
	offsets := [3]uint32{headerSize, headerSize + 32, headerSize + 33}
	full := offsets[2] + 4 + uint32(len(s.Args))

	var u32 [4]byte
	put := func(v uint32) {
		binary.LittleEndian.PutUint32(u32[:], v)
		body = append(body, u32[:]...)
	}
	put(full)
	for _, o := range offsets {
		put(o)
	}
	body = append(body, s.CodeHash...)
	body = append(body, hashTypeByte(s.HashType))
	put(uint32(len(s.Args)))
	body = append(body, s.Args...)
	return body
}

func hashTypeByte(ht string) byte {
	switch ht {
	case "type":
		return 1
	case "data1":
		return 2
	case "data2":
		return 4
	default: // "data"
		return 0
	}
}

func (s *Script) Hash() [32]byte {
	return blake2b.Sum256(s.Serialize())
}

// TxHash is a stable digest of the transaction body, fed to scripts through
// the load_tx_hash syscall.
func (m *MockTransaction) TxHash() ([32]byte, error) {
	data, err := json.Marshal(&m.Tx)
	if err != nil {
		return [32]byte{}, errors.Wrap(err, "serializing tx")
	}
	return blake2b.Sum256(data), nil
}
