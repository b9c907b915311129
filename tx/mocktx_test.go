package tx

import (
	"encoding/binary"
	"fmt"
	"testing"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/blake2b"
)

func sampleTxJSON(codeHash string) []byte {
	return []byte(fmt.Sprintf(`{
  "mock_info": {
    "inputs": [
      {
        "input": {"since": "0x0", "previous_output": {"tx_hash": "0x%064d", "index": "0x0"}},
        "output": {
          "capacity": "0x4b9f96b00",
          "lock": {"code_hash": "%s", "hash_type": "data", "args": "0x1234"},
          "type": null
        },
        "data": "0xdeadbeef"
      }
    ],
    "cell_deps": [],
    "header_deps": []
  },
  "tx": {
    "version": "0x0",
    "cell_deps": [],
    "header_deps": [],
    "inputs": [
      {"since": "0x0", "previous_output": {"tx_hash": "0x%064d", "index": "0x0"}}
    ],
    "outputs": [
      {
        "capacity": "0x4b9f96b00",
        "lock": {"code_hash": "%s", "hash_type": "data", "args": "0x"},
        "type": {"code_hash": "%s", "hash_type": "data", "args": "0xff"}
      }
    ],
    "outputs_data": ["0xcafe"],
    "witnesses": ["0xabcd"]
  }
}`, 0, codeHash, 0, codeHash, codeHash))
}

const zeroHash = "0x0000000000000000000000000000000000000000000000000000000000000000"

func TestParseMockTransaction(t *testing.T) {
	mtx, err := Parse(sampleTxJSON(zeroHash))
	require.NoError(t, err)
	require.Len(t, mtx.MockInfo.Inputs, 1)
	require.Equal(t, "data", mtx.MockInfo.Inputs[0].Output.Lock.HashType)
	require.Equal(t, hexutil.Bytes{0x12, 0x34}, mtx.MockInfo.Inputs[0].Output.Lock.Args)
	require.Len(t, mtx.Tx.Witnesses, 1)
}

func TestParseRejectsMissingLock(t *testing.T) {
	_, err := Parse([]byte(`{"mock_info":{"inputs":[{"input":{},"output":{},"data":"0x"}]},"tx":{}}`))
	require.Error(t, err)
	require.Contains(t, err.Error(), "lock")
}

func TestParseRejectsShortCodeHash(t *testing.T) {
	_, err := Parse(sampleTxJSON("0x1234"))
	require.Error(t, err)
}

func TestScriptSerializeLayout(t *testing.T) {
	s := &Script{
		CodeHash: make(hexutil.Bytes, 32),
		HashType: "type",
		Args:     hexutil.Bytes{0xaa, 0xbb, 0xcc},
	}
	raw := s.Serialize()

	// molecule table: total size, then three field offsets
	require.Equal(t, uint32(len(raw)), binary.LittleEndian.Uint32(raw[0:4]))
	codeHashOff := binary.LittleEndian.Uint32(raw[4:8])
	hashTypeOff := binary.LittleEndian.Uint32(raw[8:12])
	argsOff := binary.LittleEndian.Uint32(raw[12:16])
	require.Equal(t, uint32(16), codeHashOff)
	require.Equal(t, uint32(48), hashTypeOff)
	require.Equal(t, uint32(49), argsOff)
	// hash_type "type" encodes as 1
	require.Equal(t, byte(1), raw[hashTypeOff])
	// args is a fixvec: u32 length then the bytes
	require.Equal(t, uint32(3), binary.LittleEndian.Uint32(raw[argsOff:argsOff+4]))
	require.Equal(t, []byte{0xaa, 0xbb, 0xcc}, raw[argsOff+4:])
}

func TestScriptHashStable(t *testing.T) {
	a := &Script{CodeHash: make(hexutil.Bytes, 32), HashType: "data", Args: hexutil.Bytes{1}}
	b := &Script{CodeHash: make(hexutil.Bytes, 32), HashType: "data", Args: hexutil.Bytes{1}}
	c := &Script{CodeHash: make(hexutil.Bytes, 32), HashType: "data", Args: hexutil.Bytes{2}}
	require.Equal(t, a.Hash(), b.Hash())
	require.NotEqual(t, a.Hash(), c.Hash())
	require.Equal(t, blake2b.Sum256(a.Serialize()), a.Hash())
}

func TestFindScriptByHash(t *testing.T) {
	mtx, err := Parse(sampleTxJSON(zeroHash))
	require.NoError(t, err)

	lock := mtx.MockInfo.Inputs[0].Output.Lock
	found, err := mtx.FindScript(GroupLock, lock.Hash())
	require.NoError(t, err)
	require.Equal(t, lock, found)

	// type scripts are also searched on outputs
	typ := mtx.Tx.Outputs[0].Type
	found, err = mtx.FindScript(GroupType, typ.Hash())
	require.NoError(t, err)
	require.Equal(t, typ, found)

	_, err = mtx.FindScript(GroupLock, [32]byte{0xff})
	require.Error(t, err)
}

func TestScriptByCell(t *testing.T) {
	mtx, err := Parse(sampleTxJSON(zeroHash))
	require.NoError(t, err)

	s, err := mtx.ScriptByCell(GroupLock, "input", 0)
	require.NoError(t, err)
	require.Equal(t, mtx.MockInfo.Inputs[0].Output.Lock, s)

	s, err = mtx.ScriptByCell(GroupType, "output", 0)
	require.NoError(t, err)
	require.Equal(t, mtx.Tx.Outputs[0].Type, s)

	_, err = mtx.ScriptByCell(GroupLock, "input", 5)
	require.Error(t, err)
	_, err = mtx.ScriptByCell(GroupType, "input", 0)
	require.Error(t, err)
	// lock scripts never live on outputs
	_, err = mtx.ScriptByCell(GroupLock, "output", 0)
	require.Error(t, err)
}

func TestExtractProgramByDataHash(t *testing.T) {
	program := []byte{0x7f, 'E', 'L', 'F', 1, 2, 3}
	codeHash := blake2b.Sum256(program)
	mtx, err := Parse(sampleTxJSON(hexutil.Encode(codeHash[:])))
	require.NoError(t, err)
	mtx.MockInfo.CellDeps = []MockCellDep{{Data: program}}

	out, err := mtx.ExtractProgram(mtx.MockInfo.Inputs[0].Output.Lock)
	require.NoError(t, err)
	require.Equal(t, program, out)
}

func TestExtractProgramByTypeHash(t *testing.T) {
	depType := &Script{CodeHash: make(hexutil.Bytes, 32), HashType: "data", Args: hexutil.Bytes{9}}
	typeHash := depType.Hash()
	program := []byte{1, 2, 3, 4}

	mtx, err := Parse(sampleTxJSON(hexutil.Encode(typeHash[:])))
	require.NoError(t, err)
	mtx.MockInfo.Inputs[0].Output.Lock.HashType = "type"
	mtx.MockInfo.CellDeps = []MockCellDep{{
		Output: CellOutput{Type: depType},
		Data:   program,
	}}

	out, err := mtx.ExtractProgram(mtx.MockInfo.Inputs[0].Output.Lock)
	require.NoError(t, err)
	require.Equal(t, program, out)
}

func TestExtractProgramMissing(t *testing.T) {
	mtx, err := Parse(sampleTxJSON(zeroHash))
	require.NoError(t, err)
	_, err = mtx.ExtractProgram(mtx.MockInfo.Inputs[0].Output.Lock)
	require.Error(t, err)
}

func TestTxHashDeterministic(t *testing.T) {
	a, err := Parse(sampleTxJSON(zeroHash))
	require.NoError(t, err)
	b, err := Parse(sampleTxJSON(zeroHash))
	require.NoError(t, err)
	ha, err := a.TxHash()
	require.NoError(t, err)
	hb, err := b.TxHash()
	require.NoError(t, err)
	require.Equal(t, ha, hb)

	a.Tx.Witnesses[0] = hexutil.Bytes{0xff}
	hc, err := a.TxHash()
	require.NoError(t, err)
	require.NotEqual(t, ha, hc)
}
