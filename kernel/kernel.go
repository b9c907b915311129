// Package kernel implements the syscall surface scripts see: program exit,
// debug output, and the data-loading calls that expose the transaction under
// test. Data loads follow the partial-read convention: the script passes a
// buffer, a pointer to its length, and an offset; the full size is written
// back through the length pointer regardless of how much fit.
package kernel

import (
	"math/rand"
	"time"

	log "github.com/inconshreveable/log15"
	"github.com/pkg/errors"

	"github.com/ckb-contrib/ckb-debugger/arch/riscv"
	"github.com/ckb-contrib/ckb-debugger/models"
	"github.com/ckb-contrib/ckb-debugger/models/cpu"
	"github.com/ckb-contrib/ckb-debugger/tx"
)

const (
	SysExit           = 93
	SysCurrentCycles  = 2042
	SysLoadTxHash     = 2061
	SysLoadScriptHash = 2062
	SysLoadScript     = 2063
	SysLoadWitness    = 2074
	SysLoadCellData   = 2092
	SysDebug          = 2177

	// debugger-local extensions
	SysReadFile = 9000
	SysTimeNow  = 9001
	SysRandom   = 9002
)

const (
	SourceInput   = 1
	SourceOutput  = 2
	SourceCellDep = 3
)

// return codes delivered in a0
const (
	success         = 0
	indexOutOfBound = 1
)

const maxDebugString = 4096

// CKB is the syscall handler bound to one script execution.
type CKB struct {
	mtx        *tx.MockTransaction
	script     *tx.Script
	scriptHash [32]byte
	txHash     [32]byte

	// contents served through the read_file syscall, nil when unused
	readFile []byte

	// fixed-seed PRNG: the random syscall must not break run-to-run
	// reproducibility of profiles and traces
	rng *rand.Rand

	logger log.Logger
}

func New(mtx *tx.MockTransaction, script *tx.Script, logger log.Logger) (*CKB, error) {
	txHash, err := mtx.TxHash()
	if err != nil {
		return nil, err
	}
	return &CKB{
		mtx:        mtx,
		script:     script,
		scriptHash: script.Hash(),
		txHash:     txHash,
		rng:        rand.New(rand.NewSource(0)),
		logger:     logger,
	}, nil
}

// SetReadFile provides the data served by the read_file syscall.
func (k *CKB) SetReadFile(data []byte) {
	k.readFile = data
}

// Ecall dispatches on the syscall number in a7. An unknown number is a
// machine fault; recoverable conditions are reported through a0 instead.
func (k *CKB) Ecall(c *riscv.CPU) error {
	num, _ := c.RegRead(riscv.A7)
	switch num {
	case SysExit:
		code, _ := c.RegRead(riscv.A0)
		c.Exit(int8(code))
		return nil
	case SysCurrentCycles:
		return c.RegWrite(riscv.A0, c.Cycles())
	case SysLoadTxHash:
		return k.storeData(c, k.txHash[:])
	case SysLoadScriptHash:
		return k.storeData(c, k.scriptHash[:])
	case SysLoadScript:
		return k.storeData(c, k.script.Serialize())
	case SysLoadWitness:
		return k.storeIndexed(c, func(i int) ([]byte, bool) {
			if i >= len(k.mtx.Tx.Witnesses) {
				return nil, false
			}
			return k.mtx.Tx.Witnesses[i], true
		})
	case SysLoadCellData:
		return k.loadCellData(c)
	case SysDebug:
		return k.debug(c)
	case SysReadFile:
		if k.readFile == nil {
			return c.RegWrite(riscv.A0, indexOutOfBound)
		}
		return k.storeData(c, k.readFile)
	case SysTimeNow:
		return c.RegWrite(riscv.A0, uint64(time.Now().UnixNano()))
	case SysRandom:
		return c.RegWrite(riscv.A0, k.rng.Uint64())
	}
	return errors.Errorf("unknown syscall %d", num)
}

func (k *CKB) loadCellData(c *riscv.CPU) error {
	source, _ := c.RegRead(riscv.A4)
	return k.storeIndexed(c, func(i int) ([]byte, bool) {
		switch source {
		case SourceInput:
			if i < len(k.mtx.MockInfo.Inputs) {
				return k.mtx.MockInfo.Inputs[i].Data, true
			}
		case SourceOutput:
			if i < len(k.mtx.Tx.OutputsData) {
				return k.mtx.Tx.OutputsData[i], true
			}
		case SourceCellDep:
			if i < len(k.mtx.MockInfo.CellDeps) {
				return k.mtx.MockInfo.CellDeps[i].Data, true
			}
		}
		return nil, false
	})
}

func (k *CKB) storeIndexed(c *riscv.CPU, get func(int) ([]byte, bool)) error {
	index, _ := c.RegRead(riscv.A3)
	data, ok := get(int(index))
	if !ok {
		return c.RegWrite(riscv.A0, indexOutOfBound)
	}
	return k.storeData(c, data)
}

// storeData implements the partial-read convention described in the package
// comment. Memory faults inside a syscall are machine faults.
func (k *CKB) storeData(c *riscv.CPU, data []byte) error {
	addr, _ := c.RegRead(riscv.A0)
	lenAddr, _ := c.RegRead(riscv.A1)
	offset, _ := c.RegRead(riscv.A2)

	mem := c.Mem()
	want, err := mem.ReadUint(lenAddr, 8, cpu.PROT_READ)
	if err != nil {
		return err
	}
	var avail uint64
	if offset < uint64(len(data)) {
		avail = uint64(len(data)) - offset
	}
	n := want
	if avail < n {
		n = avail
	}
	if n > 0 {
		if err := mem.WriteProt(addr, data[offset:offset+n], cpu.PROT_WRITE); err != nil {
			return err
		}
	}
	if err := mem.WriteUint(lenAddr, 8, cpu.PROT_WRITE, avail); err != nil {
		return err
	}
	c.AddCycles(models.TransferredByteCycles(n))
	return c.RegWrite(riscv.A0, success)
}

func (k *CKB) debug(c *riscv.CPU) error {
	addr, _ := c.RegRead(riscv.A0)
	var msg []byte
	for len(msg) < maxDebugString {
		b, err := c.MemRead(addr+uint64(len(msg)), 1)
		if err != nil {
			return errors.Wrap(err, "reading debug string")
		}
		if b[0] == 0 {
			break
		}
		msg = append(msg, b[0])
	}
	k.logger.Debug("SCRIPT>" + string(msg))
	return c.RegWrite(riscv.A0, success)
}
