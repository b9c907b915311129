package debug

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"

	"github.com/inconshreveable/log15"
	"github.com/pkg/errors"

	"github.com/ckb-contrib/ckb-debugger/arch/riscv"
	"github.com/ckb-contrib/ckb-debugger/models"
	"github.com/ckb-contrib/ckb-debugger/models/cpu"
)

func escape(p []byte) []byte {
	out := make([]byte, 0, len(p))
	for _, c := range p {
		if c == '#' || c == '$' || c == '}' {
			out = append(out, '}')
			out = append(out, c^0x20)
		} else {
			out = append(out, c)
		}
	}
	return out
}

func unescape(p []byte) []byte {
	out := make([]byte, 0, len(p))
	escaped := false
	for _, c := range p {
		if escaped {
			out = append(out, c^0x20)
			escaped = false
		} else if c == '}' {
			escaped = true
		} else {
			out = append(out, c)
		}
	}
	return out
}

func checksum(p []byte) []byte {
	chk := 0
	for _, c := range p {
		chk = (chk + int(c)) % 256
	}
	return []byte(fmt.Sprintf("%02x", chk))
}

func parseRange(s string) (uint64, uint64) {
	tmp := strings.Split(s, ",")
	if len(tmp) != 2 {
		return 0, 0
	}
	a, _ := strconv.ParseUint(tmp[0], 16, 64)
	b, _ := strconv.ParseUint(tmp[1], 16, 64)
	return a, b
}

var errDetached = errors.New("detached")

// Gdbstub serves the GDB remote serial protocol over a TCP listener. It
// drives the execution controller on the client's behalf; one session is
// served at a time and the session ends when the program exits, faults, or
// the client detaches.
type Gdbstub struct {
	ctrl   *Controller
	logger log15.Logger
}

func NewGdbstub(ctrl *Controller, logger log15.Logger) *Gdbstub {
	return &Gdbstub{ctrl: ctrl, logger: logger}
}

// Listen accepts one client on addr and serves it to completion.
func (d *Gdbstub) Listen(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return errors.Wrap(err, "gdbstub listen failed")
	}
	defer ln.Close()
	d.logger.Info("gdb stub listening", "addr", ln.Addr().String())
	conn, err := ln.Accept()
	if err != nil {
		return errors.Wrap(err, "gdbstub accept failed")
	}
	d.logger.Info("gdb client connected", "remote", conn.RemoteAddr().String())
	defer conn.Close()
	return d.Run(conn)
}

// Run serves a session over rw. Exposed separately from Listen so in-memory
// transports work too.
func (d *Gdbstub) Run(rw io.ReadWriter) error {
	c := &gdbClient{rw: rw, ctrl: d.ctrl, logger: d.logger}
	return c.run()
}

type gdbClient struct {
	rw        io.ReadWriter
	ctrl      *Controller
	logger    log15.Logger
	noAck     bool
	noAckTest bool
}

func (c *gdbClient) send(s string) error {
	data := escape([]byte(s))
	data = []byte("$" + string(data) + "#" + string(checksum(data)))
	_, err := c.rw.Write(data)
	return errors.Wrap(err, "gdbstub write failed")
}

func (c *gdbClient) ack(b byte) {
	if !c.noAck {
		c.rw.Write([]byte{b})
	}
}

// regHex renders a register the way the target description advertises it:
// 64 bits, little-endian, hex-encoded.
func regHex(val uint64) string {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], val)
	return hex.EncodeToString(buf[:])
}

func (c *gdbClient) readReg(enum int) uint64 {
	m := c.ctrl.Machine()
	if enum == riscv.RegCount {
		return m.PC()
	}
	val, _ := m.RegRead(enum)
	return val
}

func (c *gdbClient) writeReg(enum int, val uint64) {
	m := c.ctrl.Machine()
	if enum == riscv.RegCount {
		m.SetPC(val)
		return
	}
	m.RegWrite(enum, val)
}

func (c *gdbClient) stopPacket(reason models.StopReason) string {
	pc := c.ctrl.Machine().PC()
	switch reason.Kind {
	case models.StopExited:
		return fmt.Sprintf("W%02x", uint8(reason.ExitCode))
	case models.StopFault:
		// report the process gone with SIGSEGV
		return fmt.Sprintf("X%02x", 11)
	case models.StopWatchpoint:
		var kind string
		switch reason.Access {
		case cpu.MEM_READ:
			kind = "rwatch"
		default:
			kind = "watch"
		}
		return fmt.Sprintf("T05%s:%x;%02x:%s;", kind, reason.Addr, riscv.RegCount, regHex(pc))
	default:
		return fmt.Sprintf("T05%02x:%s;", riscv.RegCount, regHex(pc))
	}
}

func (c *gdbClient) reportStop(reason models.StopReason) error {
	return c.send(c.stopPacket(reason))
}

func (c *gdbClient) resume(mode RunMode) error {
	reason, err := c.ctrl.Resume(mode)
	if err != nil {
		if errors.Is(err, ErrSessionEnded) {
			return c.reportStop(c.ctrl.LastStop())
		}
		// budget exhausted while already at the limit
		return c.send("E01")
	}
	return c.reportStop(reason)
}

func (c *gdbClient) handle(cmdb []byte) error {
	if len(cmdb) == 0 {
		return c.send("")
	}
	b, rest := cmdb[0], string(cmdb[1:])
	var cmd, args string
	if strings.Contains(rest, ":") {
		tmp := strings.SplitN(rest, ":", 2)
		cmd, args = tmp[0], tmp[1]
	} else {
		cmd = rest
	}
	switch b {
	case 'q':
		switch cmd {
		case "Supported":
			return c.send("PacketSize=4000;qXfer:features:read+;QStartNoAckMode+")
		case "Attached":
			return c.send("1")
		case "Symbol":
			return c.send("OK")
		case "C":
			return c.send("QC1")
		case "TStatus":
			return c.send("T0")
		case "Xfer":
			if strings.HasPrefix(args, "features:read:target.xml:") {
				a, n := parseRange(strings.TrimPrefix(args, "features:read:target.xml:"))
				tdesc := riscv.GdbXml
				if a < uint64(len(tdesc)) {
					if a+n > uint64(len(tdesc)) {
						n = uint64(len(tdesc)) - a
					}
					return c.send("m" + tdesc[a:a+n])
				}
				return c.send("l")
			}
			return c.send("")
		default:
			return c.send("")
		}
	case 'Q':
		if cmd == "StartNoAckMode" {
			c.noAckTest = true
			return c.send("OK")
		}
		return c.send("")
	case 'v':
		if cmd == "Cont?" {
			return c.send("")
		}
		return c.send("")
	case 'g':
		var sb strings.Builder
		for i := 0; i <= riscv.RegCount; i++ {
			sb.WriteString(regHex(c.readReg(i)))
		}
		return c.send(sb.String())
	case 'G':
		raw, err := hex.DecodeString(rest)
		if err != nil || len(raw) < 8*(riscv.RegCount+1) {
			return c.send("E01")
		}
		for i := 0; i <= riscv.RegCount; i++ {
			c.writeReg(i, binary.LittleEndian.Uint64(raw[i*8:]))
		}
		return c.send("OK")
	case 'p':
		i, err := strconv.ParseUint(cmd, 16, 64)
		if err != nil || i > uint64(riscv.RegCount) {
			return c.send("E01")
		}
		return c.send(regHex(c.readReg(int(i))))
	case 'P':
		tmp := strings.SplitN(rest, "=", 2)
		if len(tmp) != 2 {
			return c.send("E01")
		}
		i, err := strconv.ParseUint(tmp[0], 16, 64)
		if err != nil || i > uint64(riscv.RegCount) {
			return c.send("E01")
		}
		raw, err := hex.DecodeString(tmp[1])
		if err != nil || len(raw) != 8 {
			return c.send("E01")
		}
		c.writeReg(int(i), binary.LittleEndian.Uint64(raw))
		return c.send("OK")
	case 'm':
		addr, n := parseRange(rest)
		mem, err := c.ctrl.Machine().MemRead(addr, n)
		if err != nil {
			return c.send("E01")
		}
		return c.send(hex.EncodeToString(mem))
	case 'M':
		addr, n := parseRange(cmd)
		raw, err := hex.DecodeString(args)
		if err != nil || uint64(len(raw)) != n {
			return c.send("E01")
		}
		if err := c.ctrl.Machine().MemWrite(addr, raw); err != nil {
			return c.send("E01")
		}
		return c.send("OK")
	case 'Z', 'z':
		parts := strings.Split(rest, ",")
		if len(parts) != 3 {
			return c.send("E01")
		}
		addr, _ := strconv.ParseUint(parts[1], 16, 64)
		size, _ := strconv.ParseUint(parts[2], 16, 64)
		table := c.ctrl.Table()
		switch parts[0] {
		case "0", "1":
			if b == 'Z' {
				table.SetBreakpoint(addr)
			} else {
				table.ClearBreakpoint(addr)
			}
		case "2":
			if b == 'Z' {
				table.SetWatchpoint(addr, size, WatchWrite)
			} else {
				table.ClearWatchpoint(addr, size, WatchWrite)
			}
		case "3":
			if b == 'Z' {
				table.SetWatchpoint(addr, size, WatchRead)
			} else {
				table.ClearWatchpoint(addr, size, WatchRead)
			}
		case "4":
			if b == 'Z' {
				table.SetWatchpoint(addr, size, WatchAccess)
			} else {
				table.ClearWatchpoint(addr, size, WatchAccess)
			}
		default:
			return c.send("")
		}
		return c.send("OK")
	case 'c':
		return c.resume(Continue)
	case 's':
		return c.resume(StepN(1))
	case '?':
		status := c.ctrl.Status()
		if status == Exited || status == Faulted {
			return c.reportStop(c.ctrl.LastStop())
		}
		return c.send("S05")
	case 'H', 'T':
		return c.send("OK")
	case 'k':
		return errDetached
	case 'D':
		if err := c.send("OK"); err != nil {
			return err
		}
		return errDetached
	default:
		return c.send("")
	}
}

func (c *gdbClient) run() error {
	input := bufio.NewReader(c.rw)
	for {
		b, err := input.ReadByte()
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return errors.Wrap(err, "gdbstub read failed")
		}
		switch b {
		case '+', '-':
			if c.noAckTest && b == '+' {
				c.noAck = true
			}
			c.noAckTest = false
			continue
		case 0x03:
			// interrupt while stopped is a no-op for a synchronous stub
			continue
		case '$':
		default:
			continue
		}
		data, err := input.ReadBytes('#')
		if err != nil {
			return errors.Wrap(err, "gdbstub read failed")
		}
		data = data[:len(data)-1]
		var chk [2]byte
		if _, err := io.ReadFull(input, chk[:]); err != nil {
			return errors.Wrap(err, "gdbstub read failed")
		}
		if !bytes.Equal(checksum(data), chk[:]) {
			// corrupted frame: request retransmission, touch nothing
			c.ack('-')
			continue
		}
		c.ack('+')
		if err := c.handle(unescape(data)); err != nil {
			if errors.Is(err, errDetached) {
				c.logger.Info("gdb client detached")
				return nil
			}
			return err
		}
	}
}
