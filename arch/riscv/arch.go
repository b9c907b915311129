// Package riscv implements a deterministic RV64IM interpreter sized for
// blockchain script execution: a 4MiB sparse address space, W^X program
// pages, and an exact per-instruction cycle cost model.
package riscv

import (
	"fmt"
	"strings"
)

const (
	PageSize  = 4096
	MaxMemory = 4 << 20
	StackSize = 1 << 20

	RegCount = 32

	// dense register enums; the PC is addressed separately
	ZERO = 0
	RA   = 1
	SP   = 2
	GP   = 3
	TP   = 4
	T0   = 5
	T1   = 6
	T2   = 7
	S0   = 8
	S1   = 9
	A0   = 10
	A1   = 11
	A2   = 12
	A3   = 13
	A4   = 14
	A5   = 15
	A6   = 16
	A7   = 17
)

var RegNames = []string{
	"zero", "ra", "sp", "gp", "tp", "t0", "t1", "t2",
	"s0", "s1", "a0", "a1", "a2", "a3", "a4", "a5",
	"a6", "a7", "s2", "s3", "s4", "s5", "s6", "s7",
	"s8", "s9", "s10", "s11", "t3", "t4", "t5", "t6",
}

// GdbXml is the target description served through qXfer:features:read.
var GdbXml = buildGdbXml()

func buildGdbXml() string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0"?>
<!DOCTYPE target SYSTEM "gdb-target.dtd">
<target version="1.0">
<architecture>riscv:rv64</architecture>
<feature name="org.gnu.gdb.riscv.cpu">
`)
	for i, name := range RegNames {
		fmt.Fprintf(&b, "<reg name=%q bitsize=\"64\" regnum=\"%d\"/>\n", name, i)
	}
	b.WriteString("<reg name=\"pc\" bitsize=\"64\" type=\"code_ptr\" regnum=\"32\"/>\n")
	b.WriteString("</feature>\n</target>\n")
	return b.String()
}
