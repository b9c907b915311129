package cpu

// memory protections, also used as access masks for watch checks
const (
	PROT_NONE  = 0
	PROT_READ  = 1
	PROT_WRITE = 2
	PROT_EXEC  = 4
	PROT_ALL   = 7
)

// access kinds reported to a MemObserver
const (
	MEM_WRITE = 16
	MEM_READ  = 17
	MEM_FETCH = 18
)

// MemError enums
const (
	MEM_READ_UNMAPPED = iota + 1
	MEM_WRITE_UNMAPPED
	MEM_FETCH_UNMAPPED
	MEM_WRITE_PROT
	MEM_READ_PROT
	MEM_FETCH_PROT
)
