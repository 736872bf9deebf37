// Package exc defines the architectural exceptions of the R3000, the records
// buffered for them in the pipeline, and the fixed order in which they are
// prioritized at commit.
package exc

import "fmt"

// Code is an exception code as written to the Cause register.
type Code uint8

// Exception codes.
const (
	Int  Code = 0  // interrupt
	Mod  Code = 1  // TLB modification
	TLBL Code = 2  // TLB miss on load or fetch
	TLBS Code = 3  // TLB miss on store
	AdEL Code = 4  // address error on load or fetch
	AdES Code = 5  // address error on store
	IBE  Code = 6  // instruction bus error
	DBE  Code = 7  // data bus error
	Sys  Code = 8  // syscall
	Bp   Code = 9  // breakpoint
	RI   Code = 10 // reserved instruction
	CpU  Code = 11 // coprocessor unusable
	Ov   Code = 12 // arithmetic overflow
	Tr   Code = 13 // trap
)

var codeNames = map[Code]string{
	Int: "Int", Mod: "Mod", TLBL: "TLBL", TLBS: "TLBS", AdEL: "AdEL", AdES: "AdES",
	IBE: "IBE", DBE: "DBE", Sys: "Sys", Bp: "Bp", RI: "RI", CpU: "CpU", Ov: "Ov", Tr: "Tr",
}

func (c Code) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("Exc(%d)", uint8(c))
}

// Mode is the kind of access that raised an exception.
type Mode uint8

// Access modes.
const (
	Any Mode = iota
	InstFetch
	DataLoad
	DataStore
)

func (m Mode) String() string {
	switch m {
	case InstFetch:
		return "fetch"
	case DataLoad:
		return "load"
	case DataStore:
		return "store"
	}
	return "any"
}

// NoCoproc marks a record that does not name a coprocessor.
const NoCoproc = -1

// Record is one buffered exception on an in-flight instruction.
type Record struct {
	Code   Code
	Mode   Mode
	Coproc int
	// BadAddr is the faulting virtual address for address errors.
	BadAddr uint32
}

// NewRecord creates a record with no coprocessor and no address.
func NewRecord(code Code, mode Mode) Record {
	return Record{Code: code, Mode: mode, Coproc: NoCoproc}
}

func (r Record) String() string {
	return fmt.Sprintf("%v(%v)", r.Code, r.Mode)
}

// Fault is an exception raised by a memory collaborator, returned as an
// error so callers can pass it back to the pipeline with errors.As.
type Fault struct {
	Record
}

// NewFault creates a fault carrying the faulting address.
func NewFault(code Code, mode Mode, addr uint32) *Fault {
	return &Fault{Record: Record{Code: code, Mode: mode, Coproc: NoCoproc, BadAddr: addr}}
}

func (f *Fault) Error() string {
	return fmt.Sprintf("%v exception on %v at 0x%08x", f.Code, f.Mode, f.BadAddr)
}

// AddressError returns the address-error fault for an access mode.
func AddressError(mode Mode, addr uint32) *Fault {
	if mode == DataStore {
		return NewFault(AdES, mode, addr)
	}
	return NewFault(AdEL, mode, addr)
}

// BusError returns the bus-error fault for an access mode.
func BusError(mode Mode, addr uint32) *Fault {
	if mode == InstFetch {
		return NewFault(IBE, mode, addr)
	}
	return NewFault(DBE, mode, addr)
}
