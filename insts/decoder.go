package insts

// Op represents a decoded MIPS operation.
type Op uint8

// MIPS operations. OpReserved is the zero value so that table entries left
// unset decode as reserved instructions.
const (
	OpReserved Op = iota
	OpSLL
	OpSRL
	OpSRA
	OpSLLV
	OpSRLV
	OpSRAV
	OpJR
	OpJALR
	OpSYSCALL
	OpBREAK
	OpMFHI
	OpMTHI
	OpMFLO
	OpMTLO
	OpMULT
	OpMULTU
	OpDIV
	OpDIVU
	OpADD
	OpADDU
	OpSUB
	OpSUBU
	OpAND
	OpOR
	OpXOR
	OpNOR
	OpSLT
	OpSLTU
	OpBLTZ
	OpBGEZ
	OpBLTZAL
	OpBGEZAL
	OpJ
	OpJAL
	OpBEQ
	OpBNE
	OpBLEZ
	OpBGTZ
	OpADDI
	OpADDIU
	OpSLTI
	OpSLTIU
	OpANDI
	OpORI
	OpXORI
	OpLUI
	OpMFC0
	OpMTC0
	OpBC0
	OpRFE
	OpTLB
	OpCOP
	OpLB
	OpLH
	OpLWL
	OpLW
	OpLBU
	OpLHU
	OpLWR
	OpSB
	OpSH
	OpSWL
	OpSW
	OpSWR
	OpCACHE
	OpLWC
	OpSWC

	NumOps
)

var opNames = [NumOps]string{
	OpReserved: "reserved",
	OpSLL:      "sll",
	OpSRL:      "srl",
	OpSRA:      "sra",
	OpSLLV:     "sllv",
	OpSRLV:     "srlv",
	OpSRAV:     "srav",
	OpJR:       "jr",
	OpJALR:     "jalr",
	OpSYSCALL:  "syscall",
	OpBREAK:    "break",
	OpMFHI:     "mfhi",
	OpMTHI:     "mthi",
	OpMFLO:     "mflo",
	OpMTLO:     "mtlo",
	OpMULT:     "mult",
	OpMULTU:    "multu",
	OpDIV:      "div",
	OpDIVU:     "divu",
	OpADD:      "add",
	OpADDU:     "addu",
	OpSUB:      "sub",
	OpSUBU:     "subu",
	OpAND:      "and",
	OpOR:       "or",
	OpXOR:      "xor",
	OpNOR:      "nor",
	OpSLT:      "slt",
	OpSLTU:     "sltu",
	OpBLTZ:     "bltz",
	OpBGEZ:     "bgez",
	OpBLTZAL:   "bltzal",
	OpBGEZAL:   "bgezal",
	OpJ:        "j",
	OpJAL:      "jal",
	OpBEQ:      "beq",
	OpBNE:      "bne",
	OpBLEZ:     "blez",
	OpBGTZ:     "bgtz",
	OpADDI:     "addi",
	OpADDIU:    "addiu",
	OpSLTI:     "slti",
	OpSLTIU:    "sltiu",
	OpANDI:     "andi",
	OpORI:      "ori",
	OpXORI:     "xori",
	OpLUI:      "lui",
	OpMFC0:     "mfc0",
	OpMTC0:     "mtc0",
	OpBC0:      "bc0",
	OpRFE:      "rfe",
	OpTLB:      "tlb",
	OpCOP:      "cop",
	OpLB:       "lb",
	OpLH:       "lh",
	OpLWL:      "lwl",
	OpLW:       "lw",
	OpLBU:      "lbu",
	OpLHU:      "lhu",
	OpLWR:      "lwr",
	OpSB:       "sb",
	OpSH:       "sh",
	OpSWL:      "swl",
	OpSW:       "sw",
	OpSWR:      "swr",
	OpCACHE:    "cache",
	OpLWC:      "lwc",
	OpSWC:      "swc",
}

// String returns the assembler mnemonic of the operation.
func (o Op) String() string {
	if o >= NumOps {
		return "unknown"
	}
	return opNames[o]
}

// Format represents an instruction encoding format.
type Format uint8

// Instruction formats.
const (
	FormatR   Format = iota // SPECIAL register form
	FormatI                 // Immediate form, including BCOND
	FormatJ                 // Jump with 26-bit target
	FormatCop               // Coprocessor form
)

// Reg is a register selector. Values 0-31 name general-purpose registers.
type Reg uint8

// Register selectors beyond the general-purpose file.
const (
	RegZero Reg = 0
	RegV0   Reg = 2
	RegA0   Reg = 4
	RegSP   Reg = 29
	RegRA   Reg = 31

	RegHI   Reg = 32
	RegLO   Reg = 33
	RegHILO Reg = 34 // destination only: MULT/DIV write both halves
	RegNone Reg = 0xFF
)

// Extension describes how the 16-bit immediate is widened.
type Extension uint8

// Immediate extension kinds.
const (
	ExtNone Extension = iota
	ExtSign
	ExtZero
)

// Instruction represents a decoded MIPS instruction.
type Instruction struct {
	Word   uint32
	Op     Op
	Format Format

	// Raw fields.
	Rs, Rt, Rd uint8
	Shamt      uint8
	Funct      uint8

	// Operand selectors.
	SrcA Reg // first source
	SrcB Reg // second source; store data for stores
	Dst  Reg

	UsesShamt bool // ALU input B is the shift amount
	UsesImm   bool // ALU input B is the extended immediate
	Ext       Extension
	Imm       uint32 // extended immediate
	Target    uint32 // 26-bit jump target

	MemRead  bool
	MemWrite bool
	Reserved bool

	// Coproc is the coprocessor number for COPz/LWCz/SWCz, else -1.
	Coproc int
	// CacheOp is the 5-bit operation field of a CACHE instruction.
	CacheOp uint8
}

// IsNOP reports whether the word is the canonical NOP (SLL $0, $0, 0).
func (i *Instruction) IsNOP() bool {
	return i.Word == 0
}

// IsControl reports whether the instruction is a branch or jump. Control
// transfers are resolved in the decode stage.
func (i *Instruction) IsControl() bool {
	switch i.Op {
	case OpJ, OpJAL, OpJR, OpJALR, OpBEQ, OpBNE, OpBLEZ, OpBGTZ,
		OpBLTZ, OpBGEZ, OpBLTZAL, OpBGEZAL, OpBC0:
		return true
	}
	return false
}

// IsMultDiv reports whether the instruction is subject to the HI/LO
// multiply/divide interlock.
func (i *Instruction) IsMultDiv() bool {
	switch i.Op {
	case OpMFHI, OpMFLO, OpMULT, OpMULTU, OpDIV, OpDIVU:
		return true
	}
	return false
}

// field names an instruction field used as a register selector.
type field uint8

const (
	fNone field = iota
	fRs
	fRt
	fRd
	fRA
	fHI
	fLO
	fHILO
)

// entry is one row of a decode table. The zero value is a reserved encoding.
type entry struct {
	op        Op
	srcA      field
	srcB      field
	dst       field
	ext       Extension
	usesShamt bool
	usesImm   bool
	memRead   bool
	memWrite  bool
}

func alu(op Op) entry {
	return entry{op: op, srcA: fRs, srcB: fRt, dst: fRd}
}

func aluImm(op Op, e Extension) entry {
	return entry{op: op, srcA: fRs, dst: fRt, ext: e, usesImm: true}
}

func shift(op Op) entry {
	return entry{op: op, srcA: fRt, dst: fRd, usesShamt: true}
}

func shiftVar(op Op) entry {
	return entry{op: op, srcA: fRt, srcB: fRs, dst: fRd}
}

func load(op Op) entry {
	return entry{op: op, srcA: fRs, dst: fRt, ext: ExtSign, memRead: true}
}

func store(op Op) entry {
	return entry{op: op, srcA: fRs, srcB: fRt, ext: ExtSign, memWrite: true}
}

func branch2(op Op) entry {
	return entry{op: op, srcA: fRs, srcB: fRt, ext: ExtSign}
}

func branch1(op Op) entry {
	return entry{op: op, srcA: fRs, ext: ExtSign}
}

// primaryTable is keyed by the 6-bit opcode. LWL/LWR merge into the old
// destination value, so rt is also a source for them.
var primaryTable = [64]entry{
	OpcodeJ:     {op: OpJ},
	OpcodeJAL:   {op: OpJAL, dst: fRA},
	OpcodeBEQ:   branch2(OpBEQ),
	OpcodeBNE:   branch2(OpBNE),
	OpcodeBLEZ:  branch1(OpBLEZ),
	OpcodeBGTZ:  branch1(OpBGTZ),
	OpcodeADDI:  aluImm(OpADDI, ExtSign),
	OpcodeADDIU: aluImm(OpADDIU, ExtSign),
	OpcodeSLTI:  aluImm(OpSLTI, ExtSign),
	OpcodeSLTIU: aluImm(OpSLTIU, ExtSign),
	OpcodeANDI:  aluImm(OpANDI, ExtZero),
	OpcodeORI:   aluImm(OpORI, ExtZero),
	OpcodeXORI:  aluImm(OpXORI, ExtZero),
	OpcodeLUI:   {op: OpLUI, dst: fRt, ext: ExtZero, usesImm: true},
	OpcodeLB:    load(OpLB),
	OpcodeLH:    load(OpLH),
	OpcodeLWL:   {op: OpLWL, srcA: fRs, srcB: fRt, dst: fRt, ext: ExtSign, memRead: true},
	OpcodeLW:    load(OpLW),
	OpcodeLBU:   load(OpLBU),
	OpcodeLHU:   load(OpLHU),
	OpcodeLWR:   {op: OpLWR, srcA: fRs, srcB: fRt, dst: fRt, ext: ExtSign, memRead: true},
	OpcodeSB:    store(OpSB),
	OpcodeSH:    store(OpSH),
	OpcodeSWL:   store(OpSWL),
	OpcodeSW:    store(OpSW),
	OpcodeSWR:   store(OpSWR),
	OpcodeCACHE: {op: OpCACHE, srcA: fRs, ext: ExtSign},
	OpcodeLWC0:  {op: OpLWC, srcA: fRs, ext: ExtSign},
	OpcodeLWC1:  {op: OpLWC, srcA: fRs, ext: ExtSign},
	OpcodeLWC2:  {op: OpLWC, srcA: fRs, ext: ExtSign},
	OpcodeLWC3:  {op: OpLWC, srcA: fRs, ext: ExtSign},
	OpcodeSWC0:  {op: OpSWC, srcA: fRs, ext: ExtSign},
	OpcodeSWC1:  {op: OpSWC, srcA: fRs, ext: ExtSign},
	OpcodeSWC2:  {op: OpSWC, srcA: fRs, ext: ExtSign},
	OpcodeSWC3:  {op: OpSWC, srcA: fRs, ext: ExtSign},
}

// specialTable is keyed by the funct field of SPECIAL instructions.
var specialTable = [64]entry{
	FunctSLL:     shift(OpSLL),
	FunctSRL:     shift(OpSRL),
	FunctSRA:     shift(OpSRA),
	FunctSLLV:    shiftVar(OpSLLV),
	FunctSRLV:    shiftVar(OpSRLV),
	FunctSRAV:    shiftVar(OpSRAV),
	FunctJR:      {op: OpJR, srcA: fRs},
	FunctJALR:    {op: OpJALR, srcA: fRs, dst: fRd},
	FunctSYSCALL: {op: OpSYSCALL},
	FunctBREAK:   {op: OpBREAK},
	FunctMFHI:    {op: OpMFHI, srcA: fHI, dst: fRd},
	FunctMTHI:    {op: OpMTHI, srcA: fRs, dst: fHI},
	FunctMFLO:    {op: OpMFLO, srcA: fLO, dst: fRd},
	FunctMTLO:    {op: OpMTLO, srcA: fRs, dst: fLO},
	FunctMULT:    {op: OpMULT, srcA: fRs, srcB: fRt, dst: fHILO},
	FunctMULTU:   {op: OpMULTU, srcA: fRs, srcB: fRt, dst: fHILO},
	FunctDIV:     {op: OpDIV, srcA: fRs, srcB: fRt, dst: fHILO},
	FunctDIVU:    {op: OpDIVU, srcA: fRs, srcB: fRt, dst: fHILO},
	FunctADD:     alu(OpADD),
	FunctADDU:    alu(OpADDU),
	FunctSUB:     alu(OpSUB),
	FunctSUBU:    alu(OpSUBU),
	FunctAND:     alu(OpAND),
	FunctOR:      alu(OpOR),
	FunctXOR:     alu(OpXOR),
	FunctNOR:     alu(OpNOR),
	FunctSLT:     alu(OpSLT),
	FunctSLTU:    alu(OpSLTU),
}

// bcondTable is keyed by the rt field of BCOND instructions.
var bcondTable = [32]entry{
	BcondBLTZ:   branch1(OpBLTZ),
	BcondBGEZ:   branch1(OpBGEZ),
	BcondBLTZAL: {op: OpBLTZAL, srcA: fRs, dst: fRA, ext: ExtSign},
	BcondBGEZAL: {op: OpBGEZAL, srcA: fRs, dst: fRA, ext: ExtSign},
}

// Decoder decodes MIPS machine code into instructions. It holds no state.
type Decoder struct{}

// NewDecoder creates a new MIPS instruction decoder.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Decode decodes a 32-bit MIPS instruction word.
func (d *Decoder) Decode(word uint32) *Instruction {
	inst := &Instruction{
		Word:   word,
		Rs:     Rs(word),
		Rt:     Rt(word),
		Rd:     Rd(word),
		Shamt:  Shamt(word),
		Funct:  Funct(word),
		Target: JumpTarget(word),
		Coproc: -1,
	}

	opcode := Opcode(word)
	var e entry
	switch opcode {
	case OpcodeSPECIAL:
		inst.Format = FormatR
		e = specialTable[inst.Funct]
	case OpcodeBCOND:
		inst.Format = FormatI
		e = bcondTable[inst.Rt]
	case OpcodeJ, OpcodeJAL:
		inst.Format = FormatJ
		e = primaryTable[opcode]
	case OpcodeCOP0, OpcodeCOP1, OpcodeCOP2, OpcodeCOP3:
		inst.Format = FormatCop
		inst.Coproc = int(opcode - OpcodeCOP0)
		e = d.coprocessorEntry(inst)
	default:
		inst.Format = FormatI
		e = primaryTable[opcode]
		if opcode >= OpcodeLWC0 {
			inst.Coproc = int(opcode & 0x3)
		}
	}

	d.apply(inst, e)

	if inst.Op == OpCACHE {
		inst.CacheOp = inst.Rt
		if !IsValidCacheOp(inst.CacheOp) {
			inst.Reserved = true
		}
	}

	return inst
}

func (d *Decoder) coprocessorEntry(inst *Instruction) entry {
	if inst.Coproc != 0 {
		return entry{op: OpCOP}
	}

	switch {
	case inst.Rs == CopMF:
		return entry{op: OpMFC0, dst: fRt}
	case inst.Rs == CopMT:
		return entry{op: OpMTC0, srcA: fRt}
	case inst.Rs == CopBC:
		return entry{op: OpBC0, ext: ExtSign}
	case inst.Rs >= CopCO:
		switch inst.Funct {
		case Cop0RFE:
			return entry{op: OpRFE}
		case Cop0TLBR, Cop0TLBWI, Cop0TLBWR, Cop0TLBP:
			return entry{op: OpTLB}
		}
	}
	return entry{}
}

func (d *Decoder) apply(inst *Instruction, e entry) {
	inst.Op = e.op
	inst.Reserved = e.op == OpReserved
	inst.SrcA = selector(inst, e.srcA)
	inst.SrcB = selector(inst, e.srcB)
	inst.Dst = selector(inst, e.dst)
	if inst.Dst == RegZero {
		inst.Dst = RegNone
	}
	inst.UsesShamt = e.usesShamt
	inst.UsesImm = e.usesImm
	inst.MemRead = e.memRead
	inst.MemWrite = e.memWrite
	inst.Ext = e.ext

	imm := Immediate(inst.Word)
	switch e.ext {
	case ExtSign:
		inst.Imm = SignExtend16(imm)
	case ExtZero:
		inst.Imm = uint32(imm)
	}
}

func selector(inst *Instruction, f field) Reg {
	switch f {
	case fRs:
		return Reg(inst.Rs)
	case fRt:
		return Reg(inst.Rt)
	case fRd:
		return Reg(inst.Rd)
	case fRA:
		return RegRA
	case fHI:
		return RegHI
	case fLO:
		return RegLO
	case fHILO:
		return RegHILO
	}
	return RegNone
}
