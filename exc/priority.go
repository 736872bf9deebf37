package exc

// Lowest is the rank of an exception that matches no entry of the table.
const Lowest = 10

// Priority returns the rank of a record; 1 is the highest priority.
//
//	1  AdEL on fetch
//	2  TLB miss on fetch
//	3  IBE
//	4  Ov, Tr, Sys, Bp, RI, CpU
//	5  AdEL on load, AdES
//	6  TLB miss on load or store
//	7  Mod
//	8  DBE
//	9  Int
func Priority(code Code, mode Mode) int {
	switch code {
	case AdEL:
		if mode == InstFetch {
			return 1
		}
		return 5
	case TLBL:
		if mode == InstFetch {
			return 2
		}
		return 6
	case TLBS:
		return 6
	case IBE:
		return 3
	case Ov, Tr, Sys, Bp, RI, CpU:
		return 4
	case AdES:
		return 5
	case Mod:
		return 7
	case DBE:
		return 8
	case Int:
		return 9
	}
	return Lowest
}

// Select returns the highest-priority record of an instruction. Ties keep
// the record appended first. It reports false when records is empty.
func Select(records []Record) (Record, bool) {
	if len(records) == 0 {
		return Record{}, false
	}

	best := records[0]
	bestRank := Priority(best.Code, best.Mode)
	for _, r := range records[1:] {
		if rank := Priority(r.Code, r.Mode); rank < bestRank {
			best, bestRank = r, rank
		}
	}
	return best, true
}
