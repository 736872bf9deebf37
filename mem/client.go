// Package mem provides the memory mapper and bus arbiter that the pipeline
// and caches use to reach physical memory.
//
// Accesses are timed with a request/ready protocol: a client enqueues
// interest in a word with RequestWord, polls Ready once per cycle, and then
// performs the authoritative FetchWord or StoreWord. Multi-word bursts are
// bracketed by AcquireBus and ReleaseBus.
package mem

import "github.com/rs/xid"

// ClientID identifies a bus master.
type ClientID string

// NewClientID returns a process-unique identity prefixed with name.
func NewClientID(name string) ClientID {
	return ClientID(name + "-" + xid.New().String())
}
