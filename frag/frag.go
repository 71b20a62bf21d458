// Package frag fragments outbound datagrams into fixed 32-byte link frames
// and reassembles them on the receiving side, mirroring radio_nrf24.cpp's
// rx_task/radio_send split (spec §4.2), with the five-slot static C array
// kept as a fixed-size, mutex-guarded pool.
package frag

import (
	"fmt"
	"sync"
	"time"
)

const (
	// FrameSize is the exact link-frame length the radio/link layer moves.
	FrameSize = 32
	// HeaderSize is the two leading header bytes: packet_id, frag_info.
	HeaderSize = 2
	// PayloadSize is the fragment payload carried in ordinary frames.
	PayloadSize = FrameSize - HeaderSize // 30

	lastBit = 0x80
	idxMask = 0x7F

	// MaxFragments is the largest fragment count the 7-bit index field
	// can address.
	MaxFragments = 128

	// MaxDatagram is the reassembly buffer size: PayloadSize bytes for each
	// of MaxFragments fragments. Because the final fragment spends one byte
	// on its length, Fragment accepts at most MaxDatagram-1 bytes. The
	// smaller ONION_MAX_BYTES cap is not enforced here, since frag has no
	// notion of "onion".
	MaxDatagram = 30 * MaxFragments

	reassemblySlots   = 5
	reassemblyTimeout = 5 * time.Second
)

// Sender writes one fully-formed link frame per fragment.
type Sender interface {
	SendFrame(nextHop string, frame [FrameSize]byte) error
}

// Fragment splits datagram into FrameSize frames and hands each to send, in
// order, aborting on the first failure — partial sends are intentional and
// unrecovered (spec §4.2).
//
// The last fragment's real payload length is encoded in its first payload
// byte (the optional wire-format revision spec §9 allows in place of
// delivering a padded buffer): that fragment carries `length, data...`
// instead of 30 raw bytes, so it can hold at most PayloadSize-1 bytes of
// datagram tail.
func Fragment(packetID uint8, datagram []byte, send func(frame [FrameSize]byte) error) error {
	if len(datagram) == 0 {
		return fmt.Errorf("fragment: empty datagram")
	}
	total := fragCount(len(datagram))
	if total > MaxFragments {
		return fmt.Errorf("fragment: datagram too large for %d-bit index: %d fragments", 7, total)
	}

	offset := 0
	for i := 0; i < total; i++ {
		isLast := i == total-1
		var frame [FrameSize]byte
		frame[0] = packetID
		frag_info := uint8(i)
		if isLast {
			frag_info |= lastBit
		}
		frame[1] = frag_info

		if isLast {
			remain := datagram[offset:]
			if len(remain) > PayloadSize-1 {
				// Can only happen if fragCount's ceil division disagreed
				// with the actual remainder; treated as a bug, not a
				// caller error.
				return fmt.Errorf("fragment: last chunk %d exceeds %d bytes", len(remain), PayloadSize-1)
			}
			frame[2] = uint8(len(remain))
			copy(frame[3:], remain)
		} else {
			copy(frame[HeaderSize:], datagram[offset:offset+PayloadSize])
			offset += PayloadSize
		}

		if err := send(frame); err != nil {
			return fmt.Errorf("fragment: send fragment %d/%d: %w", i+1, total, err)
		}
	}
	return nil
}

func fragCount(n int) int {
	// The last fragment holds at most PayloadSize-1 bytes (length-prefixed);
	// every earlier fragment holds exactly PayloadSize bytes.
	if n <= PayloadSize-1 {
		return 1
	}
	rem := n - (PayloadSize - 1)
	full := rem / PayloadSize
	if rem%PayloadSize != 0 {
		full++
	}
	return full + 1
}

type slot struct {
	packetID    uint8
	totalFrags  int // 0 until the LAST fragment is seen
	received    [MaxFragments]bool
	buf         [MaxDatagram]byte
	lastLen     int // real length of the final fragment's payload, once known
	lastFragTime time.Time
	inUse       bool
}

// Reassembler recovers datagrams from inbound frames, mirroring
// get_reassembly_buffer's fixed pool with timeout-based reclamation
// (spec §4.2): one pool shared by all senders, keyed by packet_id only and
// guarded by a mutex.
type Reassembler struct {
	mu    sync.Mutex
	slots [reassemblySlots]slot
}

// NewReassembler returns an empty reassembly pool.
func NewReassembler() *Reassembler {
	return &Reassembler{}
}

// Accept feeds one inbound frame into the pool. It returns (datagram, true)
// once every fragment of that packet_id has arrived; otherwise (nil, false).
// A duplicate fragment index is silently discarded, matching the source.
func (r *Reassembler) Accept(frame [FrameSize]byte, now time.Time) ([]byte, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.reclaimExpired(now)

	packetID := frame[0]
	fragInfo := frame[1]
	isLast := fragInfo&lastBit != 0
	idx := int(fragInfo & idxMask)

	s := r.findOrAllocate(packetID)
	if s == nil {
		// Pool full; drop the frame, same as the source's NULL return.
		return nil, false
	}
	if s.received[idx] {
		return nil, false
	}

	if isLast {
		realLen := int(frame[2])
		if realLen > PayloadSize-1 {
			realLen = PayloadSize - 1
		}
		copy(s.buf[idx*PayloadSize:], frame[3:3+realLen])
		s.lastLen = realLen
		s.totalFrags = idx + 1
	} else {
		copy(s.buf[idx*PayloadSize:idx*PayloadSize+PayloadSize], frame[HeaderSize:])
	}
	s.received[idx] = true
	s.lastFragTime = now

	if s.totalFrags > 0 {
		for i := 0; i < s.totalFrags; i++ {
			if !s.received[i] {
				return nil, false
			}
		}
		fullLen := (s.totalFrags-1)*PayloadSize + s.lastLen
		out := make([]byte, fullLen)
		copy(out, s.buf[:fullLen])
		s.inUse = false
		return out, true
	}
	return nil, false
}

func (r *Reassembler) reclaimExpired(now time.Time) {
	for i := range r.slots {
		if r.slots[i].inUse && now.Sub(r.slots[i].lastFragTime) > reassemblyTimeout {
			r.slots[i] = slot{}
		}
	}
}

func (r *Reassembler) findOrAllocate(packetID uint8) *slot {
	for i := range r.slots {
		if r.slots[i].inUse && r.slots[i].packetID == packetID {
			return &r.slots[i]
		}
	}
	for i := range r.slots {
		if !r.slots[i].inUse {
			r.slots[i] = slot{packetID: packetID, inUse: true}
			return &r.slots[i]
		}
	}
	return nil
}
