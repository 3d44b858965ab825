package preview

import (
	"encoding/binary"
	"math"

	"github.com/cespare/xxhash/v2"

	"github.com/llehouerou/arpeggio/internal/synth"
	"github.com/llehouerou/arpeggio/internal/tempo"
)

// Signature hashes everything that determines the rendered audio content:
// events, ppq and the tempo-change list. Loading the same content twice
// yields the same signature, so the buffer can be reused.
func Signature(events []synth.Event, ppq int, changes []tempo.Change) uint64 {
	d := xxhash.New()
	var buf [8]byte

	writeInt := func(v int) {
		binary.LittleEndian.PutUint64(buf[:], uint64(int64(v)))
		d.Write(buf[:])
	}
	writeFloat := func(v float64) {
		binary.LittleEndian.PutUint64(buf[:], math.Float64bits(v))
		d.Write(buf[:])
	}

	writeInt(ppq)
	writeInt(len(events))
	for _, ev := range events {
		writeInt(ev.OnsetTick)
		writeInt(ev.DurationTicks)
		writeInt(ev.Pitch)
		writeInt(ev.Program)
	}
	writeInt(len(changes))
	for _, c := range changes {
		writeInt(c.Tick)
		writeFloat(c.BPM)
	}
	return d.Sum64()
}
