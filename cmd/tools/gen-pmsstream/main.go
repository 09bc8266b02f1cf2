// Command gen-pmsstream writes synthetic Plantower sensor streams for dev
// mode replay and benchmarks. Field values follow a small random walk with
// occasional spikes so the delta encoder sees every bracket, and the noise
// and corrupt options exercise resync and checksum recovery.
package main

import (
	"flag"
	"log"
	"math/rand"
	"os"
	"strings"

	"github.com/banshee-data/airquality.report/internal/pms"
)

func main() {
	output := flag.String("out", "pms5003.bin", "output path")
	variant := flag.String("variant", "pms5003", "frame variant: pms3003 or pms5003")
	frames := flag.Int("frames", 1000, "number of frames")
	noise := flag.Float64("noise", 0, "junk bytes injected per frame byte (0..1)")
	corrupt := flag.Float64("corrupt", 0, "fraction of frames with a broken checksum (0..1)")
	seed := flag.Int64("seed", 1, "PRNG seed")
	flag.Parse()

	var v pms.Variant
	switch strings.ToLower(*variant) {
	case "pms3003", "short":
		v = pms.VariantShort
	case "pms5003", "long":
		v = pms.VariantLong
	default:
		log.Fatalf("unknown variant %q (want pms3003 or pms5003)", *variant)
	}

	rng := rand.New(rand.NewSource(*seed))
	fields := make([]uint16, v.FieldCount())
	for i := range fields {
		fields[i] = uint16(rng.Intn(60))
	}

	var buf []byte
	corrupted := 0
	for i := 0; i < *frames; i++ {
		stepFields(rng, fields)

		if *noise > 0 {
			junk := int(*noise * float64(2+2*len(fields)+2))
			for j := 0; j < junk; j++ {
				buf = append(buf, byte(rng.Intn(256)))
			}
		}

		buf = pms.AppendFrameBytes(buf, v, fields)
		if rng.Float64() < *corrupt {
			buf[len(buf)-1] ^= 0xFF
			corrupted++
		}

		if (i+1)%1000 == 0 {
			log.Printf("%d/%d frames", i+1, *frames)
		}
	}

	if err := os.WriteFile(*output, buf, 0644); err != nil {
		log.Fatalf("failed to write %s: %v", *output, err)
	}
	log.Printf("✓ Created: %s (%d %s frames, %d corrupted, %d bytes)",
		*output, *frames, v, corrupted, len(buf))
}

// stepFields advances each field by a small delta, with a rare spike, so
// consecutive frames differ the way a real sensor's readings do.
func stepFields(rng *rand.Rand, fields []uint16) {
	for i := range fields {
		var step int
		switch {
		case rng.Float64() < 0.02:
			step = rng.Intn(400) - 200
		case rng.Float64() < 0.5:
			step = rng.Intn(7) - 3
		}
		next := int(fields[i]) + step
		if next < 0 {
			next = 0
		}
		if next > 2000 {
			next = 2000
		}
		fields[i] = uint16(next)
	}
}
