package internaldefs

import (
	"strings"
	"testing"

	"github.com/santokhan/authkit"
)

func TestDefinitionsUnique(t *testing.T) {
	names := map[string]bool{}
	ids := map[uint16]bool{}
	for _, def := range CounterDefs {
		if names[def.Name] || ids[uint16(def.ID)] {
			t.Fatalf("duplicate counter definition %+v", def)
		}
		if !strings.HasPrefix(def.Name, "authkit_") || !strings.HasSuffix(def.Name, "_total") {
			t.Fatalf("counter %q breaks naming", def.Name)
		}
		names[def.Name] = true
		ids[uint16(def.ID)] = true
	}
	for _, def := range HistogramDefs {
		if names[def.Name] || ids[uint16(def.ID)] {
			t.Fatalf("duplicate histogram definition %+v", def)
		}
		ids[uint16(def.ID)] = true
	}
	if len(ids) != int(authkit.MetricAuthenticateLatency)+1 {
		t.Fatalf("%d metric ids defined, want every engine metric", len(ids))
	}
}

func TestBucketHelpers(t *testing.T) {
	if len(HistogramUpperBounds)+1 != len(HistogramBoundSuffix) {
		t.Fatal("bounds and suffixes out of step")
	}

	n := NormalizeBuckets([]uint64{1, 2})
	if n != [8]uint64{1, 2, 0, 0, 0, 0, 0, 0} {
		t.Fatalf("unexpected normalized buckets %v", n)
	}
	c := CumulativeBuckets([8]uint64{1, 0, 2, 0, 0, 0, 0, 3})
	if c != [8]uint64{1, 1, 3, 3, 3, 3, 3, 6} {
		t.Fatalf("unexpected cumulative buckets %v", c)
	}
}
