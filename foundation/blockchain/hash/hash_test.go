package hash_test

import (
	"bytes"
	"math/bits"
	"testing"

	"github.com/auriumchain/node/foundation/blockchain/hash"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

func Test_KnownDigests(t *testing.T) {
	type table struct {
		name string
		data []byte
		exp  string
	}

	tt := []table{
		{name: "empty", data: []byte{}, exp: "2e2ab4254605c968e0e07eb0ab78a00ab6bcdd4ccefd09fcc28dee95e6842ee3"},
		{name: "word", data: []byte("AuriumChain"), exp: "c79a3d65a20e6034267e1c5592806c427683d71df873e8302a2a3235d15be14e"},
	}

	t.Log("Given the need to produce stable digests.")
	{
		for testID, tst := range tt {
			f := func(t *testing.T) {
				t.Logf("\tTest %d:\tWhen hashing %q.", testID, tst.name)
				{
					got := hash.Hex(tst.data)
					if got != tst.exp {
						t.Logf("\t\tTest %d:\tgot: %s", testID, got)
						t.Logf("\t\tTest %d:\texp: %s", testID, tst.exp)
						t.Fatalf("\t%s\tTest %d:\tShould get back the known digest.", failed, testID)
					}
					t.Logf("\t%s\tTest %d:\tShould get back the known digest.", success, testID)

					if again := hash.Hex(tst.data); again != got {
						t.Fatalf("\t%s\tTest %d:\tShould be deterministic.", failed, testID)
					}
					t.Logf("\t%s\tTest %d:\tShould be deterministic.", success, testID)
				}
			}

			t.Run(tst.name, f)
		}
	}
}

func Test_EmptyInput(t *testing.T) {
	sum := hash.Sum(nil)
	if bytes.Equal(sum[:], make([]byte, hash.Size)) {
		t.Fatalf("\t%s\tShould not produce an all zero digest for empty input.", failed)
	}
	t.Logf("\t%s\tShould not produce an all zero digest for empty input.", success)
}

func Test_Avalanche(t *testing.T) {
	a := hash.Sum([]byte("AuriumChain"))
	b := hash.Sum([]byte("AuriumChaio"))

	var flipped int
	for i := range a {
		flipped += bits.OnesCount8(a[i] ^ b[i])
	}

	// Roughly half of the 256 bits are expected to flip.
	if flipped < 80 {
		t.Fatalf("\t%s\tShould flip a large fraction of bits: flipped %d", failed, flipped)
	}
	t.Logf("\t%s\tShould flip a large fraction of bits: flipped %d", success, flipped)
}

func Test_Streaming(t *testing.T) {
	data := []byte("stream this content in two parts")

	h := hash.New()
	h.Write(data[:10])
	h.Write(data[10:])

	sum := hash.Sum(data)
	if !bytes.Equal(h.Sum(nil), sum[:]) {
		t.Fatalf("\t%s\tShould match the one shot digest.", failed)
	}
	t.Logf("\t%s\tShould match the one shot digest.", success)

	if got := hash.Bytes(hash.Hex(data)); !bytes.Equal(got, sum[:]) {
		t.Fatalf("\t%s\tShould decode the hex digest.", failed)
	}
	t.Logf("\t%s\tShould decode the hex digest.", success)
}
