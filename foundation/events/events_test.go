package events_test

import (
	"testing"

	"github.com/auriumchain/node/foundation/events"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

func Test_Forward(t *testing.T) {
	t.Log("Given the need to fan out node events.")
	{
		evts := events.New()
		a := evts.Acquire("a")
		b := evts.Acquire("b")

		t.Log("\tWhen a prefixed message is forwarded.")
		{
			if !evts.Forward(`events: block: {"index":1}`) {
				t.Fatalf("\t%s\tShould forward the message.", failed)
			}

			for _, ch := range []<-chan string{a, b} {
				if got := <-ch; got != `block: {"index":1}` {
					t.Fatalf("\t%s\tShould receive the message without the prefix: %q", failed, got)
				}
			}
			t.Logf("\t%s\tShould deliver the message to every subscriber.", success)
		}

		t.Log("\tWhen a plain log message is forwarded.")
		{
			if evts.Forward("state: New: height[0]") {
				t.Fatalf("\t%s\tShould not forward the message.", failed)
			}
			if len(a) != 0 {
				t.Fatalf("\t%s\tShould not deliver the message.", failed)
			}
			t.Logf("\t%s\tShould not deliver the message.", success)
		}

		t.Log("\tWhen subscribers go away.")
		{
			if err := evts.Release("a"); err != nil {
				t.Fatalf("\t%s\tShould be able to release: %v", failed, err)
			}
			if err := evts.Release("a"); err == nil {
				t.Fatalf("\t%s\tShould fail to release twice.", failed)
			}

			evts.Shutdown()
			if _, open := <-b; open {
				t.Fatalf("\t%s\tShould close the remaining channels.", failed)
			}
			if evts.Len() != 0 {
				t.Fatalf("\t%s\tShould have no subscribers left.", failed)
			}
			t.Logf("\t%s\tShould close every channel.", success)
		}
	}
}
