package trapdoor

import (
	"fmt"
	"io"
	"os"
)

// debugOn is set when TRAPDOOR_DEBUG=1.
var debugOn = os.Getenv("TRAPDOOR_DEBUG") == "1"

func dbg(w io.Writer, format string, a ...any) {
	if debugOn {
		fmt.Fprintf(w, format, a...)
	}
}
