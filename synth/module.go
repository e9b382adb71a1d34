package synth

import (
	"github.com/reusee/dscope"
	"github.com/reusee/taibeat/sandbox"
	"github.com/reusee/taibeat/transport"
)

type Module struct {
	dscope.Module
	Transport transport.Module
}

func (Module) Destination() *Destination {
	return NewDestination()
}

func (Module) Library(
	tr *transport.Transport,
	dest *Destination,
) sandbox.Library {
	return New(tr, dest)
}
