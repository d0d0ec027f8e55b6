package psm

import (
	"github.com/golang/glog"
	"github.com/lainio/err2"
	"github.com/lainio/err2/try"
)

// RmTerminal removes exchange records that the given predicate declares
// terminal. It is run periodically by the engine's scheduler. Returns the
// count of removed records.
func RmTerminal(isTerminal func(ex *Exchange) bool) (n int, err error) {
	defer err2.Annotatew("exchange gc", &err)

	ids := make([]string, 0)
	try.To(EachExchange(isTerminal, func(ex *Exchange) error {
		ids = append(ids, ex.ID)
		return nil
	}))
	for _, id := range ids {
		try.To(RmExchange(id))
		n++
	}
	if n > 0 {
		glog.V(1).Infoln("exchange gc removed", n, "records")
	}
	return n, nil
}
