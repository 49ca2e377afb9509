package restyutil

import (
	"log/slog"
	"strconv"
	"sync/atomic"

	"github.com/go-resty/resty/v2"
)

type InstrumentOutput interface {
	Write(id string, contents string)
}

// InstrumentClient dumps every http exchange made by the client into
// `output`, numbered in request order. `output` may be nil, in which
// case this is a no-op.
func InstrumentClient(client *resty.Client, output InstrumentOutput) {
	if output == nil {
		return
	}

	var idcounter uint64
	client.OnAfterResponse(func(_ *resty.Client, res *resty.Response) error {
		id := strconv.FormatUint(atomic.AddUint64(&idcounter, 1), 10)
		output.Write(id, formatHttpMessage(res))
		slog.Debug(
			"http exchange recorded",
			"method", res.Request.Method,
			"url", res.Request.URL,
			"message_id", id,
		)
		return nil
	})
}
