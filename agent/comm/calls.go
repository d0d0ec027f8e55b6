package comm

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/findy-network/findy-protocol-engine/agent/service"
	"github.com/findy-network/findy-protocol-engine/agent/utils"
	"github.com/golang/glog"
	"github.com/lainio/err2"
	"github.com/lainio/err2/try"
)

// errorMessageMaxLength is the maximum length of the response body we will
// include into the generated error message
const errorMessageMaxLength = 80

// ErrTransport is wrapped into every failed transport send. The delivery
// queue retries these with backoff; they are never fatal.
var ErrTransport = errors.New("transport error")

// Transport delivers packed wire bytes to a peer's endpoint. The engine
// core never binds to a concrete transport; the default is plain HTTP and
// tests plug in their own.
type Transport interface {
	Send(ctx context.Context, addr service.Addr, wire []byte) error
}

var (
	// SendAndWaitReq is proxy function to route actual call to http or
	// pseudo http in tests.
	SendAndWaitReq = sendAndWaitHTTPRequest

	c = &http.Client{}
)

// HTTPTransport is the default Transport: one POST per message.
type HTTPTransport struct{}

func (HTTPTransport) Send(ctx context.Context, addr service.Addr, wire []byte) (err error) {
	_, err = SendAndWaitReq(ctx, addr.Endp, bytes.NewReader(wire),
		utils.Settings.Timeout())
	if err != nil {
		return fmt.Errorf("%w: %s", ErrTransport, err)
	}
	return nil
}

func sendAndWaitHTTPRequest(
	ctx context.Context,
	urlStr string,
	msg io.Reader,
	timeout time.Duration,
) (
	data []byte,
	err error,
) {
	defer err2.Annotatew("call http", &err)

	URL := try.To1(url.Parse(urlStr))

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	request := try.To1(http.NewRequestWithContext(ctx, "POST", URL.String(), msg))
	request.Close = true // deferred response.Body.Close isn't always enough

	request.Header.Set("Content-Type", "application/ssi-agent-wire")

	response := try.To1(c.Do(request))

	defer func() {
		closeErr := response.Body.Close()
		if closeErr != nil {
			glog.Warningln("body.Close: ", closeErr)
		}
	}()

	data, err = io.ReadAll(response.Body)

	return checkHTTPStatus(response, data)
}

// checkHTTPStatus checks the status code and gets the server message
func checkHTTPStatus(response *http.Response, data []byte) ([]byte, error) {
	if response.StatusCode != http.StatusOK {
		glog.Warning("http code:", response.Status)
		contentType := response.Header.Get("Content-type")
		// from our server: text/plain; charset=utf-8
		if strings.HasPrefix(contentType, "text/plain") {
			l := len(data)
			return nil, fmt.Errorf("%s: %s",
				response.Status, data[0:min(errorMessageMaxLength, l)])
		}
		return nil, fmt.Errorf("%v",
			response.Status)
	}
	return data, nil
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
