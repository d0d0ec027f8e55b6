/*
Package server encapsulates the http server entry points: the agent to
agent endpoint receiving packed envelopes, and the version and liveness
paths.
*/
package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"runtime/debug"

	"github.com/findy-network/findy-protocol-engine/agent/agency"
	"github.com/findy-network/findy-protocol-engine/agent/registry"
	"github.com/findy-network/findy-protocol-engine/agent/sec"
	"github.com/findy-network/findy-protocol-engine/agent/utils"
	"github.com/golang/glog"
	"github.com/lainio/err2"
	"github.com/lainio/err2/try"
)

// A2APath is the URL path receiving agent to agent envelopes.
const A2APath = "/a2a"

// StartHTTPServer starts the http server. The function blocks when it
// succeeds. The server port is the port to listen; the host address the
// world sees is in utils.Settings and is assigned to outbound endpoints.
func StartHTTPServer(a *agency.Agency, serverPort uint) error {
	sp := fmt.Sprintf(":%v", serverPort)
	mux := NewMux(a)

	if glog.V(1) {
		glog.Info(utils.Settings.VersionInfo())
		glog.Infof("HTTP Server on port: %v", serverPort)
	}
	server := http.Server{
		Addr:    sp,
		Handler: mux,
	}
	return server.ListenAndServe()
}

// NewMux builds the engine's http handler. Separate from the server start
// so that tests can drive it with httptest.
func NewMux(a *agency.Agency) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc(A2APath, transport(a))

	mux.HandleFunc("/version", func(w http.ResponseWriter, r *http.Request) {
		if glog.V(5) {
			glog.Info("/version requested")
		}
		_, _ = w.Write([]byte(utils.Version))
	})

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if glog.V(7) {
			glog.Infoln("testing the server", r.URL.Path)
		}
		_, _ = w.Write([]byte(utils.Version))
	})
	return mux
}

// BuildHostAddr writes the real server host name to the settings for the
// agents' use.
func BuildHostAddr(scheme string, hostPort uint) {
	if hostPort != 80 {
		hostAddr := fmt.Sprintf("%s://%s:%v", scheme, utils.Settings.HostAddr(), hostPort)
		utils.Settings.SetHostAddr(hostAddr)
	} else {
		hostAddr := fmt.Sprintf("%s://%s", scheme, utils.Settings.HostAddr())
		utils.Settings.SetHostAddr(hostAddr)
	}
}

func rejected(err error) bool {
	return errors.Is(err, sec.ErrDecode) ||
		errors.Is(err, registry.ErrUnsupportedProtocol) ||
		errors.Is(err, registry.ErrInvalidTransition)
}

func errorResponse(w http.ResponseWriter) {
	glog.V(2).Info("Returning 500")
	w.WriteHeader(http.StatusInternalServerError)
	_, _ = w.Write([]byte("500 - Error"))
}

// transport receives one envelope per request. The envelope is dispatched
// before the response: the sender's delivery queue retries on our 500, so
// a failed store must not be acked.
func transport(a *agency.Agency) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		defer err2.CatchAll(func(err error) {
			glog.Error("transport error:", err)
			errorResponse(w)
		}, func(exception interface{}) {
			if utils.Settings.LocalTestMode() {
				panic(exception)
			}
			glog.Error(exception)
			debug.PrintStack()
			errorResponse(w)
		})

		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}

		data := try.To1(io.ReadAll(r.Body))
		glog.V(3).Infoln("===== Aries TRANSPORT =====", len(data), "bytes")

		// protocol level rejections are acked: the envelope was
		// delivered and resending it cannot change the outcome
		err := a.Dispatcher().DispatchWire(data)
		if err != nil && !rejected(err) {
			try.To(err)
		}
		if err != nil {
			glog.V(1).Infoln("envelope rejected:", err)
		}

		w.Header().Set("Content-Type", "application/json")
	}
}
