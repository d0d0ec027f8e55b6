package utils

import (
	"time"
)

const HTTPReqTimeout = 1 * time.Minute

var Settings = &Hub{
	psmDBName:          "exchanges.bolt",
	queueDBName:        "engine",
	enclaveDBName:      "enclave.bolt",
	timeout:            HTTPReqTimeout,
	retryBase:          1 * time.Second,
	retryCap:           60 * time.Second,
	exchangeGCInterval: 1 * time.Hour,
}

// Hub is the settings hub for the engine process. It is filled once at
// startup from the command flags and read-only after that.
type Hub struct {
	psmDBName     string // state machine db's filename
	queueDBName   string // outbound delivery queue db's filename
	enclaveDBName string // key enclave db's filename

	hostAddr    string // host name of the server's host seen from internet
	versionInfo string // version number etc. in free format as a string

	timeout   time.Duration // timeout setting for transport sends
	retryBase time.Duration // first retry wait for outbound delivery
	retryCap  time.Duration // longest retry wait for outbound delivery

	exchangeGCInterval time.Duration // how often terminal exchanges are swept

	localTestMode bool // tells if are running unit tests
}

func (h *Hub) PsmDBName() string {
	return h.psmDBName
}

func (h *Hub) SetPsmDBName(name string) {
	h.psmDBName = name
}

func (h *Hub) QueueDBName() string {
	return h.queueDBName
}

func (h *Hub) SetQueueDBName(name string) {
	h.queueDBName = name
}

func (h *Hub) EnclaveDBName() string {
	return h.enclaveDBName
}

func (h *Hub) SetEnclaveDBName(name string) {
	h.enclaveDBName = name
}

func (h *Hub) HostAddr() string {
	return h.hostAddr
}

func (h *Hub) SetHostAddr(addr string) {
	h.hostAddr = addr
}

func (h *Hub) VersionInfo() string {
	return h.versionInfo
}

func (h *Hub) SetVersionInfo(info string) {
	h.versionInfo = info
}

func (h *Hub) Timeout() time.Duration {
	return h.timeout
}

func (h *Hub) SetTimeout(timeout time.Duration) {
	h.timeout = timeout
}

func (h *Hub) RetryBase() time.Duration {
	return h.retryBase
}

func (h *Hub) SetRetryBase(d time.Duration) {
	h.retryBase = d
}

func (h *Hub) RetryCap() time.Duration {
	return h.retryCap
}

func (h *Hub) SetRetryCap(d time.Duration) {
	h.retryCap = d
}

func (h *Hub) ExchangeGCInterval() time.Duration {
	return h.exchangeGCInterval
}

func (h *Hub) SetExchangeGCInterval(d time.Duration) {
	h.exchangeGCInterval = d
}

func (h *Hub) LocalTestMode() bool {
	return h.localTestMode
}

func (h *Hub) SetLocalTestMode(on bool) {
	h.localTestMode = on
}
