/*
Package agent holds the engine's core packages. The agent package is empty
itself; all the functionality is inside sub-packages.

Summary of the packages:

	agency   wires the stores, the registry and the dispatcher together
	aries    is implementation of Aries messages
	bus      offers implementation of notification bus for internal use
	comm     communication packets, handlers, transport and helpers
	delivery persistent outbound queue with retry and backoff
	didcomm  DIDComm messaging interfaces
	pairwise services to store and look up pairwise connections
	pltype   payload and message types
	prot     the dispatcher: protocol processing and exchange updates
	psm      Protocol State Machine, the exchange store
	registry protocol registry and version resolution
	sec      secure pipe for DIDComm transfers
	service  namespace for common and simple service.Addr aka agent endpoint
	storage  storage provider wrappers
	utils    helpers for version, settings, ids, ..
*/
package agent
