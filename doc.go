/*
Package main is an application package for the Findy protocol engine. The
engine receives packed DIDComm envelopes, drives the per-exchange state
machines, and delivers the outbound messages with persistent retry. It is
a single-tenant agent process: one key enclave, one pairwise store, one
exchange database.

You can use the engine and related Go packages roughly for three purposes:

1. As a standalone agent server speaking Aries agent to agent protocols
over http.

2. As a framework to embed the protocol engine into an own process: open
the agency, plug in an own transport, and drive the exchanges through the
dispatcher.

3. As a CLI tool to start and ping the server.

# Sub-packages

The repo is structured to the following sub-packages:

	agent    includes the engine packages like agency, didcomm, psm, ..
	enclave  implements a secure enclave for the agent's key material
	protocol includes processors for Aries agent-to-agent protocols
	server   implements the http server for the agent endpoint
	std      a root package for Aries protocol messages
*/
package main
