/*
Package server implements a MessagePack IPC loop for batch log-probability
queries, adapted from the teacher's completion request/response server.

The protocol mirrors the teacher's shape: clients send one request per
message on stdin, the server replies on stdout, both binary msgpack. This
is a transport alternative to the `-q <path>` file surface (cmd/lmquery),
backed by the same query.Evaluator, not a translation or completion
service.

A request carries a batch of query lines (each a space-separated
m-gram) capped at config.ServerConfig.BatchLimit. The response carries
one result per line, in order, each either a log10 probability (and,
in cumulative mode, its per-window breakdown) or an error string. The
mode is the server's Query.Cumulative setting, so every result of one
response either has a "w" list or none does. A cumulative-mode exchange:

	{"id": "req_001", "lines": ["the cat sat", "a dog ran"]}
	{"id": "req_001", "results": [{"p": -1.23, "w": [-0.5,-0.73]}, {"p": -2.5, "w": [-1.1,-1.4]}], "t": 42}
*/
package server

// QueryRequest is one batch of m-gram lines to evaluate.
type QueryRequest struct {
	ID    string   `msgpack:"id"`
	Lines []string `msgpack:"lines"`
}

// QueryResult is one line's outcome.
type QueryResult struct {
	LogProb   float64   `msgpack:"p"`
	PerWindow []float64 `msgpack:"w,omitempty"`
	Error     string    `msgpack:"e,omitempty"`
}

// QueryResponse answers a QueryRequest.
type QueryResponse struct {
	ID        string        `msgpack:"id"`
	Results   []QueryResult `msgpack:"results"`
	TimeTaken int64         `msgpack:"t"`
}

// ErrorResponse reports a request-level failure (malformed batch, over
// the configured batch limit) rather than a per-line error.
type ErrorResponse struct {
	ID    string `msgpack:"id"`
	Error string `msgpack:"e"`
}
