package httptransport

import (
	"encoding/json"
	"net/http"

	"github.com/chordring/chord"
	"github.com/chordring/chord/logging"
	"github.com/chordring/chord/transport"
)

// NewServer builds the http.Handler a node (or the coordinator, via its own
// additional routes) mounts to answer the transport.Transport wire contract:
// POST /msg dispatches the message union, GET /successors and POST /insert
// answer the two calls spec §6 keeps out of the union.
func NewServer(h transport.Handler, log logging.Logger) http.Handler {
	if log == nil {
		log = logging.Nop{}
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/msg", handleMsg(h, log))
	mux.HandleFunc("/successors", handleSuccessors(h, log))
	mux.HandleFunc("/insert", handleInsert(h, log))
	return mux
}

func handleMsg(h transport.Handler, log logging.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		var msg chord.Message
		if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
			http.Error(w, "bad request: "+err.Error(), http.StatusBadRequest)
			return
		}
		reply := h.HandleMessage(msg)
		writeJSON(w, log, reply)
	}
}

func handleSuccessors(h transport.Handler, log logging.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		out := struct {
			Successors []string `json:"successors"`
		}{Successors: h.Successors()}
		writeJSON(w, log, out)
	}
}

func handleInsert(h transport.Handler, log logging.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		var body struct {
			Records []chord.Record `json:"records"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "bad request: "+err.Error(), http.StatusBadRequest)
			return
		}
		if err := h.Insert(body.Records); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, log, chord.Message{Kind: chord.KindPong, Ok: true})
	}
}

func writeJSON(w http.ResponseWriter, log logging.Logger, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error("failed to encode response", logging.F("err", err.Error()))
	}
}
