package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"rustyc/pkg/compiler"
)

// maxSourceBytes bounds a request body.
const maxSourceBytes = 1 << 20

type compileRequest struct {
	Code *string `json:"code"`
}

type compileResponse struct {
	Assembly       string `json:"assembly"`
	CompilerOutput string `json:"compiler_output"`
}

type errorResponse struct {
	Detail string `json:"detail"`
}

func main() {
	if err := run(os.Args[1:], os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(args []string, stderr io.Writer) error {
	fs := flag.NewFlagSet("rustyd", flag.ContinueOnError)
	fs.SetOutput(stderr)
	addr := fs.String("addr", ":8000", "listen address")
	if err := fs.Parse(args); err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              *addr,
		Handler:           newHandler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	fmt.Fprintf(stderr, "rustyd listening on %s\n", *addr)
	return srv.ListenAndServe()
}

// newHandler serves POST /compile. Every response allows any origin so a
// browser page on another host can call it.
func newHandler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /compile", handleCompile)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "*")
		h.Set("Access-Control-Allow-Headers", "*")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		mux.ServeHTTP(w, r)
	})
}

func handleCompile(w http.ResponseWriter, r *http.Request) {
	var req compileRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxSourceBytes))
	if err := dec.Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Detail: "invalid request: " + err.Error()})
		return
	}
	if req.Code == nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Detail: "invalid request: missing field \"code\""})
		return
	}

	asm, err := compiler.Compile(*req.Code)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Detail: phaseOf(err) + " error: " + err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, compileResponse{Assembly: asm})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		fmt.Fprintln(os.Stderr, "write error:", err)
	}
}

func phaseOf(err error) string {
	var ce *compiler.CompileError
	if errors.As(err, &ce) {
		return ce.Phase.String()
	}
	return "compile"
}
