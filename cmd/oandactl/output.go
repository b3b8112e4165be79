package main

import (
	"encoding/json"
	"io"
	"os"
	"sync"
)

// printer writes one JSON document per line. It is safe for concurrent use.
type printer struct {
	mu  sync.Mutex
	enc *json.Encoder
}

func newPrinter(w io.Writer) *printer {
	if w == nil {
		w = os.Stdout
	}
	return &printer{enc: json.NewEncoder(w)}
}

func (p *printer) print(v any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.enc.Encode(v)
}
